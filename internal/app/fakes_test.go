package app_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/neomorfeo/teamhost/internal/app"
	"github.com/neomorfeo/teamhost/internal/domain"
)

// --- Clock ---

type manualTimer struct {
	mu      sync.Mutex
	d       time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasPending := !t.stopped && !t.fired
	t.stopped = true
	return wasPending
}

func (t *manualTimer) pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.stopped && !t.fired
}

// forceFire runs the callback even if the timer was stopped, simulating a
// timer that fired concurrently with its cancellation.
func (t *manualTimer) forceFire() {
	t.mu.Lock()
	t.fired = true
	fn := t.fn
	t.mu.Unlock()
	fn()
}

type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, fn func()) domain.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{d: d, fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *manualClock) pending() []*manualTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*manualTimer
	for _, t := range c.timers {
		if t.pending() {
			out = append(out, t)
		}
	}
	return out
}

// fireNext fires the oldest pending timer.
func (c *manualClock) fireNext(t *testing.T) *manualTimer {
	t.Helper()
	pending := c.pending()
	if len(pending) == 0 {
		t.Fatal("no pending timer to fire")
	}
	pending[0].forceFire()
	return pending[0]
}

// --- Candidate source ---

type fakeSource struct {
	mu         sync.Mutex
	live       []domain.Candidate
	liveErr    error
	offlineErr error
	known      map[string]string
	resolveErr error
	liveCalls  int
}

func newFakeSource() *fakeSource {
	return &fakeSource{known: make(map[string]string)}
}

func (s *fakeSource) setLive(cs ...domain.Candidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = cs
}

func (s *fakeSource) setLiveErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liveErr = err
}

func (s *fakeSource) addKnown(display string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.known[strings.ToLower(display)] = display
}

func (s *fakeSource) LiveChannels(_ context.Context, channels []string) ([]domain.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liveCalls++
	if s.liveErr != nil {
		return nil, s.liveErr
	}
	roster := make(map[string]bool, len(channels))
	for _, ch := range channels {
		roster[strings.ToLower(ch)] = true
	}
	var out []domain.Candidate
	for _, c := range s.live {
		if roster[strings.ToLower(c.Name)] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeSource) OfflineChannels(_ context.Context, channels []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offlineErr != nil {
		return nil, s.offlineErr
	}
	live := make(map[string]bool, len(s.live))
	for _, c := range s.live {
		live[strings.ToLower(c.Name)] = true
	}
	var out []string
	for _, ch := range channels {
		if !live[strings.ToLower(ch)] {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (s *fakeSource) ResolveChannel(_ context.Context, name string) (domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolveErr != nil {
		return domain.Identity{}, s.resolveErr
	}
	display, ok := s.known[strings.ToLower(name)]
	if !ok {
		return domain.Identity{}, nil
	}
	return domain.Identity{Exists: true, Name: display}, nil
}

// --- Transport ---

type announcement struct {
	channel string
	text    string
}

type directive struct {
	observer string
	target   string
}

type subscriber struct {
	teamID  string
	handler domain.NoticeHandler
}

type fakeTransport struct {
	mu            sync.Mutex
	announcements []announcement
	hosts         []directive
	unhosts       []string
	subs          map[domain.Subscription]subscriber
	next          int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{subs: make(map[domain.Subscription]subscriber)}
}

func (f *fakeTransport) Announce(_ context.Context, channel, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.announcements = append(f.announcements, announcement{channel: channel, text: text})
	return nil
}

func (f *fakeTransport) Host(_ context.Context, observer, target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hosts = append(f.hosts, directive{observer: observer, target: target})
	return nil
}

func (f *fakeTransport) Unhost(_ context.Context, observer string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unhosts = append(f.unhosts, observer)
	return nil
}

func (f *fakeTransport) SubscribeNotices(teamID string, handler domain.NoticeHandler) domain.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	sub := domain.Subscription(teamID + "-" + strings.Repeat("s", f.next))
	f.subs[sub] = subscriber{teamID: teamID, handler: handler}
	return sub
}

func (f *fakeTransport) Unsubscribe(sub domain.Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, sub)
}

// Dispatch delivers n synchronously to every handler registered for teamID.
func (f *fakeTransport) Dispatch(teamID string, n domain.Notice) {
	f.mu.Lock()
	var handlers []domain.NoticeHandler
	for _, s := range f.subs {
		if s.teamID == teamID {
			handlers = append(handlers, s.handler)
		}
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h(n)
	}
}

func (f *fakeTransport) activeSubs(teamID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.subs {
		if s.teamID == teamID {
			n++
		}
	}
	return n
}

func (f *fakeTransport) textsFor(channel string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, a := range f.announcements {
		if a.channel == channel {
			out = append(out, a.text)
		}
	}
	return out
}

func (f *fakeTransport) hostDirectives() []directive {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]directive(nil), f.hosts...)
}

func (f *fakeTransport) unhostDirectives() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.unhosts...)
}

// --- Recorder, event log and ledger ---

type hostedRecord struct {
	teamID  string
	channel string
}

type fakeSink struct {
	mu       sync.Mutex
	hosted   []hostedRecord
	cycles   []domain.Cycle
	messages []domain.LogEntry
}

func (s *fakeSink) ChannelHosted(_ context.Context, teamID, channel string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hosted = append(s.hosted, hostedRecord{teamID: teamID, channel: channel})
	return nil
}

func (s *fakeSink) CycleClosed(_ context.Context, c domain.Cycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles = append(s.cycles, c)
	return nil
}

func (s *fakeSink) LogMessage(_ context.Context, teamID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, domain.LogEntry{TeamID: teamID, Message: text})
	return nil
}

func (s *fakeSink) ChannelStats(_ context.Context, teamID string) ([]domain.ChannelStat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int)
	for _, h := range s.hosted {
		if h.teamID == teamID {
			counts[h.channel]++
		}
	}
	out := make([]domain.ChannelStat, 0, len(counts))
	for ch, n := range counts {
		out = append(out, domain.ChannelStat{TeamID: teamID, Channel: ch, HostCount: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Channel < out[j].Channel })
	return out, nil
}

func (s *fakeSink) Cycles(_ context.Context, teamID string, _ int) ([]domain.Cycle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Cycle
	for _, c := range s.cycles {
		if c.TeamID == teamID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeSink) Messages(_ context.Context, teamID string, _ int) ([]domain.LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.LogEntry
	for _, m := range s.messages {
		if m.TeamID == teamID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeSink) closedCycles() []domain.Cycle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Cycle(nil), s.cycles...)
}

func (s *fakeSink) hostedChannels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.hosted))
	for i, h := range s.hosted {
		out[i] = h.channel
	}
	return out
}

func (s *fakeSink) loggedMessages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.Message
	}
	return out
}

// --- Team store ---

type memStore struct {
	mu    sync.Mutex
	teams map[string]domain.Team
}

func newMemStore() *memStore {
	return &memStore{teams: make(map[string]domain.Team)}
}

func (m *memStore) SaveTeam(_ context.Context, t domain.Team) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teams[t.ID] = t
	return nil
}

func (m *memStore) GetTeam(_ context.Context, id string) (domain.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.teams[id]
	if !ok {
		return domain.Team{}, domain.ErrTeamNotFound
	}
	return t, nil
}

func (m *memStore) ListTeams(_ context.Context) ([]domain.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Team, 0, len(m.teams))
	for _, t := range m.teams {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- Validator and random ---

// tableValidator applies domain.Transitions directly.
type tableValidator struct{}

func (tableValidator) Apply(_ context.Context, current domain.Status, event domain.Event) (domain.Status, error) {
	for _, tr := range domain.Transitions {
		if tr.Event == event && tr.Src == current {
			return tr.Dst, nil
		}
	}
	return "", &domain.TransitionError{Event: event, Current: current}
}

// firstPick always returns the lowest index.
type firstPick struct{}

func (firstPick) RandomInt(min, _ int) int { return min }

// --- Harness ---

const (
	controlChannel = "hostbot"
	hostLength     = 30 * time.Minute
	recheckLength  = 5 * time.Minute
)

type harness struct {
	clock     *manualClock
	source    *fakeSource
	transport *fakeTransport
	sink      *fakeSink
	store     *memStore
	svc       *app.HostingService
}

func newTeam(id string, channels ...string) domain.Team {
	return domain.NewTeam(id, id, controlChannel, channels, nil, hostLength, recheckLength)
}

func newHarness(t *testing.T, teams ...domain.Team) *harness {
	t.Helper()
	h := &harness{
		clock:     newManualClock(),
		source:    newFakeSource(),
		transport: newFakeTransport(),
		sink:      &fakeSink{},
		store:     newMemStore(),
	}
	for _, team := range teams {
		if err := h.store.SaveTeam(context.Background(), team); err != nil {
			t.Fatalf("saving team: %v", err)
		}
	}

	registry := app.NewRegistry(h.store, app.Deps{
		Source:    h.source,
		Transport: h.transport,
		Recorder:  h.sink,
		Log:       h.sink,
		Validator: tableValidator{},
		Clock:     h.clock,
		Random:    firstPick{},
	})
	h.svc = app.NewHostingService(h.store, h.sink, registry)
	t.Cleanup(h.svc.Shutdown)
	return h
}

// status doubles as a barrier: the team queue is FIFO, so every message
// enqueued before it has been processed when it returns.
func (h *harness) status(t *testing.T, teamID string) app.Snapshot {
	t.Helper()
	s, err := h.svc.Status(context.Background(), teamID)
	if err != nil {
		t.Fatalf("Status(%q): %v", teamID, err)
	}
	return s
}

// fire fires the oldest pending timer and waits until the team has handled
// the timeout, so the timer it arms in response is visible to the caller.
func (h *harness) fire(t *testing.T, teamID string) {
	t.Helper()
	h.clock.fireNext(t)
	h.status(t, teamID)
}

func (h *harness) start(t *testing.T, teamID string) {
	t.Helper()
	if err := h.svc.Start(context.Background(), teamID); err != nil {
		t.Fatalf("Start(%q): %v", teamID, err)
	}
}

func offlineNotice(target string) domain.Notice {
	return domain.Notice{
		Channel: controlChannel,
		Kind:    domain.NoticeHostTargetWentOffline,
		Message: target + " has gone offline. Exiting host mode.",
	}
}
