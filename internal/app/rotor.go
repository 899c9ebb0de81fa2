package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/neomorfeo/teamhost/internal/domain"
)

const (
	msgTurnedOn     = "The hosting bot has been turned on."
	msgTurnedOff    = "The hosting bot has been turned off."
	msgNoSuchTarget = "That channel doesn't exist."
)

// Deps bundles the collaborators a team rotation talks to.
type Deps struct {
	Source    domain.CandidateSource
	Transport domain.Transport
	Recorder  domain.Recorder
	Log       domain.EventLog
	Validator domain.TransitionValidator
	Clock     domain.Clock
	Random    domain.RandomSource
}

// Snapshot is the externally visible rotation state of a team.
type Snapshot struct {
	TeamID    string
	Status    domain.Status
	Target    string
	StartedAt time.Time
	HostedFor string
}

type msgKind int

const (
	msgStart msgKind = iota
	msgStop
	msgHost
	msgStatus
	msgReconfigure
	msgTimeout
	msgOffline
)

type trigger int

const (
	triggerStart trigger = iota
	triggerTimeout
	triggerOffline
	triggerManual
)

type message struct {
	kind    msgKind
	ctx     context.Context
	gen     uint64
	channel string
	team    domain.Team
	reply   chan result
}

type result struct {
	name     string
	snapshot Snapshot
	err      error
}

// rotor runs one team's rotation. Every transition, including timer expiry
// and offline notices, is a message on inbox processed by a single goroutine,
// so the fields below the inbox are only touched by that goroutine.
type rotor struct {
	deps     Deps
	inbox    chan message
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once

	team      domain.Team
	status    domain.Status
	target    string
	startedAt time.Time
	timer     domain.Timer
	sub       domain.Subscription
	// gen is bumped whenever the pending timer and subscription are torn
	// down; messages carrying an older generation are stale.
	gen uint64
}

func newRotor(team domain.Team, deps Deps) *rotor {
	r := &rotor{
		deps:    deps,
		inbox:   make(chan message, 16),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		team:    team,
		status:  domain.StatusOff,
	}
	go r.run()
	return r
}

func (r *rotor) run() {
	defer close(r.stopped)
	for {
		select {
		case <-r.done:
			r.cancelPending()
			return
		case m := <-r.inbox:
			r.handle(m)
		}
	}
}

// shutdown stops the loop and waits until pending timers and subscriptions
// are released.
func (r *rotor) shutdown() {
	r.stopOnce.Do(func() { close(r.done) })
	<-r.stopped
}

// submit enqueues a request and waits for the loop to process it.
func (r *rotor) submit(ctx context.Context, m message) (result, error) {
	m.ctx = ctx
	m.reply = make(chan result, 1)

	select {
	case r.inbox <- m:
	case <-r.done:
		return result{}, domain.ErrRotorClosed
	case <-ctx.Done():
		return result{}, ctx.Err()
	}

	select {
	case res := <-m.reply:
		return res, res.err
	case <-r.stopped:
		return result{}, domain.ErrRotorClosed
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
}

// enqueue delivers an internal message (timer expiry, offline notice).
func (r *rotor) enqueue(m message) {
	select {
	case r.inbox <- m:
	case <-r.done:
	}
}

func (r *rotor) handle(m message) {
	ctx := context.Background()
	if m.ctx != nil {
		// A transition runs to completion even if the caller goes away.
		ctx = context.WithoutCancel(m.ctx)
	}

	var res result
	switch m.kind {
	case msgStart:
		r.start(ctx)
	case msgStop:
		r.stop(ctx)
	case msgHost:
		res.name, res.err = r.host(ctx, m.channel)
	case msgStatus:
		res.snapshot = r.snapshot()
	case msgReconfigure:
		r.team = m.team
	case msgTimeout:
		if m.gen == r.gen && r.status != domain.StatusOff {
			r.rotate(ctx, "", triggerTimeout)
		}
	case msgOffline:
		if m.gen == r.gen && r.status == domain.StatusHosting {
			r.targetWentOffline(ctx)
		}
	}

	if m.reply != nil {
		m.reply <- res
	}
}

func (r *rotor) start(ctx context.Context) {
	if r.status != domain.StatusOff {
		return
	}
	if !r.transition(ctx, domain.EventStart) {
		return
	}
	r.broadcast(ctx, msgTurnedOn)
	r.rotate(ctx, "", triggerStart)
}

func (r *rotor) stop(ctx context.Context) {
	if r.status == domain.StatusOff {
		return
	}

	if r.target != "" {
		text := fmt.Sprintf("We have stopped hosting %s.", r.target)
		for _, ch := range r.team.Channels {
			if err := r.deps.Transport.Unhost(ctx, ch); err != nil {
				slog.WarnContext(ctx, "unhost directive failed", "team_id", r.team.ID, "channel", ch, "error", err)
			}
			r.announce(ctx, ch, text)
		}
		r.closeCycle(ctx, domain.ReasonManuallyStopped)
	}

	r.clear()
	if !r.transition(ctx, domain.EventStop) {
		r.status = domain.StatusOff
	}
	r.broadcast(ctx, msgTurnedOff)
}

func (r *rotor) host(ctx context.Context, channel string) (string, error) {
	id, err := r.deps.Source.ResolveChannel(ctx, channel)
	if err != nil {
		slog.WarnContext(ctx, "channel lookup failed", "team_id", r.team.ID, "channel", channel, "error", err)
		id = domain.Identity{}
	}
	if !id.Exists {
		r.announce(ctx, r.team.ControlChannel, msgNoSuchTarget)
		return "", &domain.ChannelNotFoundError{Channel: channel}
	}

	if r.status == domain.StatusOff {
		if !r.transition(ctx, domain.EventStart) {
			return "", &domain.TransitionError{Event: domain.EventStart, Current: r.status}
		}
		r.broadcast(ctx, msgTurnedOn)
	}

	r.rotate(ctx, id.Name, triggerManual)
	return id.Name, nil
}

// rotate picks the next target. forced skips candidate lookup and selection.
func (r *rotor) rotate(ctx context.Context, forced string, trig trigger) {
	r.cancelPending()

	chosen := forced
	if chosen == "" {
		candidates, err := r.deps.Source.LiveChannels(ctx, r.team.Channels)
		if err != nil {
			slog.WarnContext(ctx, "live channel lookup failed, no candidates this cycle", "team_id", r.team.ID, "error", err)
			candidates = nil
		}
		if c, ok := domain.SelectCandidate(candidates, r.target, r.team.PreferredTags, r.deps.Random); ok {
			chosen = c.Name
		}
	}

	if chosen == "" {
		// Keep whoever is hosted until someone else is live.
		r.timer = r.schedule(r.team.RecheckLength)
		if r.target != "" {
			r.watchOffline(r.target)
		}
		slog.DebugContext(ctx, "no host candidates, rechecking later",
			"team_id", r.team.ID,
			"current_target", r.target,
			"recheck_in", r.team.RecheckLength,
		)
		return
	}

	if !r.transition(ctx, domain.EventAssign) {
		r.timer = r.schedule(r.team.RecheckLength)
		return
	}

	if r.target != "" {
		reason := domain.ReasonRotatedByTimeout
		if trig == triggerManual {
			reason = domain.ReasonManuallyOverridden
		}
		r.closeCycle(ctx, reason)
	}

	now := r.deps.Clock.Now()
	r.target = chosen
	r.startedAt = now
	r.timer = r.schedule(r.team.HostLength)
	r.watchOffline(chosen)

	if err := r.deps.Recorder.ChannelHosted(ctx, r.team.ID, chosen, now); err != nil {
		slog.WarnContext(ctx, "recording hosted channel failed", "team_id", r.team.ID, "channel", chosen, "error", err)
	}
	text := fmt.Sprintf("Started hosting %s.", chosen)
	r.logMessage(ctx, text)
	r.announce(ctx, r.team.ControlChannel, text)

	offline, err := r.deps.Source.OfflineChannels(ctx, r.team.Channels)
	if err != nil {
		slog.WarnContext(ctx, "offline channel lookup failed, skipping host directives", "team_id", r.team.ID, "error", err)
		return
	}
	text = fmt.Sprintf("We have started hosting %s.", chosen)
	for _, ch := range offline {
		if err := r.deps.Transport.Host(ctx, ch, chosen); err != nil {
			slog.WarnContext(ctx, "host directive failed", "team_id", r.team.ID, "channel", ch, "target", chosen, "error", err)
		}
		r.announce(ctx, ch, text)
	}
}

func (r *rotor) targetWentOffline(ctx context.Context) {
	r.closeCycle(ctx, domain.ReasonTargetWentOffline)
	r.clear()
	r.transition(ctx, domain.EventRelease)
	r.rotate(ctx, "", triggerOffline)
}

// schedule arms a timer that asks for a rotation in the current generation.
func (r *rotor) schedule(d time.Duration) domain.Timer {
	gen := r.gen
	return r.deps.Clock.AfterFunc(d, func() {
		r.enqueue(message{kind: msgTimeout, gen: gen})
	})
}

// watchOffline subscribes to the notice that target went offline. Only the
// first matching notice is forwarded.
func (r *rotor) watchOffline(target string) {
	gen := r.gen
	prefix := strings.ToLower(target)
	var fired atomic.Bool

	r.sub = r.deps.Transport.SubscribeNotices(r.team.ID, func(n domain.Notice) {
		if n.Kind != domain.NoticeHostTargetWentOffline {
			return
		}
		if !strings.HasPrefix(strings.ToLower(n.Message), prefix) {
			return
		}
		if !fired.CompareAndSwap(false, true) {
			return
		}
		r.enqueue(message{kind: msgOffline, gen: gen})
	})
}

func (r *rotor) cancelPending() {
	r.gen++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if r.sub != "" {
		r.deps.Transport.Unsubscribe(r.sub)
		r.sub = ""
	}
}

func (r *rotor) clear() {
	r.cancelPending()
	r.target = ""
	r.startedAt = time.Time{}
}

func (r *rotor) closeCycle(ctx context.Context, reason domain.EndReason) {
	now := r.deps.Clock.Now()
	hostedFor := domain.FormatHostedDuration(r.startedAt, now)

	if reason == domain.ReasonTargetWentOffline {
		r.logMessage(ctx, fmt.Sprintf("Stopped hosting %s (went offline, hosted for %s).", r.target, hostedFor))
	} else {
		r.logMessage(ctx, fmt.Sprintf("Stopped hosting %s (hosted for %s).", r.target, hostedFor))
	}

	cycle := domain.Cycle{
		ID:        generateID(),
		TeamID:    r.team.ID,
		Target:    r.target,
		StartedAt: r.startedAt,
		EndedAt:   now,
		Reason:    reason,
	}
	if err := r.deps.Recorder.CycleClosed(ctx, cycle); err != nil {
		slog.WarnContext(ctx, "recording closed cycle failed", "team_id", r.team.ID, "cycle_id", cycle.ID, "error", err)
	}
}

func (r *rotor) transition(ctx context.Context, event domain.Event) bool {
	next, err := r.deps.Validator.Apply(ctx, r.status, event)
	if err != nil {
		slog.ErrorContext(ctx, "rotation transition rejected", "team_id", r.team.ID, "error", err)
		return false
	}
	r.status = next
	return true
}

// broadcast logs text and announces it on the team's control channel.
func (r *rotor) broadcast(ctx context.Context, text string) {
	r.logMessage(ctx, text)
	r.announce(ctx, r.team.ControlChannel, text)
}

func (r *rotor) announce(ctx context.Context, channel, text string) {
	if channel == "" {
		return
	}
	if err := r.deps.Transport.Announce(ctx, channel, text); err != nil {
		slog.WarnContext(ctx, "announcement failed", "team_id", r.team.ID, "channel", channel, "error", err)
	}
}

func (r *rotor) logMessage(ctx context.Context, text string) {
	slog.InfoContext(ctx, text, "team_id", r.team.ID)
	if err := r.deps.Log.LogMessage(ctx, r.team.ID, text); err != nil {
		slog.WarnContext(ctx, "event log write failed", "team_id", r.team.ID, "error", err)
	}
}

func (r *rotor) snapshot() Snapshot {
	s := Snapshot{
		TeamID:    r.team.ID,
		Status:    r.status,
		Target:    r.target,
		StartedAt: r.startedAt,
	}
	if r.target != "" {
		s.HostedFor = domain.FormatHostedDuration(r.startedAt, r.deps.Clock.Now())
	}
	return s
}
