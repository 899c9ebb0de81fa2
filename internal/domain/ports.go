package domain

import (
	"context"
	"time"
)

// TeamStore defines the persistence contract for team configuration.
type TeamStore interface {
	SaveTeam(ctx context.Context, team Team) error
	GetTeam(ctx context.Context, id string) (Team, error)
	ListTeams(ctx context.Context) ([]Team, error)
}

// CandidateSource reports which channels are live and who they are.
// Errors wrap ErrSourceUnavailable; callers treat them as "no data this cycle".
type CandidateSource interface {
	LiveChannels(ctx context.Context, channels []string) ([]Candidate, error)
	OfflineChannels(ctx context.Context, channels []string) ([]string, error)
	ResolveChannel(ctx context.Context, nameOrHandle string) (Identity, error)
}

// NoticeHandler receives inbound notices for a team.
type NoticeHandler func(notice Notice)

// Subscription identifies a registered NoticeHandler.
type Subscription string

// Transport sends chat messages and directives and delivers inbound notices.
type Transport interface {
	Announce(ctx context.Context, channel, text string) error
	Host(ctx context.Context, observer, target string) error
	Unhost(ctx context.Context, observer string) error
	SubscribeNotices(teamID string, handler NoticeHandler) Subscription
	Unsubscribe(sub Subscription)
}

// Recorder consumes hosting usage and closed cycles. Calls are fire and forget
// from the rotation's point of view: errors are logged, never retried.
type Recorder interface {
	ChannelHosted(ctx context.Context, teamID, channel string, at time.Time) error
	CycleClosed(ctx context.Context, cycle Cycle) error
}

// EventLog persists human-readable team messages.
type EventLog interface {
	LogMessage(ctx context.Context, teamID, text string) error
}

// HostingLedger reads back what a Recorder and EventLog stored.
type HostingLedger interface {
	ChannelStats(ctx context.Context, teamID string) ([]ChannelStat, error)
	Cycles(ctx context.Context, teamID string, limit int) ([]Cycle, error)
	Messages(ctx context.Context, teamID string, limit int) ([]LogEntry, error)
}

// RandomSource returns an integer in [min, max).
type RandomSource interface {
	RandomInt(min, max int) int
}

// Timer is a pending scheduled callback.
type Timer interface {
	Stop() bool
}

// Clock abstracts time so rotations can be driven deterministically.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// TransitionValidator checks whether an event is allowed from the current status
// and returns the resulting status.
type TransitionValidator interface {
	Apply(ctx context.Context, current Status, event Event) (Status, error)
}
