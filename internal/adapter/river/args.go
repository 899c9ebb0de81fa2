package river

import (
	"database/sql"
	"time"

	"github.com/riverqueue/river"
)

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// CycleClosedArgs carries a finished hosting cycle. River serializes it as
// JSON into its job table, so the worker never reads rotation state.
type CycleClosedArgs struct {
	CycleID   string    `json:"cycle_id"`
	TeamID    string    `json:"team_id"`
	Target    string    `json:"target"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Reason    string    `json:"reason"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (CycleClosedArgs) Kind() string { return "cycle.closed" }

// ChannelHostedArgs records that a channel became a team's host target.
type ChannelHostedArgs struct {
	TeamID   string    `json:"team_id"`
	Channel  string    `json:"channel"`
	HostedAt time.Time `json:"hosted_at"`
}

func (ChannelHostedArgs) Kind() string { return "channel.hosted" }
