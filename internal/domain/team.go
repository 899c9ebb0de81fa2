package domain

import "time"

// Status represents the rotation state of a team.
type Status string

const (
	StatusOff     Status = "off"
	StatusIdle    Status = "idle"
	StatusHosting Status = "hosting"
)

// Event represents an action that triggers a state transition.
type Event string

const (
	EventStart   Event = "start"
	EventAssign  Event = "assign"
	EventRelease Event = "release"
	EventStop    Event = "stop"
)

// Transition defines a valid state change: an event moves a team from Src to Dst.
type Transition struct {
	Event Event
	Src   Status
	Dst   Status
}

// Transitions defines all valid state changes of a team's rotation.
// This is domain knowledge consumed by the FSM adapter.
var Transitions = []Transition{
	{Event: EventStart, Src: StatusOff, Dst: StatusIdle},
	{Event: EventAssign, Src: StatusIdle, Dst: StatusHosting},
	{Event: EventAssign, Src: StatusHosting, Dst: StatusHosting},
	{Event: EventRelease, Src: StatusHosting, Dst: StatusIdle},
	{Event: EventStop, Src: StatusIdle, Dst: StatusOff},
	{Event: EventStop, Src: StatusHosting, Dst: StatusOff},
}

// Team is one independently scheduled roster of channels.
type Team struct {
	ID             string
	Name           string
	ControlChannel string
	Channels       []string
	PreferredTags  []string
	HostLength     time.Duration
	RecheckLength  time.Duration
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewTeam creates a team with the given roster and rotation durations.
func NewTeam(id, name, controlChannel string, channels, preferredTags []string, hostLength, recheckLength time.Duration) Team {
	now := time.Now().UTC()
	return Team{
		ID:             id,
		Name:           name,
		ControlChannel: controlChannel,
		Channels:       append([]string(nil), channels...),
		PreferredTags:  append([]string(nil), preferredTags...),
		HostLength:     hostLength,
		RecheckLength:  recheckLength,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Validate checks that a team can be scheduled.
func (t Team) Validate() error {
	if t.ID == "" {
		return &ValidationError{Field: "id", Reason: "must not be empty"}
	}
	if len(t.Channels) == 0 {
		return &ValidationError{Field: "channels", Reason: "roster must list at least one channel"}
	}
	if t.HostLength <= 0 {
		return &ValidationError{Field: "host_length", Reason: "must be positive"}
	}
	if t.RecheckLength <= 0 {
		return &ValidationError{Field: "recheck_length", Reason: "must be positive"}
	}
	return nil
}

// Candidate is a live roster channel eligible for selection in the current cycle.
type Candidate struct {
	Name    string
	Tag     string
	Viewers int
}

// Identity is the result of resolving a channel name or handle.
type Identity struct {
	Exists bool
	Name   string
}

// EndReason explains why a hosting cycle ended.
type EndReason string

const (
	ReasonRotatedByTimeout   EndReason = "rotated_by_timeout"
	ReasonTargetWentOffline  EndReason = "target_went_offline"
	ReasonManuallyStopped    EndReason = "manually_stopped"
	ReasonManuallyOverridden EndReason = "manually_overridden"
)

// Cycle is one hosting period of a team.
type Cycle struct {
	ID        string
	TeamID    string
	Target    string
	StartedAt time.Time
	EndedAt   time.Time
	Reason    EndReason
}

// Duration returns how long the target was hosted.
func (c Cycle) Duration() time.Duration {
	return c.EndedAt.Sub(c.StartedAt)
}

// ChannelStat counts how often a channel was picked as a team's host target.
type ChannelStat struct {
	TeamID       string
	Channel      string
	HostCount    int
	LastHostedAt time.Time
}

// LogEntry is a persisted human-readable team message.
type LogEntry struct {
	TeamID    string
	Message   string
	CreatedAt time.Time
}

// Notice is an inbound system notice from the chat network.
type Notice struct {
	Channel string
	Kind    string
	Message string
}

// NoticeHostTargetWentOffline is the notice kind sent when a hosted channel goes offline.
const NoticeHostTargetWentOffline = "host_target_went_offline"
