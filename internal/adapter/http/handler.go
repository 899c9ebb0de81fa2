package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/teamhost/internal/app"
	"github.com/neomorfeo/teamhost/internal/domain"
)

const timestampFormat = "2006-01-02T15:04:05Z"

// NoticeDispatcher delivers inbound chat notices to a team's subscribers.
type NoticeDispatcher interface {
	Dispatch(teamID string, notice domain.Notice) int
}

// TeamResponse is the API representation of a team's configuration.
type TeamResponse struct {
	ID                   string   `json:"id" doc:"Unique identifier"`
	Name                 string   `json:"name" doc:"Display name"`
	ControlChannel       string   `json:"control_channel" doc:"Channel receiving operator announcements"`
	Channels             []string `json:"channels" doc:"Roster channels in order"`
	PreferredTags        []string `json:"preferred_tags" doc:"Activity tags preferred during selection"`
	HostLengthSeconds    int64    `json:"host_length_seconds" doc:"How long a target is hosted before rotating"`
	RecheckLengthSeconds int64    `json:"recheck_length_seconds" doc:"Delay before retrying when nobody is live"`
	CreatedAt            string   `json:"created_at" doc:"Creation timestamp (ISO 8601)"`
	UpdatedAt            string   `json:"updated_at" doc:"Last update timestamp (ISO 8601)"`
}

func toTeamResponse(t domain.Team) TeamResponse {
	return TeamResponse{
		ID:                   t.ID,
		Name:                 t.Name,
		ControlChannel:       t.ControlChannel,
		Channels:             nonNil(t.Channels),
		PreferredTags:        nonNil(t.PreferredTags),
		HostLengthSeconds:    int64(t.HostLength / time.Second),
		RecheckLengthSeconds: int64(t.RecheckLength / time.Second),
		CreatedAt:            t.CreatedAt.UTC().Format(timestampFormat),
		UpdatedAt:            t.UpdatedAt.UTC().Format(timestampFormat),
	}
}

// RotationResponse is the API representation of a team's rotation state.
type RotationResponse struct {
	Status    string `json:"status" doc:"Rotation state" enum:"off,idle,hosting"`
	Target    string `json:"target,omitempty" doc:"Currently hosted channel"`
	StartedAt string `json:"started_at,omitempty" doc:"When the current target was picked (ISO 8601)"`
	HostedFor string `json:"hosted_for,omitempty" doc:"Elapsed hosting time, H:MM:SS"`
}

func toRotationResponse(s app.Snapshot) RotationResponse {
	r := RotationResponse{
		Status:    string(s.Status),
		Target:    s.Target,
		HostedFor: s.HostedFor,
	}
	if !s.StartedAt.IsZero() {
		r.StartedAt = s.StartedAt.UTC().Format(timestampFormat)
	}
	return r
}

// TeamDetailResponse combines configuration and live rotation state.
type TeamDetailResponse struct {
	TeamResponse
	Rotation RotationResponse `json:"rotation"`
}

// ChannelStatResponse is how often a channel was hosted.
type ChannelStatResponse struct {
	Channel      string `json:"channel"`
	HostCount    int    `json:"host_count"`
	LastHostedAt string `json:"last_hosted_at"`
}

// CycleResponse is a closed hosting cycle.
type CycleResponse struct {
	ID              string `json:"id"`
	Target          string `json:"target"`
	StartedAt       string `json:"started_at"`
	EndedAt         string `json:"ended_at"`
	DurationSeconds int64  `json:"duration_seconds"`
	Reason          string `json:"reason" enum:"rotated_by_timeout,target_went_offline,manually_stopped,manually_overridden"`
}

// LogEntryResponse is one human-readable team message.
type LogEntryResponse struct {
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

// --- Register Team ---

type PutTeamInput struct {
	ID   string `path:"id" doc:"Team ID" minLength:"1" maxLength:"100"`
	Body struct {
		Name                 string   `json:"name" minLength:"1" maxLength:"255" doc:"Display name"`
		ControlChannel       string   `json:"control_channel,omitempty" doc:"Channel receiving operator announcements"`
		Channels             []string `json:"channels" minItems:"1" doc:"Roster channels in order"`
		PreferredTags        []string `json:"preferred_tags,omitempty" doc:"Activity tags preferred during selection"`
		HostLengthSeconds    int64    `json:"host_length_seconds,omitempty" default:"1800" minimum:"1" doc:"Hosting period"`
		RecheckLengthSeconds int64    `json:"recheck_length_seconds,omitempty" default:"300" minimum:"1" doc:"Retry delay when nobody is live"`
	}
}

type TeamOutput struct {
	Body TeamResponse
}

// --- Team lookups ---

type TeamPathInput struct {
	ID string `path:"id" doc:"Team ID"`
}

type TeamDetailOutput struct {
	Body TeamDetailResponse
}

type ListTeamsOutput struct {
	Body []TeamResponse
}

type RotationOutput struct {
	Body RotationResponse
}

// --- Manual host ---

type HostInput struct {
	ID   string `path:"id" doc:"Team ID"`
	Body struct {
		Channel string `json:"channel" minLength:"1" doc:"Channel name or handle to host"`
	}
}

type HostOutput struct {
	Body struct {
		Target   string           `json:"target" doc:"Resolved display name of the hosted channel"`
		Rotation RotationResponse `json:"rotation"`
	}
}

// --- History ---

type HistoryInput struct {
	ID    string `path:"id" doc:"Team ID"`
	Limit int    `query:"limit" required:"false" default:"50" minimum:"1" maximum:"1000" doc:"Max results"`
}

type StatsOutput struct {
	Body []ChannelStatResponse
}

type CyclesOutput struct {
	Body []CycleResponse
}

type LogOutput struct {
	Body []LogEntryResponse
}

// --- Notices ---

type NoticeInput struct {
	ID   string `path:"id" doc:"Team ID"`
	Body struct {
		Channel string `json:"channel" doc:"Channel the notice arrived on"`
		Kind    string `json:"kind" minLength:"1" doc:"Notice identifier, e.g. host_target_went_offline"`
		Message string `json:"message" doc:"Notice text"`
	}
}

type NoticeOutput struct {
	Body struct {
		Delivered int `json:"delivered" doc:"Number of subscribers that received the notice"`
	}
}

// Register adds all team API routes to the Huma API.
func Register(api huma.API, svc *app.HostingService, notices NoticeDispatcher) {
	huma.Register(api, huma.Operation{
		OperationID: "put-team",
		Method:      http.MethodPut,
		Path:        "/api/v1/teams/{id}",
		Summary:     "Register or update a team",
		Tags:        []string{"Teams"},
	}, func(ctx context.Context, input *PutTeamInput) (*TeamOutput, error) {
		team := domain.NewTeam(input.ID, input.Body.Name, input.Body.ControlChannel,
			input.Body.Channels, input.Body.PreferredTags,
			time.Duration(input.Body.HostLengthSeconds)*time.Second,
			time.Duration(input.Body.RecheckLengthSeconds)*time.Second,
		)
		saved, err := svc.RegisterTeam(ctx, team)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &TeamOutput{Body: toTeamResponse(saved)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-teams",
		Method:      http.MethodGet,
		Path:        "/api/v1/teams",
		Summary:     "List teams",
		Tags:        []string{"Teams"},
	}, func(ctx context.Context, _ *struct{}) (*ListTeamsOutput, error) {
		teams, err := svc.ListTeams(ctx)
		if err != nil {
			return nil, toHumaError(err)
		}
		resp := make([]TeamResponse, len(teams))
		for i, t := range teams {
			resp[i] = toTeamResponse(t)
		}
		return &ListTeamsOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-team",
		Method:      http.MethodGet,
		Path:        "/api/v1/teams/{id}",
		Summary:     "Get a team and its rotation state",
		Tags:        []string{"Teams"},
	}, func(ctx context.Context, input *TeamPathInput) (*TeamDetailOutput, error) {
		team, err := svc.GetTeam(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		snap, err := svc.Status(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &TeamDetailOutput{Body: TeamDetailResponse{
			TeamResponse: toTeamResponse(team),
			Rotation:     toRotationResponse(snap),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "start-team",
		Method:      http.MethodPost,
		Path:        "/api/v1/teams/{id}/start",
		Summary:     "Turn hosting on",
		Tags:        []string{"Rotation"},
	}, func(ctx context.Context, input *TeamPathInput) (*RotationOutput, error) {
		if err := svc.Start(ctx, input.ID); err != nil {
			return nil, toHumaError(err)
		}
		return rotationOutput(ctx, svc, input.ID)
	})

	huma.Register(api, huma.Operation{
		OperationID: "stop-team",
		Method:      http.MethodPost,
		Path:        "/api/v1/teams/{id}/stop",
		Summary:     "Turn hosting off",
		Tags:        []string{"Rotation"},
	}, func(ctx context.Context, input *TeamPathInput) (*RotationOutput, error) {
		if err := svc.Stop(ctx, input.ID); err != nil {
			return nil, toHumaError(err)
		}
		return rotationOutput(ctx, svc, input.ID)
	})

	huma.Register(api, huma.Operation{
		OperationID: "host-channel",
		Method:      http.MethodPost,
		Path:        "/api/v1/teams/{id}/host",
		Summary:     "Host a specific channel now",
		Tags:        []string{"Rotation"},
	}, func(ctx context.Context, input *HostInput) (*HostOutput, error) {
		name, err := svc.Host(ctx, input.ID, input.Body.Channel)
		if err != nil {
			return nil, toHumaError(err)
		}
		snap, err := svc.Status(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &HostOutput{}
		out.Body.Target = name
		out.Body.Rotation = toRotationResponse(snap)
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "team-stats",
		Method:      http.MethodGet,
		Path:        "/api/v1/teams/{id}/stats",
		Summary:     "Host counts per channel",
		Tags:        []string{"History"},
	}, func(ctx context.Context, input *TeamPathInput) (*StatsOutput, error) {
		stats, err := svc.Stats(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		resp := make([]ChannelStatResponse, len(stats))
		for i, st := range stats {
			resp[i] = ChannelStatResponse{
				Channel:      st.Channel,
				HostCount:    st.HostCount,
				LastHostedAt: st.LastHostedAt.UTC().Format(timestampFormat),
			}
		}
		return &StatsOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "team-cycles",
		Method:      http.MethodGet,
		Path:        "/api/v1/teams/{id}/cycles",
		Summary:     "Closed hosting cycles, most recent first",
		Tags:        []string{"History"},
	}, func(ctx context.Context, input *HistoryInput) (*CyclesOutput, error) {
		cycles, err := svc.Cycles(ctx, input.ID, input.Limit)
		if err != nil {
			return nil, toHumaError(err)
		}
		resp := make([]CycleResponse, len(cycles))
		for i, c := range cycles {
			resp[i] = CycleResponse{
				ID:              c.ID,
				Target:          c.Target,
				StartedAt:       c.StartedAt.UTC().Format(timestampFormat),
				EndedAt:         c.EndedAt.UTC().Format(timestampFormat),
				DurationSeconds: int64(c.Duration() / time.Second),
				Reason:          string(c.Reason),
			}
		}
		return &CyclesOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "team-log",
		Method:      http.MethodGet,
		Path:        "/api/v1/teams/{id}/log",
		Summary:     "Recent team messages",
		Tags:        []string{"History"},
	}, func(ctx context.Context, input *HistoryInput) (*LogOutput, error) {
		entries, err := svc.Log(ctx, input.ID, input.Limit)
		if err != nil {
			return nil, toHumaError(err)
		}
		resp := make([]LogEntryResponse, len(entries))
		for i, e := range entries {
			resp[i] = LogEntryResponse{
				Message:   e.Message,
				CreatedAt: e.CreatedAt.UTC().Format(timestampFormat),
			}
		}
		return &LogOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "post-notice",
		Method:      http.MethodPost,
		Path:        "/api/v1/teams/{id}/notices",
		Summary:     "Deliver an inbound chat notice",
		Tags:        []string{"Chat"},
	}, func(ctx context.Context, input *NoticeInput) (*NoticeOutput, error) {
		if _, err := svc.GetTeam(ctx, input.ID); err != nil {
			return nil, toHumaError(err)
		}
		out := &NoticeOutput{}
		out.Body.Delivered = notices.Dispatch(input.ID, domain.Notice{
			Channel: input.Body.Channel,
			Kind:    input.Body.Kind,
			Message: input.Body.Message,
		})
		return out, nil
	})
}

func rotationOutput(ctx context.Context, svc *app.HostingService, teamID string) (*RotationOutput, error) {
	snap, err := svc.Status(ctx, teamID)
	if err != nil {
		return nil, toHumaError(err)
	}
	return &RotationOutput{Body: toRotationResponse(snap)}, nil
}

// toHumaError translates domain errors to Huma HTTP errors.
func toHumaError(err error) error {
	if errors.Is(err, domain.ErrTeamNotFound) {
		return huma.Error404NotFound("team not found")
	}

	var notFound *domain.ChannelNotFoundError
	if errors.As(err, &notFound) {
		return huma.Error404NotFound(notFound.Error())
	}

	var trErr *domain.TransitionError
	if errors.As(err, &trErr) {
		return huma.Error422UnprocessableEntity(trErr.Error())
	}

	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		return huma.Error422UnprocessableEntity(vErr.Error())
	}

	if errors.Is(err, domain.ErrRotorClosed) {
		return huma.Error503ServiceUnavailable("shutting down")
	}

	return huma.Error500InternalServerError("internal server error")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
