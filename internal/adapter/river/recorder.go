package river

import (
	"context"
	"fmt"
	"time"

	"github.com/neomorfeo/teamhost/internal/domain"
)

// Compile-time check: Recorder implements domain.Recorder.
var _ domain.Recorder = (*Recorder)(nil)

// Recorder implements domain.Recorder by enqueuing River jobs. The rotation
// only waits for the insert; the workers apply the records later.
type Recorder struct {
	client *Client
}

// NewRecorder creates a recorder backed by the given River client.
func NewRecorder(client *Client) *Recorder {
	return &Recorder{client: client}
}

func (r *Recorder) ChannelHosted(ctx context.Context, teamID, channel string, at time.Time) error {
	_, err := r.client.Insert(ctx, ChannelHostedArgs{
		TeamID:   teamID,
		Channel:  channel,
		HostedAt: at,
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing channel hosted job: %w", err)
	}
	return nil
}

func (r *Recorder) CycleClosed(ctx context.Context, c domain.Cycle) error {
	_, err := r.client.Insert(ctx, CycleClosedArgs{
		CycleID:   c.ID,
		TeamID:    c.TeamID,
		Target:    c.Target,
		StartedAt: c.StartedAt,
		EndedAt:   c.EndedAt,
		Reason:    string(c.Reason),
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing cycle closed job: %w", err)
	}
	return nil
}
