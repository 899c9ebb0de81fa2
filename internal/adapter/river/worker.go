package river

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/teamhost/internal/domain"
)

// CycleClosedWorker hands closed cycles to the durable recorder.
type CycleClosedWorker struct {
	river.WorkerDefaults[CycleClosedArgs]
	next domain.Recorder
}

// Work stores a single cycle. Returning an error lets River retry the job;
// the store ignores cycles it already has.
func (w *CycleClosedWorker) Work(ctx context.Context, job *river.Job[CycleClosedArgs]) error {
	slog.InfoContext(ctx, "recording closed cycle",
		"team_id", job.Args.TeamID,
		"cycle_id", job.Args.CycleID,
		"target", job.Args.Target,
		"reason", job.Args.Reason,
		"job_id", job.ID,
		"attempt", job.Attempt,
	)
	return w.next.CycleClosed(ctx, domain.Cycle{
		ID:        job.Args.CycleID,
		TeamID:    job.Args.TeamID,
		Target:    job.Args.Target,
		StartedAt: job.Args.StartedAt,
		EndedAt:   job.Args.EndedAt,
		Reason:    domain.EndReason(job.Args.Reason),
	})
}

// ChannelHostedWorker bumps channel usage counters.
type ChannelHostedWorker struct {
	river.WorkerDefaults[ChannelHostedArgs]
	next domain.Recorder
}

func (w *ChannelHostedWorker) Work(ctx context.Context, job *river.Job[ChannelHostedArgs]) error {
	slog.DebugContext(ctx, "recording hosted channel",
		"team_id", job.Args.TeamID,
		"channel", job.Args.Channel,
		"job_id", job.ID,
	)
	return w.next.ChannelHosted(ctx, job.Args.TeamID, job.Args.Channel, job.Args.HostedAt)
}
