package metrics

import (
	"context"
	"time"

	"github.com/neomorfeo/teamhost/internal/domain"
)

// Compile-time checks.
var (
	_ domain.Recorder        = (*Recorder)(nil)
	_ domain.CandidateSource = (*Source)(nil)
)

// Recorder counts cycles and assignments before passing them on.
type Recorder struct {
	next    domain.Recorder
	metrics *Metrics
}

// Recorder wraps next with rotation metrics.
func (m *Metrics) Recorder(next domain.Recorder) *Recorder {
	return &Recorder{next: next, metrics: m}
}

func (r *Recorder) ChannelHosted(ctx context.Context, teamID, channel string, at time.Time) error {
	r.metrics.ChannelsHosted.WithLabelValues(teamID).Inc()
	err := r.next.ChannelHosted(ctx, teamID, channel, at)
	if err != nil {
		r.metrics.RecordErrors.WithLabelValues("channel_hosted").Inc()
	}
	return err
}

func (r *Recorder) CycleClosed(ctx context.Context, c domain.Cycle) error {
	r.metrics.CyclesClosed.WithLabelValues(c.TeamID, string(c.Reason)).Inc()
	r.metrics.HostedDuration.WithLabelValues(c.TeamID).Observe(c.Duration().Seconds())
	err := r.next.CycleClosed(ctx, c)
	if err != nil {
		r.metrics.RecordErrors.WithLabelValues("cycle_closed").Inc()
	}
	return err
}

// Source measures candidate source lookups.
type Source struct {
	next    domain.CandidateSource
	metrics *Metrics
}

// Source wraps next with lookup metrics.
func (m *Metrics) Source(next domain.CandidateSource) *Source {
	return &Source{next: next, metrics: m}
}

func (s *Source) observe(operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.SourceRequests.WithLabelValues(operation, status).Inc()
	s.metrics.SourceDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (s *Source) LiveChannels(ctx context.Context, channels []string) ([]domain.Candidate, error) {
	start := time.Now()
	candidates, err := s.next.LiveChannels(ctx, channels)
	s.observe("live_channels", start, err)
	return candidates, err
}

func (s *Source) OfflineChannels(ctx context.Context, channels []string) ([]string, error) {
	start := time.Now()
	offline, err := s.next.OfflineChannels(ctx, channels)
	s.observe("offline_channels", start, err)
	return offline, err
}

func (s *Source) ResolveChannel(ctx context.Context, nameOrHandle string) (domain.Identity, error) {
	start := time.Now()
	id, err := s.next.ResolveChannel(ctx, nameOrHandle)
	s.observe("resolve_channel", start, err)
	return id, err
}
