package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/teamhost/internal/domain"
)

const tracerName = "github.com/neomorfeo/teamhost/internal/adapter/otel"

func recordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// TracingCandidateSource wraps a domain.CandidateSource with OpenTelemetry tracing.
type TracingCandidateSource struct {
	next   domain.CandidateSource
	tracer trace.Tracer
}

// Compile-time check: TracingCandidateSource implements domain.CandidateSource.
var _ domain.CandidateSource = (*TracingCandidateSource)(nil)

// NewTracingCandidateSource creates a tracing decorator around the given source.
func NewTracingCandidateSource(next domain.CandidateSource) *TracingCandidateSource {
	return &TracingCandidateSource{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (s *TracingCandidateSource) LiveChannels(ctx context.Context, channels []string) ([]domain.Candidate, error) {
	ctx, span := s.tracer.Start(ctx, "CandidateSource.LiveChannels",
		trace.WithAttributes(attribute.Int("roster.size", len(channels))),
	)
	defer span.End()

	candidates, err := s.next.LiveChannels(ctx, channels)
	recordError(span, err)
	if err == nil {
		span.SetAttributes(attribute.Int("result.count", len(candidates)))
	}
	return candidates, err
}

func (s *TracingCandidateSource) OfflineChannels(ctx context.Context, channels []string) ([]string, error) {
	ctx, span := s.tracer.Start(ctx, "CandidateSource.OfflineChannels",
		trace.WithAttributes(attribute.Int("roster.size", len(channels))),
	)
	defer span.End()

	offline, err := s.next.OfflineChannels(ctx, channels)
	recordError(span, err)
	if err == nil {
		span.SetAttributes(attribute.Int("result.count", len(offline)))
	}
	return offline, err
}

func (s *TracingCandidateSource) ResolveChannel(ctx context.Context, nameOrHandle string) (domain.Identity, error) {
	ctx, span := s.tracer.Start(ctx, "CandidateSource.ResolveChannel",
		trace.WithAttributes(attribute.String("channel.name", nameOrHandle)),
	)
	defer span.End()

	id, err := s.next.ResolveChannel(ctx, nameOrHandle)
	recordError(span, err)
	span.SetAttributes(attribute.Bool("channel.exists", id.Exists))
	return id, err
}

// TracingTeamStore wraps a domain.TeamStore with OpenTelemetry tracing.
type TracingTeamStore struct {
	next   domain.TeamStore
	tracer trace.Tracer
}

// Compile-time check: TracingTeamStore implements domain.TeamStore.
var _ domain.TeamStore = (*TracingTeamStore)(nil)

// NewTracingTeamStore creates a tracing decorator around the given store.
func NewTracingTeamStore(next domain.TeamStore) *TracingTeamStore {
	return &TracingTeamStore{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (s *TracingTeamStore) SaveTeam(ctx context.Context, team domain.Team) error {
	ctx, span := s.tracer.Start(ctx, "TeamStore.SaveTeam",
		trace.WithAttributes(
			attribute.String("team.id", team.ID),
			attribute.Int("roster.size", len(team.Channels)),
		),
	)
	defer span.End()

	err := s.next.SaveTeam(ctx, team)
	recordError(span, err)
	return err
}

func (s *TracingTeamStore) GetTeam(ctx context.Context, id string) (domain.Team, error) {
	ctx, span := s.tracer.Start(ctx, "TeamStore.GetTeam",
		trace.WithAttributes(attribute.String("team.id", id)),
	)
	defer span.End()

	team, err := s.next.GetTeam(ctx, id)
	recordError(span, err)
	return team, err
}

func (s *TracingTeamStore) ListTeams(ctx context.Context) ([]domain.Team, error) {
	ctx, span := s.tracer.Start(ctx, "TeamStore.ListTeams")
	defer span.End()

	teams, err := s.next.ListTeams(ctx)
	recordError(span, err)
	if err == nil {
		span.SetAttributes(attribute.Int("result.count", len(teams)))
	}
	return teams, err
}

// TracingTransport wraps a domain.Transport with OpenTelemetry tracing of
// outbound messages and directives. Subscriptions are passed through.
type TracingTransport struct {
	next   domain.Transport
	tracer trace.Tracer
}

// Compile-time check: TracingTransport implements domain.Transport.
var _ domain.Transport = (*TracingTransport)(nil)

// NewTracingTransport creates a tracing decorator around the given transport.
func NewTracingTransport(next domain.Transport) *TracingTransport {
	return &TracingTransport{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (t *TracingTransport) Announce(ctx context.Context, channel, text string) error {
	ctx, span := t.tracer.Start(ctx, "Transport.Announce",
		trace.WithAttributes(attribute.String("channel.name", channel)),
	)
	defer span.End()

	err := t.next.Announce(ctx, channel, text)
	recordError(span, err)
	return err
}

func (t *TracingTransport) Host(ctx context.Context, observer, target string) error {
	ctx, span := t.tracer.Start(ctx, "Transport.Host",
		trace.WithAttributes(
			attribute.String("channel.name", observer),
			attribute.String("host.target", target),
		),
	)
	defer span.End()

	err := t.next.Host(ctx, observer, target)
	recordError(span, err)
	return err
}

func (t *TracingTransport) Unhost(ctx context.Context, observer string) error {
	ctx, span := t.tracer.Start(ctx, "Transport.Unhost",
		trace.WithAttributes(attribute.String("channel.name", observer)),
	)
	defer span.End()

	err := t.next.Unhost(ctx, observer)
	recordError(span, err)
	return err
}

func (t *TracingTransport) SubscribeNotices(teamID string, handler domain.NoticeHandler) domain.Subscription {
	return t.next.SubscribeNotices(teamID, handler)
}

func (t *TracingTransport) Unsubscribe(sub domain.Subscription) {
	t.next.Unsubscribe(sub)
}
