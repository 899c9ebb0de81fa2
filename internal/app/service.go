package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/neomorfeo/teamhost/internal/domain"
)

// HostingService is the controller surface over all team rotations.
type HostingService struct {
	teams    domain.TeamStore
	ledger   domain.HostingLedger
	registry *Registry
}

// NewHostingService creates a service with the given adapters.
func NewHostingService(teams domain.TeamStore, ledger domain.HostingLedger, registry *Registry) *HostingService {
	return &HostingService{
		teams:    teams,
		ledger:   ledger,
		registry: registry,
	}
}

// RegisterTeam validates and stores a team. A running rotation picks up the
// new roster and durations on its next cycle.
func (s *HostingService) RegisterTeam(ctx context.Context, team domain.Team) (domain.Team, error) {
	if err := team.Validate(); err != nil {
		return domain.Team{}, err
	}

	now := time.Now().UTC()
	existing, err := s.teams.GetTeam(ctx, team.ID)
	switch {
	case err == nil:
		team.CreatedAt = existing.CreatedAt
	case errors.Is(err, domain.ErrTeamNotFound):
		team.CreatedAt = now
	default:
		return domain.Team{}, fmt.Errorf("loading team %q: %w", team.ID, err)
	}
	team.UpdatedAt = now

	if err := s.teams.SaveTeam(ctx, team); err != nil {
		return domain.Team{}, fmt.Errorf("saving team: %w", err)
	}

	if rt, ok := s.registry.lookup(team.ID); ok {
		if _, err := rt.submit(ctx, message{kind: msgReconfigure, team: team}); err != nil {
			return domain.Team{}, err
		}
	}
	return team, nil
}

// GetTeam returns a team by its identifier.
func (s *HostingService) GetTeam(ctx context.Context, id string) (domain.Team, error) {
	return s.teams.GetTeam(ctx, id)
}

// ListTeams returns every registered team.
func (s *HostingService) ListTeams(ctx context.Context) ([]domain.Team, error) {
	return s.teams.ListTeams(ctx)
}

// Start turns hosting on. Starting an active team does nothing.
func (s *HostingService) Start(ctx context.Context, teamID string) error {
	rt, err := s.registry.acquire(ctx, teamID)
	if err != nil {
		return err
	}
	_, err = rt.submit(ctx, message{kind: msgStart})
	return err
}

// Stop turns hosting off. When it returns no timer or offline notice of the
// team will cause further rotation.
func (s *HostingService) Stop(ctx context.Context, teamID string) error {
	rt, err := s.registry.acquire(ctx, teamID)
	if err != nil {
		return err
	}
	_, err = rt.submit(ctx, message{kind: msgStop})
	return err
}

// Host forces the team onto channel and returns the resolved display name.
// An inactive team is turned on first.
func (s *HostingService) Host(ctx context.Context, teamID, channel string) (string, error) {
	rt, err := s.registry.acquire(ctx, teamID)
	if err != nil {
		return "", err
	}
	res, err := rt.submit(ctx, message{kind: msgHost, channel: channel})
	if err != nil {
		return "", err
	}
	return res.name, nil
}

// Status returns the current rotation state of a team.
func (s *HostingService) Status(ctx context.Context, teamID string) (Snapshot, error) {
	rt, err := s.registry.acquire(ctx, teamID)
	if err != nil {
		return Snapshot{}, err
	}
	res, err := rt.submit(ctx, message{kind: msgStatus})
	if err != nil {
		return Snapshot{}, err
	}
	return res.snapshot, nil
}

// Stats returns how often each channel of the team was hosted.
func (s *HostingService) Stats(ctx context.Context, teamID string) ([]domain.ChannelStat, error) {
	if _, err := s.teams.GetTeam(ctx, teamID); err != nil {
		return nil, err
	}
	return s.ledger.ChannelStats(ctx, teamID)
}

// Cycles returns the team's most recent closed hosting cycles.
func (s *HostingService) Cycles(ctx context.Context, teamID string, limit int) ([]domain.Cycle, error) {
	if _, err := s.teams.GetTeam(ctx, teamID); err != nil {
		return nil, err
	}
	return s.ledger.Cycles(ctx, teamID, limit)
}

// Log returns the team's most recent human-readable messages.
func (s *HostingService) Log(ctx context.Context, teamID string, limit int) ([]domain.LogEntry, error) {
	if _, err := s.teams.GetTeam(ctx, teamID); err != nil {
		return nil, err
	}
	return s.ledger.Messages(ctx, teamID, limit)
}

// Shutdown releases every rotation without announcing anything.
func (s *HostingService) Shutdown() {
	s.registry.Close()
}
