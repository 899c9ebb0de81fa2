package app

import (
	"context"
	"sync"

	"github.com/neomorfeo/teamhost/internal/domain"
)

// Registry owns one rotor per team. Rotors are created lazily the first time
// a team receives a command and live until Close.
type Registry struct {
	teams domain.TeamStore
	deps  Deps

	mu     sync.Mutex
	rotors map[string]*rotor
	closed bool
}

// NewRegistry creates an empty registry. Rotors load their team from teams.
func NewRegistry(teams domain.TeamStore, deps Deps) *Registry {
	return &Registry{
		teams:  teams,
		deps:   deps,
		rotors: make(map[string]*rotor),
	}
}

// acquire returns the team's rotor, starting one if needed.
func (r *Registry) acquire(ctx context.Context, teamID string) (*rotor, error) {
	if rt, ok := r.lookup(teamID); ok {
		return rt, nil
	}

	team, err := r.teams.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, domain.ErrRotorClosed
	}
	if rt, ok := r.rotors[teamID]; ok {
		return rt, nil
	}
	rt := newRotor(team, r.deps)
	r.rotors[teamID] = rt
	return rt, nil
}

func (r *Registry) lookup(teamID string) (*rotor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.rotors[teamID]
	return rt, ok
}

// Close shuts down every rotor and waits for them to release their timers
// and subscriptions. Announcements are not sent.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	rotors := make([]*rotor, 0, len(r.rotors))
	for _, rt := range r.rotors {
		rotors = append(rotors, rt)
	}
	r.mu.Unlock()

	for _, rt := range rotors {
		rt.shutdown()
	}
}
