package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/neomorfeo/teamhost/internal/domain"
)

// Compile-time check: Store implements domain.TeamStore.
var _ domain.TeamStore = (*Store)(nil)

// SaveTeam inserts or replaces a team's configuration. created_at is kept
// from the first insert.
func (s *Store) SaveTeam(ctx context.Context, t domain.Team) error {
	channels, err := json.Marshal(nonNil(t.Channels))
	if err != nil {
		return fmt.Errorf("encoding channels: %w", err)
	}
	tags, err := json.Marshal(nonNil(t.PreferredTags))
	if err != nil {
		return fmt.Errorf("encoding preferred tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO teams (id, name, control_channel, channels, preferred_tags,
		                    host_length_seconds, recheck_length_seconds, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     name = excluded.name,
		     control_channel = excluded.control_channel,
		     channels = excluded.channels,
		     preferred_tags = excluded.preferred_tags,
		     host_length_seconds = excluded.host_length_seconds,
		     recheck_length_seconds = excluded.recheck_length_seconds,
		     updated_at = excluded.updated_at`,
		t.ID, t.Name, t.ControlChannel, string(channels), string(tags),
		int64(t.HostLength/time.Second), int64(t.RecheckLength/time.Second),
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("saving team: %w", err)
	}
	return nil
}

func (s *Store) GetTeam(ctx context.Context, id string) (domain.Team, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, control_channel, channels, preferred_tags,
		        host_length_seconds, recheck_length_seconds, created_at, updated_at
		 FROM teams WHERE id = ?`, id,
	)
	t, err := scanTeam(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Team{}, domain.ErrTeamNotFound
	}
	return t, err
}

func (s *Store) ListTeams(ctx context.Context) ([]domain.Team, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, control_channel, channels, preferred_tags,
		        host_length_seconds, recheck_length_seconds, created_at, updated_at
		 FROM teams ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing teams: %w", err)
	}
	defer rows.Close()

	var teams []domain.Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTeam(row scanner) (domain.Team, error) {
	var t domain.Team
	var channels, tags, createdAt, updatedAt string
	var hostSeconds, recheckSeconds int64

	err := row.Scan(&t.ID, &t.Name, &t.ControlChannel, &channels, &tags,
		&hostSeconds, &recheckSeconds, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Team{}, err
		}
		return domain.Team{}, fmt.Errorf("scanning team: %w", err)
	}

	if err := json.Unmarshal([]byte(channels), &t.Channels); err != nil {
		return domain.Team{}, fmt.Errorf("decoding channels of team %q: %w", t.ID, err)
	}
	if err := json.Unmarshal([]byte(tags), &t.PreferredTags); err != nil {
		return domain.Team{}, fmt.Errorf("decoding preferred tags of team %q: %w", t.ID, err)
	}
	t.HostLength = time.Duration(hostSeconds) * time.Second
	t.RecheckLength = time.Duration(recheckSeconds) * time.Second
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)

	return t, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
