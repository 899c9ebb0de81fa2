package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/neomorfeo/teamhost/internal/domain"
)

// Compile-time checks.
var (
	_ domain.Recorder      = (*Store)(nil)
	_ domain.EventLog      = (*Store)(nil)
	_ domain.HostingLedger = (*Store)(nil)
)

// ChannelHosted bumps the host count of a team's channel.
func (s *Store) ChannelHosted(ctx context.Context, teamID, channel string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO channel_stats (team_id, channel, host_count, last_hosted_at)
		 VALUES (?, ?, 1, ?)
		 ON CONFLICT(team_id, channel) DO UPDATE SET
		     host_count = host_count + 1,
		     last_hosted_at = excluded.last_hosted_at`,
		teamID, channel, formatTime(at),
	)
	if err != nil {
		return fmt.Errorf("recording hosted channel: %w", err)
	}
	return nil
}

// CycleClosed stores a finished hosting cycle. Replaying the same cycle is a no-op.
func (s *Store) CycleClosed(ctx context.Context, c domain.Cycle) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO host_cycles (id, team_id, target, started_at, ended_at, reason)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		c.ID, c.TeamID, c.Target, formatTime(c.StartedAt), formatTime(c.EndedAt), string(c.Reason),
	)
	if err != nil {
		return fmt.Errorf("recording cycle: %w", err)
	}
	return nil
}

func (s *Store) LogMessage(ctx context.Context, teamID, text string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO event_log (team_id, message, created_at) VALUES (?, ?, ?)`,
		teamID, text, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("writing event log: %w", err)
	}
	return nil
}

// ChannelStats returns a team's channels, most hosted first.
func (s *Store) ChannelStats(ctx context.Context, teamID string) ([]domain.ChannelStat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT team_id, channel, host_count, last_hosted_at
		 FROM channel_stats WHERE team_id = ?
		 ORDER BY host_count DESC, channel ASC`, teamID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing channel stats: %w", err)
	}
	defer rows.Close()

	var stats []domain.ChannelStat
	for rows.Next() {
		var st domain.ChannelStat
		var lastHosted string
		if err := rows.Scan(&st.TeamID, &st.Channel, &st.HostCount, &lastHosted); err != nil {
			return nil, fmt.Errorf("scanning channel stat: %w", err)
		}
		st.LastHostedAt = parseTime(lastHosted)
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// Cycles returns a team's closed cycles, most recent first. A non-positive
// limit returns all of them.
func (s *Store) Cycles(ctx context.Context, teamID string, limit int) ([]domain.Cycle, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, team_id, target, started_at, ended_at, reason
		 FROM host_cycles WHERE team_id = ?
		 ORDER BY ended_at DESC, rowid DESC
		 LIMIT ?`, teamID, sqlLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("listing cycles: %w", err)
	}
	defer rows.Close()

	var cycles []domain.Cycle
	for rows.Next() {
		var c domain.Cycle
		var startedAt, endedAt, reason string
		if err := rows.Scan(&c.ID, &c.TeamID, &c.Target, &startedAt, &endedAt, &reason); err != nil {
			return nil, fmt.Errorf("scanning cycle: %w", err)
		}
		c.StartedAt = parseTime(startedAt)
		c.EndedAt = parseTime(endedAt)
		c.Reason = domain.EndReason(reason)
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}

// Messages returns the last limit messages of a team in the order they were written.
func (s *Store) Messages(ctx context.Context, teamID string, limit int) ([]domain.LogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT team_id, message, created_at FROM (
		     SELECT id, team_id, message, created_at
		     FROM event_log WHERE team_id = ?
		     ORDER BY id DESC LIMIT ?
		 ) ORDER BY id ASC`, teamID, sqlLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("listing event log: %w", err)
	}
	defer rows.Close()

	var entries []domain.LogEntry
	for rows.Next() {
		var e domain.LogEntry
		var createdAt string
		if err := rows.Scan(&e.TeamID, &e.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning event log entry: %w", err)
		}
		e.CreatedAt = parseTime(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// sqlLimit maps "no limit" to SQLite's LIMIT -1.
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
