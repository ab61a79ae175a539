package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// MemberEnforcement counts how often a member was removed by one module.
type MemberEnforcement struct {
	GuildID    string
	UserID     string
	Category   string
	CountTotal int
	LastAt     time.Time
	LastAction string
}

func (s *Store) GetEnforcement(ctx context.Context, guildID, userID, category string) (MemberEnforcement, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT guild_id, user_id, category, count_total, last_at, COALESCE(last_action, '')
		FROM member_enforcements
		WHERE guild_id = ? AND user_id = ? AND category = ?
	`, guildID, userID, category)

	var rec MemberEnforcement
	var lastAt int64
	err := row.Scan(&rec.GuildID, &rec.UserID, &rec.Category, &rec.CountTotal, &lastAt, &rec.LastAction)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return MemberEnforcement{}, nil
		}
		return MemberEnforcement{}, err
	}
	rec.LastAt = time.Unix(lastAt, 0)
	return rec, nil
}

// RecordEnforcement bumps the member's counter and returns the new total.
func (s *Store) RecordEnforcement(ctx context.Context, guildID, userID, category, action string, at time.Time) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var count int
	row := tx.QueryRowContext(ctx, `
		SELECT count_total
		FROM member_enforcements
		WHERE guild_id = ? AND user_id = ? AND category = ?
	`, guildID, userID, category)
	scanErr := row.Scan(&count)
	if scanErr != nil && !errors.Is(scanErr, sql.ErrNoRows) {
		err = scanErr
		return 0, err
	}

	count++
	_, err = tx.ExecContext(ctx, `
		INSERT INTO member_enforcements (guild_id, user_id, category, count_total, last_at, last_action)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id, user_id, category) DO UPDATE SET
			count_total = excluded.count_total,
			last_at = excluded.last_at,
			last_action = excluded.last_action
	`, guildID, userID, category, count, at.Unix(), action)
	if err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}
