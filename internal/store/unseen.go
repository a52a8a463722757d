package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UnseenCounts returns, for receiver, the number of unseen messages per
// sender. Senders with nothing unseen are omitted.
func (db *DB) UnseenCounts(ctx context.Context, receiver string) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT sender_id, count FROM unseen_counts
		WHERE receiver_id = ? AND count > 0`, receiver)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			sender string
			n      int
		)
		if err := rows.Scan(&sender, &n); err != nil {
			return nil, err
		}
		counts[sender] = n
	}
	return counts, rows.Err()
}

// CountUnseen counts unseen messages from sender to receiver directly from
// the messages table, bypassing the index.
func (db *DB) CountUnseen(ctx context.Context, sender, receiver string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE sender_id = ? AND receiver_id = ? AND seen = 0`, sender, receiver).Scan(&n)
	return n, err
}

// RebuildUnseenIndex recomputes every unseen counter from the messages table
// and returns how many (receiver, sender) pairs had drifted.
func (db *DB) RebuildUnseenIndex(ctx context.Context) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	type pair struct{ receiver, sender string }
	load := func(query string) (map[pair]int, error) {
		rows, err := tx.QueryContext(ctx, query)
		if err != nil {
			return nil, err
		}
		defer func() { _ = rows.Close() }()
		out := make(map[pair]int)
		for rows.Next() {
			var (
				p pair
				n int
			)
			if err := rows.Scan(&p.receiver, &p.sender, &n); err != nil {
				return nil, err
			}
			if n > 0 {
				out[p] = n
			}
		}
		return out, rows.Err()
	}

	truth, err := load(`SELECT receiver_id, sender_id, COUNT(*) FROM messages WHERE seen = 0 GROUP BY receiver_id, sender_id`)
	if err != nil {
		return 0, fmt.Errorf("count unseen: %w", err)
	}
	indexed, err := load(`SELECT receiver_id, sender_id, count FROM unseen_counts`)
	if err != nil {
		return 0, fmt.Errorf("read index: %w", err)
	}

	drifted := 0
	for p, n := range truth {
		if indexed[p] != n {
			drifted++
		}
	}
	for p := range indexed {
		if _, ok := truth[p]; !ok {
			drifted++
		}
	}
	if drifted == 0 {
		return 0, nil
	}

	if _, err := tx.ExecContext(ctx, `UPDATE unseen_counts SET count = 0, updated_at = ?`, time.Now().UnixMilli()); err != nil {
		return 0, fmt.Errorf("reset index: %w", err)
	}
	for p, n := range truth {
		if err := setUnseen(ctx, tx, p.receiver, p.sender, n); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit rebuild: %w", err)
	}
	return drifted, nil
}

func incrementUnseen(ctx context.Context, tx *sql.Tx, receiver, sender string, n int) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO unseen_counts (receiver_id, sender_id, count, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(receiver_id, sender_id) DO UPDATE SET
			count = unseen_counts.count + excluded.count,
			updated_at = excluded.updated_at`,
		receiver, sender, n, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("increment unseen: %w", err)
	}
	return nil
}

// decrementUnseen subtracts n from the counter, clamping at zero. It reports
// whether clamping was needed.
func decrementUnseen(ctx context.Context, tx *sql.Tx, receiver, sender string, n int) (bool, error) {
	var current int
	err := tx.QueryRowContext(ctx, `
		SELECT count FROM unseen_counts WHERE receiver_id = ? AND sender_id = ?`,
		receiver, sender).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("read unseen: %w", err)
	}

	next := current - n
	underflow := next < 0
	if underflow {
		next = 0
	}
	if err := setUnseen(ctx, tx, receiver, sender, next); err != nil {
		return false, err
	}
	return underflow, nil
}

func setUnseen(ctx context.Context, tx *sql.Tx, receiver, sender string, n int) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO unseen_counts (receiver_id, sender_id, count, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(receiver_id, sender_id) DO UPDATE SET
			count = excluded.count,
			updated_at = excluded.updated_at`,
		receiver, sender, n, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("set unseen: %w", err)
	}
	return nil
}
