package store

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyMessage is returned when a message has neither text nor image.
var ErrEmptyMessage = errors.New("message has neither text nor image")

const messageColumns = `seq, id, sender_id, receiver_id, text, image, seen, created_at`

// CreateMessage persists m and counts it as unseen for its receiver in the
// same transaction. ID and CreatedAt are assigned here.
func (db *DB) CreateMessage(ctx context.Context, m *Message) error {
	if m.Text == "" && m.Image == "" {
		return ErrEmptyMessage
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := requireUsers(ctx, tx, m.SenderID, m.ReceiverID); err != nil {
		return err
	}

	m.ID = uuid.NewString()
	m.CreatedAt = time.Now().UnixMilli()
	m.Seen = false

	res, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, sender_id, receiver_id, text, image, seen, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)`,
		m.ID, m.SenderID, m.ReceiverID, nullString(m.Text), nullString(m.Image), m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if m.Seq, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("message seq: %w", err)
	}

	if err := incrementUnseen(ctx, tx, m.ReceiverID, m.SenderID, 1); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit message: %w", err)
	}
	return nil
}

// FindConversation returns every message exchanged between a and b, oldest first.
func (db *DB) FindConversation(ctx context.Context, a, b string) ([]Message, error) {
	return queryConversation(ctx, db, a, b)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryConversation(ctx context.Context, q querier, a, b string) ([]Message, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
		ORDER BY created_at ASC, seq ASC`, a, b, b, a)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

// GetMessage returns a message by ID or ErrNotFound.
func (db *DB) GetMessage(ctx context.Context, id string) (*Message, error) {
	m, err := scanMessage(db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("message %q: %w", id, ErrNotFound)
	}
	return m, err
}

// MarkSeenBulk flips every unseen message from sender to receiver and removes
// them from the receiver's unseen counter, atomically. A second call with no
// new messages in between affects nothing.
func (db *DB) MarkSeenBulk(ctx context.Context, sender, receiver string) (SeenResult, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return SeenResult{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := markSeenBulk(ctx, tx, sender, receiver)
	if err != nil {
		return SeenResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return SeenResult{}, fmt.Errorf("commit seen: %w", err)
	}
	return result, nil
}

// OpenConversation marks everything peer sent to reader as seen and reads
// the conversation back in the same transaction, so the history reflects
// exactly the flips made here and nothing committed after them.
func (db *DB) OpenConversation(ctx context.Context, reader, peer string) ([]Message, SeenResult, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, SeenResult{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := markSeenBulk(ctx, tx, peer, reader)
	if err != nil {
		return nil, SeenResult{}, err
	}
	msgs, err := queryConversation(ctx, tx, reader, peer)
	if err != nil {
		return nil, SeenResult{}, fmt.Errorf("find conversation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, SeenResult{}, fmt.Errorf("commit seen: %w", err)
	}
	return msgs, result, nil
}

func markSeenBulk(ctx context.Context, tx *sql.Tx, sender, receiver string) (SeenResult, error) {
	var result SeenResult

	rows, err := tx.QueryContext(ctx, `
		UPDATE messages SET seen = 1
		WHERE sender_id = ? AND receiver_id = ? AND seen = 0
		RETURNING id, created_at, seq`, sender, receiver)
	if err != nil {
		return result, fmt.Errorf("mark seen: %w", err)
	}
	type flipped struct {
		id        string
		createdAt int64
		seq       int64
	}
	var flips []flipped
	for rows.Next() {
		var f flipped
		if err := rows.Scan(&f.id, &f.createdAt, &f.seq); err != nil {
			_ = rows.Close()
			return result, err
		}
		flips = append(flips, f)
	}
	if err := rows.Close(); err != nil {
		return result, err
	}
	if err := rows.Err(); err != nil {
		return result, err
	}
	if len(flips) == 0 {
		return result, nil
	}

	// RETURNING order is unspecified.
	slices.SortFunc(flips, func(a, b flipped) int {
		if c := cmp.Compare(a.createdAt, b.createdAt); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
	for _, f := range flips {
		result.IDs = append(result.IDs, f.id)
	}

	if result.Underflow, err = decrementUnseen(ctx, tx, receiver, sender, len(flips)); err != nil {
		return SeenResult{}, err
	}
	return result, nil
}

// MarkSeenOne flips a single message, but only for its receiver. A requester
// that is not the receiver gets ErrForbidden and nothing is written.
// Acknowledging an already seen message succeeds with zero affected.
func (db *DB) MarkSeenOne(ctx context.Context, id, requester string) (*Message, SeenResult, error) {
	var result SeenResult

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, result, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	m, err := scanMessage(tx.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, result, fmt.Errorf("message %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, result, err
	}
	if m.ReceiverID != requester {
		return nil, result, fmt.Errorf("message %q: %w", id, ErrForbidden)
	}
	if m.Seen {
		return m, result, nil
	}

	if _, err := tx.ExecContext(ctx, `UPDATE messages SET seen = 1 WHERE id = ?`, id); err != nil {
		return nil, result, fmt.Errorf("mark seen: %w", err)
	}
	if result.Underflow, err = decrementUnseen(ctx, tx, m.ReceiverID, m.SenderID, 1); err != nil {
		return nil, SeenResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return nil, SeenResult{}, fmt.Errorf("commit seen: %w", err)
	}

	m.Seen = true
	result.IDs = []string{m.ID}
	return m, result, nil
}

// MessageCount returns the total number of messages.
func (db *DB) MessageCount(ctx context.Context) (int64, error) {
	var count int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*Message, error) {
	var (
		m     Message
		text  sql.NullString
		image sql.NullString
	)
	if err := row.Scan(&m.Seq, &m.ID, &m.SenderID, &m.ReceiverID, &text, &image, &m.Seen, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Text = text.String
	m.Image = image.String
	return &m, nil
}

func requireUsers(ctx context.Context, tx *sql.Tx, ids ...string) error {
	for _, id := range ids {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("user %q: %w", id, ErrNotFound)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
