package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Writer appends messages to the events table. Append runs inside the
// caller's transaction so the log commits atomically with the mutation.
type Writer struct {
	Now func() time.Time
}

func (w Writer) Append(ctx context.Context, tx *sql.Tx, m Message) error {
	now := w.Now
	if now == nil {
		now = time.Now
	}
	payload, err := json.Marshal(m.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(id,created,kind,action,payload) VALUES (?,?,?,?,?)`,
		uuid.NewString(), now().UTC().Unix(), m.Kind, m.Action, string(payload))
	return err
}

// Logged is one row of the durable event log.
type Logged struct {
	ID      string         `json:"id"`
	Created int64          `json:"created"`
	Kind    string         `json:"kind"`
	Action  string         `json:"action"`
	Payload map[string]any `json:"payload"`
}

// Tail returns the most recent events, newest first.
func Tail(ctx context.Context, db *sql.DB, limit int) ([]Logged, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx, `SELECT id,created,kind,action,payload FROM events ORDER BY created DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Logged
	for rows.Next() {
		var e Logged
		var payload string
		if err := rows.Scan(&e.ID, &e.Created, &e.Kind, &e.Action, &payload); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal event payload: %w", err)
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
