package db

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Decision represents a row in the decisions table.
type Decision struct {
	ID           string `json:"id"`
	Conversation string `json:"conversation"`
	CardID       string `json:"card_id,omitempty"`
	R            int    `json:"R"`
	H            int    `json:"H"`
	O            int    `json:"O"`
	RhoSum       int    `json:"rho_sum"`
	Action       string `json:"action"`
	Trigger      string `json:"trigger"`
	Level        int    `json:"level"`
	Summary      string `json:"summary,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// TimeLayout is the fixed-width UTC layout of created_at. Every stored value
// has the same length, so ordering and range filters on the text column
// follow time order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// LogDecision inserts a decision. ID and CreatedAt are filled in when empty;
// a given CreatedAt must be RFC3339 and is stored in TimeLayout. The stored
// ID is returned.
func (d *DB) LogDecision(dec Decision) (string, error) {
	if dec.ID == "" {
		dec.ID = uuid.NewString()
	}
	if dec.CreatedAt == "" {
		dec.CreatedAt = FormatTime(time.Now())
	} else {
		t, err := time.Parse(time.RFC3339Nano, dec.CreatedAt)
		if err != nil {
			return "", fmt.Errorf("log decision: created_at: %w", err)
		}
		dec.CreatedAt = FormatTime(t)
	}
	_, err := d.conn.Exec(d.Rebind(
		`INSERT INTO decisions (id, conversation, card_id, r, h, o, rho_sum, action, trigger_fired, level, summary, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		dec.ID, dec.Conversation, dec.CardID, dec.R, dec.H, dec.O, dec.RhoSum,
		dec.Action, dec.Trigger, dec.Level, dec.Summary, dec.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("log decision: %w", err)
	}
	return dec.ID, nil
}

// ListDecisions returns logged decisions oldest first. An empty conversation
// lists every conversation; limit <= 0 means no limit, otherwise the most
// recent limit rows are returned.
func (d *DB) ListDecisions(conversation string, limit int) ([]Decision, error) {
	query := `SELECT id, conversation, card_id, r, h, o, rho_sum, action, trigger_fired, level, summary, created_at
		 FROM decisions`
	var args []interface{}
	if conversation != "" {
		query += " WHERE conversation = ?"
		args = append(args, conversation)
	}
	query += " ORDER BY created_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.conn.Query(d.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		var dec Decision
		if err := rows.Scan(&dec.ID, &dec.Conversation, &dec.CardID, &dec.R, &dec.H, &dec.O,
			&dec.RhoSum, &dec.Action, &dec.Trigger, &dec.Level, &dec.Summary, &dec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		out = append(out, dec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}

	// Reverse into chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// CountDecisions returns how many decisions were logged for a conversation
// (all conversations when empty).
func (d *DB) CountDecisions(conversation string) (int, error) {
	query := "SELECT COUNT(*) FROM decisions"
	var args []interface{}
	if conversation != "" {
		query += " WHERE conversation = ?"
		args = append(args, conversation)
	}
	var n int
	if err := d.conn.QueryRow(d.Rebind(query), args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count decisions: %w", err)
	}
	return n, nil
}
