package models

import "time"

// Status tracks how far metric computation has progressed for a chat log entry.
type Status string

const (
	StatusNew     Status = "new"     // entry inserted, no placeholders yet
	StatusPending Status = "pending" // every placeholder registered, values computing
	StatusDone    Status = "done"    // every registered metric attempted
)

// ChatLog is one logged request/response exchange stored in the 'chat_log' table.
type ChatLog struct {
	ID        int64     `db:"id" json:"id"`
	Request   string    `db:"request" json:"request"`
	Response  string    `db:"response" json:"response"`
	Source    string    `db:"source" json:"source"`
	Language  string    `db:"language" json:"language"`
	Reference *string   `db:"reference" json:"reference"` // set later via /api/ref_metric
	Status    Status    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"timestamp"`
}
