package job

import (
	"encoding/json"
	"time"
)

// Job is a failed ingestion message parked for manual retry. Payload keeps
// the original queue message so a retry replays it unchanged.
type Job struct {
	ID           string          `json:"id"`
	DocumentName string          `json:"document_name"`
	Handler      string          `json:"handler"`
	Payload      json.RawMessage `json:"payload"`
	Error        string          `json:"error"`
	Retries      int             `json:"retries"`
	CreatedAt    time.Time       `json:"created_at"`
}
