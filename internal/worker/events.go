package worker

import "errors"

// ErrAlreadyIngested marks a redelivered document whose (name, byte size)
// pair was already processed. Consumers drop the message without retry.
var ErrAlreadyIngested = errors.New("document already ingested")

// IngestDocumentPayload is the queue message carrying one document from the
// API to the ingestion worker.
type IngestDocumentPayload struct {
	Name          string `json:"name"`
	ByteSize      int    `json:"byte_size"`
	Content       string `json:"content"`
	TotalPages    int    `json:"total_pages"`
	CorrelationID string `json:"correlation_id,omitempty"`
}
