package config

const (
	// TopicIngestDocument carries full documents handed to the ingestion pipeline.
	TopicIngestDocument = "ingest.document"

	// ChannelIngestWorker is the NSQ channel the backend ingest consumer joins.
	ChannelIngestWorker = "backend"
)
