package port

import (
	"context"
	"time"
)

// Subjects of domain events published by the service.
const (
	SubjectReadingsIngested = "water.readings.ingested"
	SubjectReadingsRejected = "water.readings.rejected"
	SubjectReadingsPurged   = "water.readings.purged"
	SubjectExportCreated    = "water.exports.created"
)

// ReadingsIngestedEvent is emitted after a batch has been stored.
type ReadingsIngestedEvent struct {
	BatchID    string    `json:"batch_id"`
	Accepted   int       `json:"accepted"`
	Rejected   int       `json:"rejected"`
	SensorIDs  []string  `json:"sensor_ids"`
	ReadingIDs []string  `json:"reading_ids"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ReadingsRejectedEvent carries the field-keyed validation report of a batch.
type ReadingsRejectedEvent struct {
	BatchID    string              `json:"batch_id"`
	Rejected   int                 `json:"rejected"`
	Errors     map[string][]string `json:"errors"`
	OccurredAt time.Time           `json:"occurred_at"`
}

// ReadingsPurgedEvent is emitted by the retention job.
type ReadingsPurgedEvent struct {
	Deleted    int64     `json:"deleted"`
	Cutoff     time.Time `json:"cutoff"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventPublisher defines the interface for publishing events to a message broker
type EventPublisher interface {
	// PublishEvent publishes an event to the specified subject
	PublishEvent(ctx context.Context, subject string, event interface{}) error

	// Close closes the connection to the message broker
	Close() error
}
