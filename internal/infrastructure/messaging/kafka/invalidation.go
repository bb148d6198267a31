package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/molscene/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molscene/pkg/errors"
)

const (
	TopicGeometryInvalidated     = "molscene.geometry.invalidated"
	EventTypeGeometryInvalidated = "geometry.invalidated"
	SchemaVersion                = "1.0"
)

// EventEnvelope wraps every event written by molscene.
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	SchemaVersion string          `json:"schema_version"`
	Payload       json.RawMessage `json:"payload"`
}

// InvalidationPayload describes cached geometry that was dropped. An empty
// StructureID means every entry was dropped; an empty ChainID means every
// chain of the structure.
type InvalidationPayload struct {
	StructureID string `json:"structure_id,omitempty"`
	ChainID     string `json:"chain_id,omitempty"`
	Reason      string `json:"reason"`
	Dropped     int    `json:"dropped"`
}

// Publisher is satisfied by *Producer.
type Publisher interface {
	Publish(ctx context.Context, msg *ProducerMessage) error
}

// InvalidationPublisher emits geometry invalidation envelopes.
type InvalidationPublisher struct {
	publisher Publisher
	topic     string
	source    string
	now       func() time.Time
}

// NewInvalidationPublisher publishes to topic, or TopicGeometryInvalidated
// when topic is empty. source identifies this process so that subscribers
// can skip their own events; a random id is used when it is empty.
func NewInvalidationPublisher(p Publisher, topic, source string) *InvalidationPublisher {
	if topic == "" {
		topic = TopicGeometryInvalidated
	}
	if source == "" {
		source = uuid.NewString()
	}
	return &InvalidationPublisher{publisher: p, topic: topic, source: source, now: time.Now}
}

func (p *InvalidationPublisher) Source() string { return p.source }

func (p *InvalidationPublisher) Topic() string { return p.topic }

// PublishInvalidation keys the message by structure so that events for one
// structure stay ordered within a partition.
func (p *InvalidationPublisher) PublishInvalidation(ctx context.Context, structureID, chainID, reason string, dropped int) error {
	payload, err := json.Marshal(InvalidationPayload{
		StructureID: structureID,
		ChainID:     chainID,
		Reason:      reason,
		Dropped:     dropped,
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode invalidation payload")
	}
	env := EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     EventTypeGeometryInvalidated,
		Source:        p.source,
		Timestamp:     p.now().UTC(),
		SchemaVersion: SchemaVersion,
		Payload:       payload,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode event envelope")
	}
	return p.publisher.Publish(ctx, &ProducerMessage{
		Topic: p.topic,
		Key:   []byte(structureID),
		Value: value,
		Headers: map[string]string{
			"event_type":     env.EventType,
			"schema_version": env.SchemaVersion,
		},
		Timestamp: env.Timestamp,
	})
}

// DecodeInvalidation parses an envelope and its invalidation payload.
func DecodeInvalidation(data []byte) (EventEnvelope, InvalidationPayload, error) {
	var env EventEnvelope
	var payload InvalidationPayload
	if err := json.Unmarshal(data, &env); err != nil {
		return env, payload, errors.Wrap(err, errors.ErrCodeSerialization, "malformed event envelope")
	}
	if env.EventType != EventTypeGeometryInvalidated {
		return env, payload, errors.Newf(errors.ErrCodeValidation, "unexpected event type %q", env.EventType)
	}
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return env, payload, errors.Wrap(err, errors.ErrCodeSerialization, "malformed invalidation payload")
	}
	return env, payload, nil
}

// InvalidationHandler returns a MessageHandler that applies invalidations
// published by other processes. Events from source and undecodable messages
// are skipped; errors from apply are returned for retry.
func InvalidationHandler(source string, logger logging.Logger, apply func(ctx context.Context, p InvalidationPayload) error) MessageHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return func(ctx context.Context, msg *Message) error {
		env, payload, err := DecodeInvalidation(msg.Value)
		if err != nil {
			logger.WithError(err).Warn("skipping invalidation message",
				logging.String("topic", msg.Topic),
				logging.Int64("offset", msg.Offset))
			return nil
		}
		if env.Source == source {
			return nil
		}
		return apply(ctx, payload)
	}
}
