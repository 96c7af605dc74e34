// Package publish forwards accepted questions to Google Cloud Pub/Sub.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"cloud.google.com/go/pubsub"

	"github.com/abhisek/codequiz/internal/llm"
	"github.com/abhisek/codequiz/internal/quiz"
)

// publisher sends one message and waits for the server to acknowledge it.
type publisher interface {
	publish(ctx context.Context, msg *pubsub.Message) (string, error)
}

type topicPublisher struct {
	topic *pubsub.Topic
}

func (p topicPublisher) publish(ctx context.Context, msg *pubsub.Message) (string, error) {
	return p.topic.Publish(ctx, msg).Get(ctx)
}

// PubSubSink publishes every accepted question as a JSON message. Messages
// of one run share an ordering key, so subscribers see them in acceptance
// order.
type PubSubSink struct {
	pub    publisher
	client *pubsub.Client
	topic  *pubsub.Topic
	logger *slog.Logger
}

// NewPubSubSink connects to projectID and creates topicID if it does not
// exist yet.
func NewPubSubSink(ctx context.Context, projectID, topicID string, logger *slog.Logger) (*PubSubSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to check topic %s: %w", topicID, err)
	}
	if !exists {
		topic, err = client.CreateTopic(ctx, topicID)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to create topic %s: %w", topicID, err)
		}
		logger.Info("created pubsub topic", "topic", topicID)
	}
	topic.EnableMessageOrdering = true

	return &PubSubSink{
		pub:    topicPublisher{topic: topic},
		client: client,
		topic:  topic,
		logger: logger,
	}, nil
}

// Emit publishes q and waits for the acknowledgement.
func (s *PubSubSink) Emit(ctx context.Context, q quiz.Question) error {
	msg, err := Message(ctx, q)
	if err != nil {
		return err
	}
	id, err := s.pub.publish(ctx, msg)
	if err != nil {
		return fmt.Errorf("publish %s question: %w", q.Type(), err)
	}
	s.logger.DebugContext(ctx, "question published", "message_id", id, "type", q.Type())
	return nil
}

// Close flushes pending messages and closes the client.
func (s *PubSubSink) Close() error {
	if s.topic != nil {
		s.topic.Stop()
	}
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Message builds the Pub/Sub message for q. The run ID from ctx, if any,
// becomes the ordering key.
func Message(ctx context.Context, q quiz.Question) (*pubsub.Message, error) {
	data, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("encode question: %w", err)
	}
	attrs := map[string]string{"type": string(q.Type())}
	if q.Language != "" {
		attrs["language"] = q.Language
	}
	runID := llm.RunIDFrom(ctx)
	if runID != "" {
		attrs["run_id"] = runID
	}
	return &pubsub.Message{
		Data:        data,
		Attributes:  attrs,
		OrderingKey: runID,
	}, nil
}
