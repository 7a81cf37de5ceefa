package zenstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// ChangeEvent describes one committed write. Repositories with an attached
// publisher emit one per write performed outside a transaction; transactional
// writes are announced by the caller after commit.
type ChangeEvent struct {
	Collection string      `json:"collection"`
	Action     string      `json:"action"`
	Reference  interface{} `json:"reference,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// ChangePublisher is what a repository needs from a change-event transport.
type ChangePublisher interface {
	PublishChange(ctx context.Context, event *ChangeEvent) error
}

type (
	// PubSubMessage is one delivery from Google Pub/Sub.
	PubSubMessage struct {
		Data        []byte
		Attributes  map[string]string
		ID          string
		PublishTime time.Time
	}

	// PubSubContext carries a delivery through a handler. Setting Faulted
	// nacks the message for redelivery.
	PubSubContext struct {
		context.Context
		RemainingRetries uint16
		Faulted          bool
		Msg              *PubSubMessage
	}

	// ChangeHandlerFunc processes one decoded change event.
	ChangeHandlerFunc func(ctx *PubSubContext, event *ChangeEvent)
)

// ChangeNotifier publishes change events to one Pub/Sub topic.
type ChangeNotifier struct {
	client    *pubsub.Client
	topic     *pubsub.Topic
	topicName string
	projectID string
}

func NewChangeNotifier(ctx context.Context, projectID string, topicName string, opts ...option.ClientOption) (*ChangeNotifier, error) {
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	topic := client.Topic(topicName)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check if topic exists: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("topic %s does not exist", topicName)
	}

	topic.PublishSettings.ByteThreshold = 5000
	topic.PublishSettings.CountThreshold = 10
	topic.PublishSettings.DelayThreshold = 100 * time.Millisecond

	return &ChangeNotifier{
		client:    client,
		topic:     topic,
		topicName: topicName,
		projectID: projectID,
	}, nil
}

func (n *ChangeNotifier) PublishChange(ctx context.Context, event *ChangeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}

	attributes := eventAttributes(ctx, map[string]string{
		"collection": event.Collection,
		"action":     event.Action,
	})

	result := n.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attributes,
	})

	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("failed to publish change event: %w", err)
	}

	return nil
}

func (n *ChangeNotifier) Close() error {
	n.topic.Stop()
	return n.client.Close()
}

// ChangeConsumer subscribes to change events and runs a handler per
// delivery.
type ChangeConsumer struct {
	client         *pubsub.Client
	subscription   *pubsub.Subscription
	handler        ChangeHandlerFunc
	subscriptionID string
	projectID      string
}

func NewChangeConsumer(ctx context.Context, projectID string, subscriptionID string, handler ChangeHandlerFunc, opts ...option.ClientOption) (*ChangeConsumer, error) {
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	subscription := client.Subscription(subscriptionID)
	exists, err := subscription.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check if subscription exists: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("subscription %s does not exist", subscriptionID)
	}

	subscription.ReceiveSettings.MaxOutstandingMessages = 10
	subscription.ReceiveSettings.MaxOutstandingBytes = 1e9

	return &ChangeConsumer{
		client:         client,
		subscription:   subscription,
		handler:        handler,
		subscriptionID: subscriptionID,
		projectID:      projectID,
	}, nil
}

// Listen blocks receiving deliveries until ctx is cancelled. Handlers mark
// PubSubContext.Faulted to request redelivery; undecodable payloads are
// acked and dropped since redelivery cannot fix them.
func (c *ChangeConsumer) Listen(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		pubsubCtx := &PubSubContext{
			Context:          ctx,
			RemainingRetries: 3,
			Msg: &PubSubMessage{
				Data:        msg.Data,
				Attributes:  msg.Attributes,
				ID:          msg.ID,
				PublishTime: msg.PublishTime,
			},
		}

		var event ChangeEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			msg.Ack()
			return
		}

		c.handler(pubsubCtx, &event)

		if !pubsubCtx.Faulted {
			msg.Ack()
		} else {
			msg.Nack()
		}
	})
}

func (c *ChangeConsumer) Close() error {
	return c.client.Close()
}
