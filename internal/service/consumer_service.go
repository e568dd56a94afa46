// FILE: internal/service/consumer_service.go
package service

import (
	"context"
	"encoding/json"
	"log"

	"ai-dispatch-be/pkg/events"
	pktNats "ai-dispatch-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// IConsumerService drains engine lifecycle events from the in-process bus
// and relays the externally interesting ones to NATS.
type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	natsPub   *pktNats.Publisher
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	natsPub *pktNats.Publisher,
) IConsumerService {
	return &consumerService{
		pubSub:    pubSub,
		topicName: topicName,
		natsPub:   natsPub,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var envelope events.Envelope
	if err := json.Unmarshal(msg.Payload, &envelope); err != nil {
		log.Printf("[ERROR] Failed to unmarshal engine event: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	switch envelope.Type {
	case events.TypeDispatchCommitted, events.TypeDeviceCommand, events.TypeRunFailed:
		// Only these leave the process; the rest stay on the local bus.
		if cs.natsPub == nil {
			log.Printf("[WARN] NATS unavailable, dropping %s event", envelope.Type)
			msg.Ack()
			return
		}
		event := events.BaseEvent{
			Type:       envelope.Type,
			Data:       envelope.Data,
			OccurredAt: envelope.OccurredAt,
		}
		if err := cs.natsPub.Publish(ctx, event); err != nil {
			log.Printf("[ERROR] Failed to relay %s event to NATS: %v", envelope.Type, err)
			msg.Nack() // Nack for retriable errors
			return
		}
		log.Printf("[INFO] Relayed %s event to NATS (session %v)", envelope.Type, envelope.Data["session_id"])
	default:
		log.Printf("[DEBUG] Engine event %s (session %v)", envelope.Type, envelope.Data["session_id"])
	}

	msg.Ack()
}
