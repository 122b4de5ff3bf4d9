package service

import (
	"context"

	"local-assistant/internal/constant"
	"local-assistant/internal/pkg/logger"
	"local-assistant/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
)

// EventNotifier receives every processed session event.
type EventNotifier interface {
	Broadcast(evt events.Event)
}

type IConsumerService interface {
	// Consume subscribes, then processes events in the background until ctx
	// is cancelled or the bus closes.
	Consume(ctx context.Context) error
}

// consumerService remembers the last active session across restarts.
type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	settings   ISettingsService
	notifier   EventNotifier
	logger     logger.ILogger
}

func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	settings ISettingsService,
	notifier EventNotifier,
	logger logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		settings:   settings,
		notifier:   notifier,
		logger:     logger,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	cs.logger.Info("EVENTS", "Consumer started", map[string]interface{}{"topic": cs.topicName})
	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	evt, err := events.Decode(msg.Payload)
	if err != nil {
		cs.logger.Error("EVENTS", "Failed to decode event", map[string]interface{}{"error": err})
		msg.Ack() // Ack malformed messages so they are not redelivered
		return
	}

	sessionID := evt.String("session_id")

	switch evt.Type {
	case constant.EventSessionCreated, constant.EventSessionActivated:
		if err := cs.settings.SetLastSessionID(ctx, sessionID); err != nil {
			cs.logger.Error("EVENTS", "Failed to remember last session", map[string]interface{}{
				"session_id": sessionID,
				"error":      err,
			})
			msg.Nack()
			return
		}
	case constant.EventSessionDeleted:
		last, ok, err := cs.settings.LastSessionID(ctx)
		if err == nil && ok && last == sessionID {
			err = cs.settings.Delete(ctx, constant.SettingLastSessionID)
		}
		if err != nil {
			cs.logger.Error("EVENTS", "Failed to forget deleted session", map[string]interface{}{
				"session_id": sessionID,
				"error":      err,
			})
			msg.Nack()
			return
		}
	}

	if cs.notifier != nil {
		cs.notifier.Broadcast(evt)
	}

	cs.logger.Debug("EVENTS", "Event processed", map[string]interface{}{
		"type":       evt.Type,
		"session_id": sessionID,
	})
	msg.Ack()
}
