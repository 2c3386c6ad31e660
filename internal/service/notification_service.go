package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/interfix/helpdesk/internal/config"
	"github.com/interfix/helpdesk/internal/events"
)

// WebhookSink delivers events to an outbound webhook off the request path.
type WebhookSink interface {
	Enqueue(event events.Event) bool
}

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	sink       WebhookSink
}

// NewNotificationService creates the service. sink may be nil.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig, sink WebhookSink) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger.Named("notifications"),
		cfg:        cfg,
		sink:       sink,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketSubmitted, n.handleTicketSubmitted)
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
	n.dispatcher.Subscribe(events.EventContestationRecorded, n.handleContestationRecorded)
}

func (n *NotificationService) handleTicketSubmitted(ctx context.Context, event events.Event) error {
	fields := []zap.Field{zap.String("session_id", event.Actor.SessionID)}
	if payload, ok := event.Payload.(events.TicketSubmittedPayload); ok {
		fields = append(fields,
			zap.String("target", payload.Target),
			zap.String("priority", string(payload.Priority)),
			zap.Bool("contested", payload.Contested),
			zap.Bool("degraded", payload.Degraded))
	}
	n.logger.Info("TicketSubmitted", fields...)
	n.sendWebhookNotification(ctx, event)
	return nil
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketCreated", ticketField(event), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotification(ctx, event)
	return nil
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketStatusChanged", ticketField(event), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotification(ctx, event)
	return nil
}

func (n *NotificationService) handleContestationRecorded(ctx context.Context, event events.Event) error {
	n.logger.Info("ContestationRecorded", ticketField(event), zap.Any("payload", event.Payload))
	n.sendWebhookNotification(ctx, event)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		ticketField(event),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotification(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" || n.sink == nil {
		return
	}
	if !n.sink.Enqueue(event) {
		n.logger.Warn("webhook queue full; dropping notification",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)))
	}
}

func ticketField(event events.Event) zap.Field {
	if event.TicketID == nil {
		return zap.Skip()
	}
	return zap.Int64("ticket_id", *event.TicketID)
}
