package workflow

import (
	"context"
	"time"

	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/sirupsen/logrus"
)

const (
	NotifyHalt       = "halt"
	NotifyRegistered = "catalog_registered"
	NotifyResolved   = "shipments_resolved"
	NotifyFinished   = "reports_ready"
	NotifyFailed     = "failed"
)

// Notifier delivers operator-facing run events. Delivery failures are logged, never returned.
type Notifier interface {
	Notify(ctx context.Context, msg config.NotificationMessage)
}

// LogNotifier writes events to the structured log.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, msg config.NotificationMessage) {
	logger.WithFields(logrus.Fields{
		"run_id": msg.RunId,
		"kind":   msg.Kind,
		"items":  msg.Items,
	}).Info(msg.Message)
}

// PubSubNotifier publishes events to NOTIFY_TOPIC.
type PubSubNotifier struct{}

func (PubSubNotifier) Notify(ctx context.Context, msg config.NotificationMessage) {
	id, err := config.PublishNotification(ctx, msg)
	if err != nil {
		config.LogError(logger, "workflow", "PubSubNotifier.Notify", "publish notification", msg.Kind, err)
		return
	}
	logger.WithFields(logrus.Fields{"run_id": msg.RunId, "kind": msg.Kind, "message_id": id}).Debug("notification published")
}

// Notifiers fans one event out to several notifiers.
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, msg config.NotificationMessage) {
	if msg.OccurredAt.IsZero() {
		msg.OccurredAt = time.Now()
	}
	for _, n := range ns {
		n.Notify(ctx, msg)
	}
}

func NewNotifierFromEnv() Notifier {
	ns := Notifiers{LogNotifier{}}
	if config.PubSubConfigured() {
		ns = append(ns, PubSubNotifier{})
	}
	return ns
}
