// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package notification

import (
	"github.com/geotunnel/edge-agent/pkg/config"
	"github.com/geotunnel/edge-agent/pkg/model"
	"github.com/geotunnel/edge-agent/pkg/telemetry"
	"github.com/geotunnel/edge-agent/pkg/util/log"
)

var notificationsSent = telemetry.NewCounter("notification", "sent_total",
	"Notification delivery attempts", "channel", "result")

// Router fans a warning out to the channels its level is configured for.
// MQTT failures are terminal (the broker client retries internally);
// email and SMS failures are queued with the retry manager.
type Router struct {
	mqtt  *MQTTPublisher
	email *EmailNotifier
	sms   *SMSClient
	cfg   *config.WarningsFile
	retry *RetryManager
}

// NewRouter wires the router. Any channel may be nil when unconfigured.
func NewRouter(mqttPub *MQTTPublisher, email *EmailNotifier, sms *SMSClient, cfg *config.WarningsFile) *Router {
	return &Router{mqtt: mqttPub, email: email, sms: sms, cfg: cfg}
}

// SetRetryManager attaches the retry queue; without one failures are only
// logged.
func (r *Router) SetRetryManager(m *RetryManager) { r.retry = m }

// Notify implements the warning engine's Notifier.
func (r *Router) Notify(w *model.WarningEvent) {
	for _, channel := range w.Channels {
		switch channel {
		case "mqtt":
			r.sendMQTT(w)
		case "email":
			r.sendEmail(w)
		case "sms":
			r.sendSMS(w)
		default:
			log.Warnf("warning %s names unknown channel %q", w.WarningID, channel) //nolint:errcheck
		}
	}
}

// NotifyBatch routes several warnings.
func (r *Router) NotifyBatch(ws []*model.WarningEvent) {
	for _, w := range ws {
		r.Notify(w)
	}
}

func (r *Router) sendMQTT(w *model.WarningEvent) {
	if r.mqtt == nil {
		return
	}
	if err := r.mqtt.PublishWarning(w); err != nil {
		notificationsSent.WithLabelValues("mqtt", "failed").Inc()
		log.Errorf("mqtt publish for warning %s failed: %v", w.WarningID, err) //nolint:errcheck
		return
	}
	notificationsSent.WithLabelValues("mqtt", "sent").Inc()
}

func (r *Router) sendEmail(w *model.WarningEvent) {
	if r.email == nil || !r.cfg.Email.Enabled {
		return
	}
	recipients := r.cfg.Email.Recipients[string(w.Level)]
	if len(recipients) == 0 {
		return
	}
	if err := r.email.SendWarning(w, recipients); err != nil {
		notificationsSent.WithLabelValues("email", "failed").Inc()
		log.Errorf("email for warning %s failed: %v", w.WarningID, err) //nolint:errcheck
		if r.retry != nil {
			r.retry.Queue(w, ChannelEmail, recipients, err)
		}
		return
	}
	notificationsSent.WithLabelValues("email", "sent").Inc()
}

func (r *Router) sendSMS(w *model.WarningEvent) {
	if r.sms == nil || !r.cfg.SMS.Enabled {
		return
	}
	recipients := r.cfg.SMS.Recipients[string(w.Level)]
	if len(recipients) == 0 {
		return
	}
	if _, err := r.sms.SendWarning(w, recipients); err != nil {
		notificationsSent.WithLabelValues("sms", "failed").Inc()
		log.Errorf("sms for warning %s failed: %v", w.WarningID, err) //nolint:errcheck
		if r.retry != nil {
			r.retry.Queue(w, ChannelSMS, recipients, err)
		}
		return
	}
	notificationsSent.WithLabelValues("sms", "sent").Inc()
}
