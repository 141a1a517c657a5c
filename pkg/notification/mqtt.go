// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package notification routes warning events to MQTT, email and SMS with
// graded channel selection and retry of failed deliveries.
package notification

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"

	"github.com/geotunnel/edge-agent/pkg/config"
	"github.com/geotunnel/edge-agent/pkg/model"
	"github.com/geotunnel/edge-agent/pkg/util/log"
)

// ErrNotificationFailed wraps any channel delivery failure.
var ErrNotificationFailed = errors.New("notification failed")

// MQTTPublisher broadcasts warnings and ring data on the site broker.
type MQTTPublisher struct {
	client mqtt.Client
	cfg    config.MQTTConfig
}

// NewMQTTPublisher connects to the broker.
func NewMQTTPublisher(cfg config.MQTTConfig) (*MQTTPublisher, error) {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "shield/warnings"
	}
	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.BrokerHost, cfg.BrokerPort)).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(10 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username).SetPassword(cfg.Password)
	}
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if ok := token.WaitTimeout(10 * time.Second); !ok || token.Error() != nil {
		return nil, errors.Wrap(token.Error(), "connecting to mqtt broker")
	}
	return &MQTTPublisher{client: client, cfg: cfg}, nil
}

func (p *MQTTPublisher) publish(topic string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshaling mqtt payload")
	}
	token := p.client.Publish(topic, p.cfg.QoS, p.cfg.Retain, raw)
	if ok := token.WaitTimeout(5 * time.Second); !ok || token.Error() != nil {
		return errors.Wrapf(ErrNotificationFailed, "publishing to %s: %v", topic, token.Error())
	}
	return nil
}

// PublishWarning fans a warning out to the all, per-level and per-ring
// topics.
func (p *MQTTPublisher) PublishWarning(w *model.WarningEvent) error {
	topics := []string{
		p.cfg.TopicPrefix + "/all",
		fmt.Sprintf("%s/%s", p.cfg.TopicPrefix, strings.ToLower(string(w.Level))),
		fmt.Sprintf("%s/ring/%d", p.cfg.TopicPrefix, w.RingNumber),
	}
	for _, topic := range topics {
		if err := p.publish(topic, w); err != nil {
			return err
		}
	}
	log.Debugf("warning %s published to mqtt", w.WarningID)
	return nil
}

// PublishRingSummary broadcasts a finished ring summary, with a retained
// latest topic for late subscribers.
func (p *MQTTPublisher) PublishRingSummary(s *model.RingSummary) error {
	base := strings.TrimSuffix(p.cfg.TopicPrefix, "/warnings") + "/rings"
	if err := p.publish(fmt.Sprintf("%s/%d", base, s.RingNumber), s); err != nil {
		return err
	}
	return p.publish(base+"/latest", s)
}

// PublishPrediction broadcasts a forecast, with a retained latest topic.
func (p *MQTTPublisher) PublishPrediction(pred *model.Prediction) error {
	base := strings.TrimSuffix(p.cfg.TopicPrefix, "/warnings") + "/predictions"
	if err := p.publish(fmt.Sprintf("%s/%d", base, pred.RingNumber), pred); err != nil {
		return err
	}
	return p.publish(base+"/latest", pred)
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
