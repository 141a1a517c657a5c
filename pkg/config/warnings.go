// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/geotunnel/edge-agent/pkg/util/log"
)

// MQTTConfig configures the warning broadcast broker.
type MQTTConfig struct {
	BrokerHost  string `yaml:"broker_host"`
	BrokerPort  int    `yaml:"broker_port"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	QoS         byte   `yaml:"qos"`
	Retain      bool   `yaml:"retain"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// EmailConfig configures SMTP notification delivery.
type EmailConfig struct {
	Enabled      bool                `yaml:"enabled"`
	SMTPHost     string              `yaml:"smtp_host"`
	SMTPPort     int                 `yaml:"smtp_port"`
	SMTPUser     string              `yaml:"smtp_user"`
	SMTPPassword string              `yaml:"smtp_password"`
	FromAddress  string              `yaml:"from_address"`
	FromName     string              `yaml:"from_name"`
	UseTLS       bool                `yaml:"use_tls"`
	TimeoutSec   int                 `yaml:"timeout"`
	Recipients   map[string][]string `yaml:"recipients"` // level -> addresses
}

// SMSConfig configures SMS notification delivery.
type SMSConfig struct {
	Enabled    bool                `yaml:"enabled"`
	Provider   string              `yaml:"provider"` // twilio, http, gsm
	Twilio     map[string]string   `yaml:"twilio"`
	HTTP       map[string]string   `yaml:"http"`
	GSM        map[string]string   `yaml:"gsm"`
	Recipients map[string][]string `yaml:"recipients"` // level -> E.164 numbers
}

// RetryConfig configures failed-notification retries.
type RetryConfig struct {
	Enabled         bool  `yaml:"enabled"`
	MaxAttempts     int   `yaml:"max_attempts"`
	MaxTaskAgeHours int   `yaml:"max_task_age_hours"`
	BackoffDelays   []int `yaml:"backoff_delays"` // seconds per attempt
}

// WarningsFile is the warnings.yaml document.
type WarningsFile struct {
	MQTT  MQTTConfig  `yaml:"mqtt"`
	Email EmailConfig `yaml:"email"`
	SMS   SMSConfig   `yaml:"sms"`
	Retry RetryConfig `yaml:"retry"`
}

func defaultWarnings() *WarningsFile {
	return &WarningsFile{
		MQTT: MQTTConfig{
			BrokerHost:  "localhost",
			BrokerPort:  1883,
			ClientID:    "edge-warning-publisher",
			QoS:         1,
			Retain:      true,
			TopicPrefix: "shield/warnings",
		},
		Email: EmailConfig{SMTPPort: 587, UseTLS: true, TimeoutSec: 30,
			FromName: "Shield Tunneling Alert System"},
		SMS: SMSConfig{Provider: "twilio"},
		Retry: RetryConfig{
			Enabled:         true,
			MaxAttempts:     3,
			MaxTaskAgeHours: 24,
			BackoffDelays:   []int{60, 300, 900},
		},
	}
}

// LoadWarnings reads warnings.yaml, falling back to defaults when the
// file is missing or empty.
func LoadWarnings(path string) (*WarningsFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warnf("warning config %s not found, using defaults", path) //nolint:errcheck
			return defaultWarnings(), nil
		}
		return nil, errors.Wrapf(err, "reading warnings config %s", path)
	}
	f := defaultWarnings()
	if err := yaml.Unmarshal(raw, f); err != nil {
		return nil, errors.Wrapf(err, "parsing warnings config %s", path)
	}
	return f, nil
}
