// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package notification

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/geotunnel/edge-agent/pkg/model"
	"github.com/geotunnel/edge-agent/pkg/telemetry"
	"github.com/geotunnel/edge-agent/pkg/util/log"
)

// Retryable channels.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

var retryOutcomes = telemetry.NewCounter("notification", "retry_total",
	"Notification retry outcomes", "channel", "outcome")

// RetryTask is one queued redelivery.
type RetryTask struct {
	Warning    *model.WarningEvent
	Channel    string
	Recipients []string
	Attempt    int
	NextRetry  time.Time
	CreatedAt  time.Time
	LastError  string
}

// RetryManager redelivers failed email and SMS notifications with a
// fixed backoff schedule, giving up after the attempt limit or when a
// task outlives its maximum age.
type RetryManager struct {
	email       *EmailNotifier
	sms         *SMSClient
	maxAttempts int
	maxAge      time.Duration
	delays      []time.Duration
	clock       clock.Clock

	mu    sync.Mutex
	queue map[string]map[string]*RetryTask // warning id -> channel -> task

	cancel context.CancelFunc
	done   chan struct{}
}

// RetryOption customizes a RetryManager.
type RetryOption func(*RetryManager)

// WithRetryClock substitutes the wall clock, for tests.
func WithRetryClock(c clock.Clock) RetryOption {
	return func(m *RetryManager) { m.clock = c }
}

// NewRetryManager builds the manager. delays holds the per-attempt
// backoff in seconds; the last entry repeats.
func NewRetryManager(email *EmailNotifier, sms *SMSClient, maxAttempts, maxAgeHours int, delaysSec []int, opts ...RetryOption) *RetryManager {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if maxAgeHours <= 0 {
		maxAgeHours = 24
	}
	if len(delaysSec) == 0 {
		delaysSec = []int{60, 300, 900}
	}
	delays := make([]time.Duration, len(delaysSec))
	for i, s := range delaysSec {
		delays[i] = time.Duration(s) * time.Second
	}
	m := &RetryManager{
		email:       email,
		sms:         sms,
		maxAttempts: maxAttempts,
		maxAge:      time.Duration(maxAgeHours) * time.Hour,
		delays:      delays,
		clock:       clock.New(),
		queue:       map[string]map[string]*RetryTask{},
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Queue schedules a redelivery for a failed channel.
func (m *RetryManager) Queue(w *model.WarningEvent, channel string, recipients []string, cause error) {
	if channel != ChannelEmail && channel != ChannelSMS {
		log.Errorf("cannot retry channel %q", channel) //nolint:errcheck
		return
	}
	now := m.clock.Now()
	task := &RetryTask{
		Warning:    w,
		Channel:    channel,
		Recipients: recipients,
		NextRetry:  now.Add(m.delay(0)),
		CreatedAt:  now,
	}
	if cause != nil {
		task.LastError = cause.Error()
	}
	m.mu.Lock()
	byChannel := m.queue[w.WarningID]
	if byChannel == nil {
		byChannel = map[string]*RetryTask{}
		m.queue[w.WarningID] = byChannel
	}
	byChannel[channel] = task
	m.mu.Unlock()
	retryOutcomes.WithLabelValues(channel, "queued").Inc()
	log.Infof("queued %s retry for warning %s", channel, w.WarningID)
}

func (m *RetryManager) delay(attempt int) time.Duration {
	if attempt >= len(m.delays) {
		attempt = len(m.delays) - 1
	}
	return m.delays[attempt]
}

// Start runs the 30 second processing loop.
func (m *RetryManager) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go func() {
		defer close(m.done)
		ticker := m.clock.Ticker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.ProcessDue()
				m.expire()
			}
		}
	}()
}

// Stop terminates the loop.
func (m *RetryManager) Stop() {
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}
}

// ProcessDue attempts every task whose backoff has elapsed.
func (m *RetryManager) ProcessDue() {
	now := m.clock.Now()
	var due []*RetryTask
	m.mu.Lock()
	for _, byChannel := range m.queue {
		for _, task := range byChannel {
			if task.Attempt < m.maxAttempts && !now.Before(task.NextRetry) {
				due = append(due, task)
			}
		}
	}
	m.mu.Unlock()

	for _, task := range due {
		task.Attempt++
		if m.attempt(task) {
			retryOutcomes.WithLabelValues(task.Channel, "succeeded").Inc()
			m.remove(task)
			log.Infof("retry succeeded for warning %s on %s (attempt %d)",
				task.Warning.WarningID, task.Channel, task.Attempt)
			continue
		}
		if task.Attempt >= m.maxAttempts {
			retryOutcomes.WithLabelValues(task.Channel, "exhausted").Inc()
			m.remove(task)
			log.Errorf("giving up on %s for warning %s after %d attempts",
				task.Channel, task.Warning.WarningID, task.Attempt) //nolint:errcheck
			continue
		}
		task.NextRetry = m.clock.Now().Add(m.delay(task.Attempt))
		retryOutcomes.WithLabelValues(task.Channel, "failed").Inc()
	}
}

func (m *RetryManager) attempt(task *RetryTask) bool {
	switch task.Channel {
	case ChannelEmail:
		if m.email == nil {
			return false
		}
		if err := m.email.SendWarning(task.Warning, task.Recipients); err != nil {
			task.LastError = err.Error()
			return false
		}
		return true
	case ChannelSMS:
		if m.sms == nil {
			return false
		}
		sent, err := m.sms.SendWarning(task.Warning, task.Recipients)
		if err != nil {
			task.LastError = err.Error()
		}
		return sent > 0
	}
	return false
}

func (m *RetryManager) remove(task *RetryTask) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if byChannel := m.queue[task.Warning.WarningID]; byChannel != nil {
		delete(byChannel, task.Channel)
		if len(byChannel) == 0 {
			delete(m.queue, task.Warning.WarningID)
		}
	}
}

func (m *RetryManager) expire() {
	now := m.clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, byChannel := range m.queue {
		for channel, task := range byChannel {
			if now.Sub(task.CreatedAt) > m.maxAge {
				delete(byChannel, channel)
				retryOutcomes.WithLabelValues(channel, "expired").Inc()
				log.Warnf("retry task for warning %s on %s expired", id, channel) //nolint:errcheck
			}
		}
		if len(byChannel) == 0 {
			delete(m.queue, id)
		}
	}
}

// Pending returns the number of queued tasks.
func (m *RetryManager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, byChannel := range m.queue {
		n += len(byChannel)
	}
	return n
}
