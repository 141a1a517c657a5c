// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package notification

import (
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geotunnel/edge-agent/pkg/model"
)

func testWarning(id string) *model.WarningEvent {
	return &model.WarningEvent{
		WarningID:     id,
		RingNumber:    100,
		IndicatorName: "settlement_value",
		Level:         model.LevelAlarm,
		WarningType:   model.WarningTypeThreshold,
		Status:        model.WarningStatusActive,
	}
}

func TestRetryQueueAndSchedule(t *testing.T) {
	mock := clock.NewMock()
	m := NewRetryManager(nil, nil, 3, 24, []int{60, 300, 900}, WithRetryClock(mock))

	m.Queue(testWarning("w-1"), ChannelEmail, []string{"ops@site"}, errors.New("smtp down"))
	assert.Equal(t, 1, m.Pending())

	// Not due before the first backoff elapses.
	m.ProcessDue()
	m.mu.Lock()
	task := m.queue["w-1"][ChannelEmail]
	m.mu.Unlock()
	require.NotNil(t, task)
	assert.Equal(t, 0, task.Attempt)
	assert.Equal(t, "smtp down", task.LastError)

	// First attempt at +60s fails (no mail client) and reschedules +300s.
	mock.Add(61 * time.Second)
	m.ProcessDue()
	assert.Equal(t, 1, task.Attempt)
	assert.Equal(t, mock.Now().Add(300*time.Second), task.NextRetry)
	assert.Equal(t, 1, m.Pending())
}

func TestRetryExhaustionRemovesTask(t *testing.T) {
	mock := clock.NewMock()
	m := NewRetryManager(nil, nil, 3, 24, []int{60, 300, 900}, WithRetryClock(mock))

	m.Queue(testWarning("w-2"), ChannelSMS, []string{"+8613800000000"}, nil)

	for i := 0; i < 3; i++ {
		mock.Add(time.Hour)
		m.ProcessDue()
	}
	assert.Equal(t, 0, m.Pending())
}

func TestRetryQueueRejectsUnknownChannel(t *testing.T) {
	m := NewRetryManager(nil, nil, 3, 24, nil, WithRetryClock(clock.NewMock()))
	m.Queue(testWarning("w-3"), "mqtt", nil, nil)
	assert.Equal(t, 0, m.Pending())
}

func TestRetryRequeueReplacesTask(t *testing.T) {
	mock := clock.NewMock()
	m := NewRetryManager(nil, nil, 3, 24, []int{60}, WithRetryClock(mock))

	w := testWarning("w-4")
	m.Queue(w, ChannelEmail, []string{"a@site"}, nil)
	m.Queue(w, ChannelEmail, []string{"a@site", "b@site"}, nil)
	assert.Equal(t, 1, m.Pending())

	m.Queue(w, ChannelSMS, []string{"+86138"}, nil)
	assert.Equal(t, 2, m.Pending())
}

func TestRetryExpiry(t *testing.T) {
	mock := clock.NewMock()
	m := NewRetryManager(nil, nil, 100, 24, []int{60}, WithRetryClock(mock))

	m.Queue(testWarning("w-5"), ChannelEmail, []string{"ops@site"}, nil)
	require.Equal(t, 1, m.Pending())

	mock.Add(23 * time.Hour)
	m.expire()
	assert.Equal(t, 1, m.Pending())

	mock.Add(2 * time.Hour)
	m.expire()
	assert.Equal(t, 0, m.Pending())
}

func TestRetryDefaults(t *testing.T) {
	m := NewRetryManager(nil, nil, 0, 0, nil)
	assert.Equal(t, 3, m.maxAttempts)
	assert.Equal(t, 24*time.Hour, m.maxAge)
	assert.Equal(t, []time.Duration{time.Minute, 5 * time.Minute, 15 * time.Minute}, m.delays)
	// The last delay repeats once the schedule runs out.
	assert.Equal(t, 15*time.Minute, m.delay(10))
}
