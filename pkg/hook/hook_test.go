// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package hook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListOrdering(t *testing.T) {
	var l List
	var order []string
	l.Register("second", 10, func(interface{}) { order = append(order, "second") })
	l.Register("first", 0, func(interface{}) { order = append(order, "first") })
	l.Register("also-first", 0, func(interface{}) { order = append(order, "also-first") })

	l.Run(nil)
	assert.Equal(t, []string{"first", "also-first", "second"}, order)
}

func TestListDeregister(t *testing.T) {
	var l List
	calls := 0
	l.Register("a", 0, func(interface{}) { calls++ })
	l.Register("a", 1, func(interface{}) { calls++ })
	l.Register("b", 2, func(interface{}) { calls++ })
	assert.Equal(t, 3, l.Len())

	l.Deregister("a")
	assert.Equal(t, 1, l.Len())
	l.Run(nil)
	assert.Equal(t, 1, calls)
}

func TestListPayload(t *testing.T) {
	var l List
	var got int
	l.Register("p", 0, func(payload interface{}) { got = payload.(int) })
	l.Run(42)
	assert.Equal(t, 42, got)
}
