// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package hook provides ordered extension points. Pipeline stages expose a
// named hook list; extensions register callbacks instead of patching the
// stage itself.
package hook

import (
	"sort"
	"sync"
)

// Fn is a hook callback. The payload type is owned by the hook's host.
type Fn func(payload interface{})

type entry struct {
	name     string
	priority int
	fn       Fn
}

// List is an ordered, concurrency-safe hook list.
type List struct {
	mu      sync.RWMutex
	entries []entry
}

// Register adds a callback. Lower priority runs first; ties run in
// registration order.
func (l *List) Register(name string, priority int, fn Fn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry{name: name, priority: priority, fn: fn})
	sort.SliceStable(l.entries, func(i, j int) bool {
		return l.entries[i].priority < l.entries[j].priority
	})
}

// Deregister removes all callbacks registered under name.
func (l *List) Deregister(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.entries[:0]
	for _, e := range l.entries {
		if e.name != name {
			kept = append(kept, e)
		}
	}
	l.entries = kept
}

// Run invokes every callback in order with the payload.
func (l *List) Run(payload interface{}) {
	l.mu.RLock()
	entries := make([]entry, len(l.entries))
	copy(entries, l.entries)
	l.mu.RUnlock()
	for _, e := range entries {
		e.fn(payload)
	}
}

// Len returns the number of registered callbacks.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
