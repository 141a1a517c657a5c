// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/geotunnel/edge-agent/pkg/util/log"
)

// Watcher re-runs a callback when a watched config file is rewritten.
// Quality thresholds and calibrations can be tuned without restarting
// the agent.
type Watcher struct {
	fw    *fsnotify.Watcher
	files map[string]func(path string)
	stop  chan struct{}
}

// NewWatcher creates an idle watcher.
func NewWatcher() (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating fsnotify watcher")
	}
	return &Watcher{
		fw:    fw,
		files: map[string]func(string){},
		stop:  make(chan struct{}),
	}, nil
}

// Watch registers a file and its reload callback. The parent directory is
// watched so editors that replace the file atomically are still seen.
func (w *Watcher) Watch(path string, onChange func(path string)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrapf(err, "resolving %s", path)
	}
	if err := w.fw.Add(filepath.Dir(abs)); err != nil {
		return errors.Wrapf(err, "watching %s", filepath.Dir(abs))
	}
	w.files[abs] = onChange
	return nil
}

// Start runs the event loop until Stop is called.
func (w *Watcher) Start() {
	go func() {
		for {
			select {
			case <-w.stop:
				return
			case ev, ok := <-w.fw.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				abs, err := filepath.Abs(ev.Name)
				if err != nil {
					continue
				}
				if cb, found := w.files[abs]; found {
					log.Infof("config file %s changed, reloading", abs)
					cb(abs)
				}
			case err, ok := <-w.fw.Errors:
				if !ok {
					return
				}
				log.Warnf("config watcher error: %v", err) //nolint:errcheck
			}
		}
	}()
}

// Stop terminates the watcher.
func (w *Watcher) Stop() error {
	close(w.stop)
	return w.fw.Close()
}
