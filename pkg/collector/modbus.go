// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package collector

import (
	"context"
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goburrow/modbus"
	"github.com/pkg/errors"

	"github.com/geotunnel/edge-agent/pkg/config"
	"github.com/geotunnel/edge-agent/pkg/model"
	"github.com/geotunnel/edge-agent/pkg/util/log"
)

// ModbusCollector polls holding registers on a Modbus TCP PLC. Register
// values are big-endian, per the Modbus spec.
type ModbusCollector struct {
	cfg      config.SourceConfig
	onSample SampleFunc

	connected atomic.Bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewModbus builds a Modbus TCP collector.
func NewModbus(cfg config.SourceConfig, onSample SampleFunc) *ModbusCollector {
	return &ModbusCollector{cfg: cfg, onSample: onSample}
}

// Name implements Collector.
func (c *ModbusCollector) Name() string { return c.cfg.ID }

// Healthy implements Collector.
func (c *ModbusCollector) Healthy() bool { return c.connected.Load() }

// Start implements Collector.
func (c *ModbusCollector) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			if err := c.pollLoop(runCtx); err != nil && runCtx.Err() == nil {
				log.Errorf("modbus %s: %v", c.cfg.ID, err) //nolint:errcheck
			}
			c.connected.Store(false)
			select {
			case <-runCtx.Done():
				return
			case <-time.After(reconnectDelay):
			}
		}
	}()
	return nil
}

// Stop implements Collector.
func (c *ModbusCollector) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

func (c *ModbusCollector) pollLoop(ctx context.Context) error {
	handler := modbus.NewTCPClientHandler(c.cfg.Address)
	handler.SlaveId = c.cfg.UnitID
	handler.Timeout = 5 * time.Second
	if err := handler.Connect(); err != nil {
		return errors.Wrapf(ErrSourceUnavailable, "connecting to %s: %v", c.cfg.Address, err)
	}
	defer handler.Close()
	client := modbus.NewClient(handler)

	c.connected.Store(true)
	log.Infof("modbus %s: polling %d registers on %s every %s",
		c.cfg.ID, len(c.cfg.Registers), c.cfg.Address, c.cfg.PollInterval)

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.pollOnce(client); err != nil {
				return err
			}
		}
	}
}

func (c *ModbusCollector) pollOnce(client modbus.Client) error {
	now := time.Now().UTC()
	for tag, reg := range c.cfg.Registers {
		raw, err := client.ReadHoldingRegisters(reg.Address, reg.Count)
		if err != nil {
			return errors.Wrapf(ErrSourceUnavailable, "reading %s at %d: %v", tag, reg.Address, err)
		}
		value, err := decodeRegisters(raw, reg.Type)
		if err != nil {
			samplesCollected.WithLabelValues(c.cfg.ID, "decode_error").Inc()
			log.Warnf("modbus %s: decoding %s: %v", c.cfg.ID, tag, err) //nolint:errcheck
			continue
		}
		samplesCollected.WithLabelValues(c.cfg.ID, "ok").Inc()
		c.onSample(model.Sample{
			SourceID:    c.cfg.ID,
			Tag:         tag,
			Value:       value,
			Timestamp:   now,
			QualityFlag: model.QualityRaw,
		})
	}
	return nil
}

func decodeRegisters(raw []byte, regType string) (float64, error) {
	switch regType {
	case "int16":
		if len(raw) < 2 {
			return 0, errors.New("short read for int16")
		}
		return float64(int16(binary.BigEndian.Uint16(raw))), nil
	case "uint16":
		if len(raw) < 2 {
			return 0, errors.New("short read for uint16")
		}
		return float64(binary.BigEndian.Uint16(raw)), nil
	case "int32":
		if len(raw) < 4 {
			return 0, errors.New("short read for int32")
		}
		return float64(int32(binary.BigEndian.Uint32(raw))), nil
	case "float32":
		if len(raw) < 4 {
			return 0, errors.New("short read for float32")
		}
		return float64(math.Float32frombits(binary.BigEndian.Uint32(raw))), nil
	}
	return 0, errors.Errorf("unknown register type %q", regType)
}
