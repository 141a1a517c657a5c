// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// SourceType identifies a collector implementation.
type SourceType string

const (
	SourceOPCUA  SourceType = "opcua"
	SourceModbus SourceType = "modbus"
	SourceREST   SourceType = "rest"
	SourceManual SourceType = "manual"
)

// RegisterSpec describes one Modbus register block.
type RegisterSpec struct {
	Address uint16 `yaml:"address"`
	Count   uint16 `yaml:"count"`
	Type    string `yaml:"type"` // int16, uint16, int32, float32
}

// EndpointSpec describes one REST polling endpoint.
type EndpointSpec struct {
	Name     string        `yaml:"name"`
	Path     string        `yaml:"path"`
	Interval time.Duration `yaml:"interval"`
	Tags     []string      `yaml:"tags"`
}

// SourceConfig describes a single data source entry in sources.yaml.
type SourceConfig struct {
	ID       string     `yaml:"id"`
	Type     SourceType `yaml:"type"`
	Enabled  bool       `yaml:"enabled"`
	DataType string     `yaml:"data_type"` // plc, attitude, monitoring

	// OPC UA
	Endpoint string   `yaml:"endpoint"`
	NodeIDs  map[string]string `yaml:"node_ids"` // tag -> node id

	// Modbus
	Address      string                  `yaml:"address"`
	UnitID       byte                    `yaml:"unit_id"`
	PollInterval time.Duration           `yaml:"poll_interval"`
	Registers    map[string]RegisterSpec `yaml:"registers"` // tag -> register

	// REST
	BaseURL   string         `yaml:"base_url"`
	AuthToken string         `yaml:"auth_token"`
	Timeout   time.Duration  `yaml:"timeout"`
	Endpoints []EndpointSpec `yaml:"endpoints"`

	// Quality expectations for this source
	SampleInterval time.Duration `yaml:"sample_interval"`
}

// SourcesFile is the top-level sources.yaml document.
type SourcesFile struct {
	Sources []SourceConfig `yaml:"sources"`
}

// LoadSources reads and parses sources.yaml.
func LoadSources(path string) (*SourcesFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading sources config %s", path)
	}
	var f SourcesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, errors.Wrapf(err, "parsing sources config %s", path)
	}
	for i := range f.Sources {
		s := &f.Sources[i]
		if s.PollInterval == 0 {
			s.PollInterval = time.Second
		}
		if s.Timeout == 0 {
			s.Timeout = 10 * time.Second
		}
		if s.SampleInterval == 0 {
			s.SampleInterval = time.Second
		}
	}
	return &f, nil
}
