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

// TagRange is a physical min/max bound for one tag.
type TagRange struct {
	Min *float64 `yaml:"min"`
	Max *float64 `yaml:"max"`
}

// ThresholdsFile is the thresholds.yaml document used by the validator.
type ThresholdsFile struct {
	Tags map[string]TagRange `yaml:"tags"`
}

// LoadThresholds reads thresholds.yaml. A missing file yields an empty,
// permissive configuration.
func LoadThresholds(path string) (*ThresholdsFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ThresholdsFile{Tags: map[string]TagRange{}}, nil
		}
		return nil, errors.Wrapf(err, "reading thresholds config %s", path)
	}
	var f ThresholdsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, errors.Wrapf(err, "parsing thresholds config %s", path)
	}
	if f.Tags == nil {
		f.Tags = map[string]TagRange{}
	}
	return &f, nil
}

// CalibrationSpec configures the calibration of one tag.
type CalibrationSpec struct {
	Method     string     `yaml:"method"` // linear, polynomial, lookup_table
	Enabled    bool       `yaml:"enabled"`
	Offset     float64    `yaml:"offset"`
	Scale      float64    `yaml:"scale"`
	Coeffs     []float64  `yaml:"coefficients"`
	Table      [][2]float64 `yaml:"table"` // sorted (raw, calibrated) pairs
	ValidFrom  *time.Time `yaml:"valid_from"`
	ValidUntil *time.Time `yaml:"valid_until"`
}

// CalibrationsFile is the calibrations.yaml document.
type CalibrationsFile struct {
	Tags map[string]CalibrationSpec `yaml:"tags"`
}

// LoadCalibrations reads calibrations.yaml. A missing file disables
// calibration entirely.
func LoadCalibrations(path string) (*CalibrationsFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &CalibrationsFile{Tags: map[string]CalibrationSpec{}}, nil
		}
		return nil, errors.Wrapf(err, "reading calibrations config %s", path)
	}
	var f CalibrationsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, errors.Wrapf(err, "parsing calibrations config %s", path)
	}
	if f.Tags == nil {
		f.Tags = map[string]CalibrationSpec{}
	}
	return &f, nil
}
