// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package aggregator turns raw ring-window samples into per-ring features.
package aggregator

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/geotunnel/edge-agent/pkg/model"
)

// medianSampleLimit bounds the sort cost of the median on huge rings.
const medianSampleLimit = 10000

// AggregatePlc computes mean/max/min/std features for every tag in the
// window, named "{stat}_{tag}". Rejected and missing samples were already
// filtered by the store query; non-finite values are dropped here.
func AggregatePlc(byTag map[string][]model.PlcReading) map[string]float64 {
	features := map[string]float64{}
	for tag, rows := range byTag {
		values := make([]float64, 0, len(rows))
		for _, r := range rows {
			if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
				continue
			}
			values = append(values, r.Value)
		}
		if len(values) == 0 {
			continue
		}
		addStats(features, tag, values)
	}
	return features
}

// AggregateTags computes features for selected tags only, renaming each
// through the prefix map (tag -> feature prefix).
func AggregateTags(byTag map[string][]model.PlcReading, prefixes map[string]string) map[string]float64 {
	features := map[string]float64{}
	for tag, prefix := range prefixes {
		rows, found := byTag[tag]
		if !found {
			continue
		}
		values := make([]float64, 0, len(rows))
		for _, r := range rows {
			if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
				continue
			}
			values = append(values, r.Value)
		}
		if len(values) == 0 {
			continue
		}
		addStats(features, prefix, values)
	}
	return features
}

func addStats(features map[string]float64, name string, values []float64) {
	mean, std := stat.MeanStdDev(values, nil)
	if len(values) == 1 {
		std = 0
	}
	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	features[fmt.Sprintf("mean_%s", name)] = mean
	features[fmt.Sprintf("max_%s", name)] = max
	features[fmt.Sprintf("min_%s", name)] = min
	features[fmt.Sprintf("std_%s", name)] = std
	if len(values) <= medianSampleLimit {
		features[fmt.Sprintf("median_%s", name)] = median(values)
	}
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
