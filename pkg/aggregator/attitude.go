// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package aggregator

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/geotunnel/edge-agent/pkg/model"
)

// trajectoryToleranceMM is the combined deviation within which a guidance
// point counts as on-trajectory.
const trajectoryToleranceMM = 50.0

// AttitudeFeatures holds per-ring guidance aggregates.
type AttitudeFeatures struct {
	MeanPitch *float64
	MeanRoll  *float64
	MeanYaw   *float64
	MaxPitch  *float64
	MaxRoll   *float64
	StdPitch  *float64
	StdRoll   *float64

	HorizontalDeviationMax  *float64
	VerticalDeviationMax    *float64
	HorizontalDeviationMean *float64
	VerticalDeviationMean   *float64

	TrajectoryQuality string
	DeviationTrend    string
}

// AggregateAttitude reduces guidance rows to ring features. Angles use a
// circular mean so yaw readings wrapping through 0/360 average correctly;
// spread and extrema stay linear, which is fine for the few degrees a TBM
// actually moves.
func AggregateAttitude(rows []model.AttitudeReading) AttitudeFeatures {
	f := AttitudeFeatures{TrajectoryQuality: "poor", DeviationTrend: "unknown"}
	if len(rows) == 0 {
		return f
	}

	pitch := make([]float64, len(rows))
	roll := make([]float64, len(rows))
	yaw := make([]float64, len(rows))
	hdev := make([]float64, len(rows))
	vdev := make([]float64, len(rows))
	adev := make([]float64, len(rows))
	for i, r := range rows {
		pitch[i] = r.Pitch
		roll[i] = r.Roll
		yaw[i] = r.Yaw
		hdev[i] = r.HorizontalDeviation
		vdev[i] = r.VerticalDeviation
		adev[i] = r.AxisDeviation
	}

	f.MeanPitch = ptr(circularMean(pitch))
	f.MeanRoll = ptr(circularMean(roll))
	f.MeanYaw = ptr(circularMean(yaw))
	f.MaxPitch = ptr(maxAbs(pitch))
	f.MaxRoll = ptr(maxAbs(roll))
	f.StdPitch = ptr(stdDev(pitch))
	f.StdRoll = ptr(stdDev(roll))

	f.HorizontalDeviationMax = ptr(maxAbs(hdev))
	f.VerticalDeviationMax = ptr(maxAbs(vdev))
	f.HorizontalDeviationMean = ptr(stat.Mean(hdev, nil))
	f.VerticalDeviationMean = ptr(stat.Mean(vdev, nil))

	f.TrajectoryQuality = trajectoryQuality(hdev, vdev, adev)
	f.DeviationTrend = deviationTrend(hdev, vdev, adev)
	return f
}

func ptr(v float64) *float64 { return &v }

// circularMean averages angles in degrees via the unit-vector sum.
func circularMean(deg []float64) float64 {
	var sinSum, cosSum float64
	for _, d := range deg {
		r := d * math.Pi / 180
		sinSum += math.Sin(r)
		cosSum += math.Cos(r)
	}
	return math.Atan2(sinSum/float64(len(deg)), cosSum/float64(len(deg))) * 180 / math.Pi
}

func stdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.StdDev(values, nil)
}

func maxAbs(values []float64) float64 {
	best := values[0]
	for _, v := range values[1:] {
		if math.Abs(v) > math.Abs(best) {
			best = v
		}
	}
	return best
}

// trajectoryQuality grades the ring by the fraction of points whose
// combined deviation stays within tolerance.
func trajectoryQuality(hdev, vdev, adev []float64) string {
	within := 0
	for i := range hdev {
		if totalDeviation(hdev[i], vdev[i], adev[i]) <= trajectoryToleranceMM {
			within++
		}
	}
	frac := float64(within) / float64(len(hdev))
	switch {
	case frac >= 0.95:
		return "excellent"
	case frac >= 0.90:
		return "good"
	case frac >= 0.80:
		return "acceptable"
	default:
		return "poor"
	}
}

// totalDeviation is the Euclidean distance over the horizontal, vertical
// and axis components.
func totalDeviation(h, v, a float64) float64 {
	return math.Sqrt(h*h + v*v + a*a)
}

// deviationTrend fits a line to the combined deviation over the ring and
// classifies the slope.
func deviationTrend(hdev, vdev, adev []float64) string {
	if len(hdev) < 3 {
		return "unknown"
	}
	xs := make([]float64, len(hdev))
	ys := make([]float64, len(hdev))
	for i := range hdev {
		xs[i] = float64(i)
		ys[i] = totalDeviation(hdev[i], vdev[i], adev[i])
	}
	_, slope := stat.LinearRegression(xs, ys, nil, false)
	switch {
	case math.Abs(slope) < 0.1:
		return "stable"
	case slope > 0:
		return "diverging"
	default:
		return "converging"
	}
}
