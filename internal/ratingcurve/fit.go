// Package ratingcurve fits and evaluates station discharge models of the form
//
//	Q = C * (H + A)^B
//
// where H is the water level in centimetres and Q the discharge in m³/s.
// B is pinned to 2: taking the square root of both sides gives
// sqrt(Q) = sqrt(C)*H + sqrt(C)*A, a straight line in H that ordinary least
// squares can fit.
package ratingcurve

import (
	"errors"
	"fmt"
	"math"
)

// Exponent is the fixed power of the fitted curve.
const Exponent = 2.0

// InsufficientVariationMessage is reported when all samples share a level.
const InsufficientVariationMessage = "Insufficient variation in water levels for reliable discharge calculation. " +
	"Measurements need to be taken at different water levels."

var (
	// ErrInsufficientDataVariation means every sample has the same water level.
	ErrInsufficientDataVariation = errors.New(InsufficientVariationMessage)

	// ErrTooFewSamples means fewer than two samples were supplied.
	ErrTooFewSamples = errors.New("at least 2 measurements are required to fit a rating curve")

	// ErrFlatDischarge means discharge does not change with water level, so
	// the curve offset would be infinite.
	ErrFlatDischarge = errors.New("discharge does not vary with water level")

	// ErrNegativeDischarge means a sample carries a discharge below zero.
	ErrNegativeDischarge = errors.New("discharge must not be negative")
)

// Sample is one paired level/discharge measurement.
type Sample struct {
	H float64 `json:"h"`
	Q float64 `json:"q"`
}

// Params are the coefficients of Q = C * (H + A)^B.
type Params struct {
	A float64 `json:"param_a"`
	B float64 `json:"param_b"`
	C float64 `json:"param_c"`
}

// Number is any numeric type a water level may arrive as.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Fit estimates Params from samples by least squares on (H, sqrt(Q)).
// Errors wrap one of the package sentinels.
func Fit(samples []Sample) (Params, error) {
	if len(samples) < 2 {
		return Params{}, fmt.Errorf("fit rating curve with %d samples: %w", len(samples), ErrTooFewSamples)
	}

	n := float64(len(samples))
	var sumX, sumY float64
	ys := make([]float64, len(samples))
	for i, s := range samples {
		if s.Q < 0 {
			return Params{}, fmt.Errorf("sample %d (h=%g, q=%g): %w", i, s.H, s.Q, ErrNegativeDischarge)
		}
		ys[i] = math.Sqrt(s.Q)
		sumX += s.H
		sumY += ys[i]
	}
	meanX := sumX / n
	meanY := sumY / n

	var sxx, sxy float64
	for i, s := range samples {
		dx := s.H - meanX
		sxx += dx * dx
		sxy += dx * (ys[i] - meanY)
	}

	if sxx == 0 {
		return Params{}, ErrInsufficientDataVariation
	}

	slope := sxy / sxx
	if slope == 0 {
		return Params{}, ErrFlatDischarge
	}
	intercept := meanY - slope*meanX

	return Params{
		A: intercept / slope,
		B: Exponent,
		C: slope * slope,
	}, nil
}

// Discharge evaluates the curve at a water level. A negative base with a
// non-integer exponent yields NaN rather than a panic.
func (p Params) Discharge(level float64) float64 {
	return p.C * math.Pow(level+p.A, p.B)
}

// Estimate evaluates p at a level of any numeric type.
func Estimate[N Number](p Params, level N) float64 {
	return p.Discharge(float64(level))
}
