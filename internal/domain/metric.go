package domain

import (
	"context"
	"errors"
	"time"

	"github.com/couchcryptid/hydro-telegram-etl/internal/ratingcurve"
)

// ErrNoRatingCurve is returned when no discharge model covers a timestamp.
var ErrNoRatingCurve = errors.New("no rating curve for station")

// MetricName identifies a stored hydrological series.
type MetricName string

const (
	MetricWaterLevelDaily        MetricName = "WLD"
	MetricWaterLevelDailyAverage MetricName = "WLDA"
	MetricDischargeDaily         MetricName = "WDD"
	MetricDischargeDailyAverage  MetricName = "WDDA"
)

// ValueType tells how a stored value was produced.
type ValueType string

const (
	ValueManual    ValueType = "M"
	ValueEstimated ValueType = "E"
)

// Metric is a single stored observation.
type Metric struct {
	Timestamp time.Time  `json:"timestamp"`
	Name      MetricName `json:"metric_name"`
	ValueType ValueType  `json:"value_type"`
	Value     float64    `json:"value"`
}

// MetricStore serves historical values. Lookups are ranged so callers can
// fetch everything a batch needs in one round trip.
type MetricStore interface {
	GetMetrics(ctx context.Context, station Station, from, to time.Time) ([]Metric, error)
}

// RatingCurveRepository selects the discharge model whose validity window
// covers a timestamp. It returns an error wrapping ErrNoRatingCurve when
// none does.
type RatingCurveRepository interface {
	ActiveCurve(ctx context.Context, station Station, at time.Time) (ratingcurve.Params, error)
}
