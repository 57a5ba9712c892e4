// Package overview compares what a batch of decoded telegrams would write
// against what is already stored, day by day and station by station, so an
// operator can review the effect before saving.
package overview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/couchcryptid/hydro-telegram-etl/internal/domain"
	"github.com/couchcryptid/hydro-telegram-etl/internal/kn15"
	"github.com/couchcryptid/hydro-telegram-etl/internal/ratingcurve"
)

// Observation hours within a day.
const (
	morningHour = 8
	averageHour = 12
	eveningHour = 20
)

// Value pairs a stored value with the one the telegrams carry. Either may
// be nil.
type Value struct {
	Old *float64 `json:"old"`
	New *float64 `json:"new"`
}

// Day is the comparison for one calendar day of one station.
type Day struct {
	Date              time.Time `json:"date"`
	MorningWaterLevel Value     `json:"morning_water_level"`
	EveningWaterLevel Value     `json:"evening_water_level"`
	AverageWaterLevel Value     `json:"average_water_level"`
	MorningDischarge  Value     `json:"morning_discharge"`
	EveningDischarge  Value     `json:"evening_discharge"`
	AverageDischarge  Value     `json:"average_discharge"`
}

// Station is the comparison for one station, days in chronological order.
type Station struct {
	StationCode string `json:"station_code"`
	StationName string `json:"station_name"`
	Days        []Day  `json:"days"`
}

// Overview holds one entry per station, ordered by station code.
type Overview struct {
	Stations []Station `json:"stations"`
}

// Builder assembles overviews from stored metrics and rating curves.
type Builder struct {
	metrics domain.MetricStore
	curves  domain.RatingCurveRepository
	logger  *slog.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(metrics domain.MetricStore, curves domain.RatingCurveRepository, logger *slog.Logger) *Builder {
	return &Builder{metrics: metrics, curves: curves, logger: logger}
}

// stationBatch collects the new levels a batch carries for one station.
type stationBatch struct {
	station domain.Station
	morning map[time.Time]int
	evening map[time.Time]int
}

// Build groups telegrams by station and compares each touched day. A
// reading's 20:00 level belongs to the day before the reading. Later
// telegrams in the slice override earlier ones for the same day.
func (b *Builder) Build(ctx context.Context, telegrams []kn15.DecodedTelegram) (Overview, error) {
	batches := make(map[string]*stationBatch)
	for _, tg := range telegrams {
		code := tg.SectionZero.StationCode
		sb, ok := batches[code]
		if !ok {
			sb = &stationBatch{
				station: tg.HydroStation,
				morning: make(map[time.Time]int),
				evening: make(map[time.Time]int),
			}
			batches[code] = sb
		}

		sb.add(tg.SectionZero.Date, tg.SectionOne)
		for _, two := range tg.SectionTwo {
			sb.add(two.Date, two.SectionOne)
		}
	}

	codes := make([]string, 0, len(batches))
	for code := range batches {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	out := Overview{Stations: make([]Station, 0, len(codes))}
	for _, code := range codes {
		st, err := b.buildStation(ctx, code, batches[code])
		if err != nil {
			return Overview{}, err
		}
		out.Stations = append(out.Stations, st)
	}
	return out, nil
}

func (sb *stationBatch) add(readingDate time.Time, one kn15.SectionOne) {
	day := startOfDay(readingDate)
	sb.morning[day] = one.MorningWaterLevel
	sb.evening[day.AddDate(0, 0, -1)] = one.WaterLevel20hPeriod
}

func (b *Builder) buildStation(ctx context.Context, code string, sb *stationBatch) (Station, error) {
	days := sb.touchedDays()
	stored, err := b.storedMetrics(ctx, sb.station, days)
	if err != nil {
		return Station{}, err
	}

	resolver := &curveResolver{repo: b.curves, station: sb.station, cache: make(map[time.Time]*ratingcurve.Params)}

	out := Station{StationCode: code, StationName: sb.station.Name, Days: make([]Day, 0, len(days))}
	for _, day := range days {
		morningAt := day.Add(morningHour * time.Hour)
		eveningAt := day.Add(eveningHour * time.Hour)
		averageAt := day.Add(averageHour * time.Hour)

		d := Day{
			Date:              day,
			MorningWaterLevel: Value{Old: stored.get(domain.MetricWaterLevelDaily, morningAt)},
			EveningWaterLevel: Value{Old: stored.get(domain.MetricWaterLevelDaily, eveningAt)},
			AverageWaterLevel: Value{Old: stored.get(domain.MetricWaterLevelDailyAverage, averageAt)},
			MorningDischarge:  Value{Old: stored.get(domain.MetricDischargeDaily, morningAt)},
			EveningDischarge:  Value{Old: stored.get(domain.MetricDischargeDaily, eveningAt)},
			AverageDischarge:  Value{Old: stored.get(domain.MetricDischargeDailyAverage, averageAt)},
		}

		if level, ok := sb.morning[day]; ok {
			d.MorningWaterLevel.New = ptr(float64(level))
			if d.MorningDischarge.New, err = resolver.discharge(ctx, morningAt, float64(level)); err != nil {
				return Station{}, err
			}
		}
		if level, ok := sb.evening[day]; ok {
			d.EveningWaterLevel.New = ptr(float64(level))
			if d.EveningDischarge.New, err = resolver.discharge(ctx, eveningAt, float64(level)); err != nil {
				return Station{}, err
			}
		}
		if avg := averageLevel(d.MorningWaterLevel.New, d.EveningWaterLevel.New); avg != nil {
			d.AverageWaterLevel.New = avg
			if d.AverageDischarge.New, err = resolver.discharge(ctx, averageAt, *avg); err != nil {
				return Station{}, err
			}
		}

		out.Days = append(out.Days, d)
	}

	b.logger.Debug("station overview built", "station", code, "days", len(out.Days))
	return out, nil
}

// averageLevel rounds the mean of both readings up, following the
// hydromet convention. With one reading it returns that reading.
func averageLevel(morning, evening *float64) *float64 {
	switch {
	case morning != nil && evening != nil:
		return ptr(math.Ceil((*morning + *evening) / 2))
	case morning != nil:
		return ptr(*morning)
	case evening != nil:
		return ptr(*evening)
	default:
		return nil
	}
}

func (sb *stationBatch) touchedDays() []time.Time {
	seen := make(map[time.Time]struct{}, len(sb.morning)+len(sb.evening))
	for day := range sb.morning {
		seen[day] = struct{}{}
	}
	for day := range sb.evening {
		seen[day] = struct{}{}
	}
	days := make([]time.Time, 0, len(seen))
	for day := range seen {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

type metricKey struct {
	name domain.MetricName
	at   int64
}

type storedValues map[metricKey]float64

func (s storedValues) get(name domain.MetricName, at time.Time) *float64 {
	v, ok := s[metricKey{name: name, at: at.Unix()}]
	if !ok {
		return nil
	}
	return &v
}

// storedMetrics loads every stored value for the touched range in one call.
func (b *Builder) storedMetrics(ctx context.Context, station domain.Station, days []time.Time) (storedValues, error) {
	out := make(storedValues)
	if len(days) == 0 {
		return out, nil
	}
	from := days[0]
	to := days[len(days)-1].AddDate(0, 0, 1)

	metrics, err := b.metrics.GetMetrics(ctx, station, from, to)
	if err != nil {
		return nil, fmt.Errorf("load metrics for station %s: %w", station.Code, err)
	}
	for _, m := range metrics {
		out[metricKey{name: m.Name, at: m.Timestamp.Unix()}] = m.Value
	}
	return out, nil
}

// curveResolver memoises rating-curve lookups per timestamp.
type curveResolver struct {
	repo    domain.RatingCurveRepository
	station domain.Station
	cache   map[time.Time]*ratingcurve.Params
}

// discharge projects level through the curve active at at. It returns nil
// when the station has no curve for that time.
func (r *curveResolver) discharge(ctx context.Context, at time.Time, level float64) (*float64, error) {
	params, ok := r.cache[at]
	if !ok {
		p, err := r.repo.ActiveCurve(ctx, r.station, at)
		switch {
		case errors.Is(err, domain.ErrNoRatingCurve):
			params = nil
		case err != nil:
			return nil, fmt.Errorf("rating curve for station %s at %s: %w", r.station.Code, at.Format(time.RFC3339), err)
		default:
			params = &p
		}
		r.cache[at] = params
	}
	if params == nil {
		return nil, nil
	}
	return ptr(ratingcurve.Estimate(*params, level)), nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func ptr[T any](v T) *T {
	return &v
}
