package overview_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/hydro-telegram-etl/internal/domain"
	"github.com/couchcryptid/hydro-telegram-etl/internal/kn15"
	"github.com/couchcryptid/hydro-telegram-etl/internal/overview"
	"github.com/couchcryptid/hydro-telegram-etl/internal/ratingcurve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeMetricStore struct {
	metrics []domain.Metric
	err     error
	calls   int
}

func (f *fakeMetricStore) GetMetrics(_ context.Context, _ domain.Station, from, to time.Time) ([]domain.Metric, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.Metric
	for _, m := range f.metrics {
		if !m.Timestamp.Before(from) && m.Timestamp.Before(to) {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeCurves struct {
	params *ratingcurve.Params
	err    error
	calls  int
}

func (f *fakeCurves) ActiveCurve(_ context.Context, _ domain.Station, _ time.Time) (ratingcurve.Params, error) {
	f.calls++
	if f.err != nil {
		return ratingcurve.Params{}, f.err
	}
	if f.params == nil {
		return ratingcurve.Params{}, domain.ErrNoRatingCurve
	}
	return *f.params, nil
}

// --- helpers ---

var (
	chu   = domain.Station{ID: 1, Code: "12345", Name: "Chu - Kochkorka", Kind: domain.StationHydro}
	naryn = domain.Station{ID: 2, Code: "54321", Name: "Naryn - Naryn", Kind: domain.StationHydro}

	// Q = 0.01 * H^2
	squareCurve = ratingcurve.Params{A: 0, B: ratingcurve.Exponent, C: 0.01}
)

func at(day, hour int) time.Time {
	return time.Date(2024, time.April, day, hour, 0, 0, 0, time.UTC)
}

func telegram(station domain.Station, day, morning, evening int) kn15.DecodedTelegram {
	return kn15.DecodedTelegram{
		SectionZero: kn15.SectionZero{
			StationCode: station.Code,
			StationName: station.Name,
			Date:        at(day, 8),
			SectionCode: kn15.SectionCodeDaily,
		},
		SectionOne: kn15.SectionOne{
			MorningWaterLevel:   morning,
			WaterLevel20hPeriod: evening,
		},
		HydroStation: station,
	}
}

func newBuilder(metrics domain.MetricStore, curves domain.RatingCurveRepository) *overview.Builder {
	return overview.NewBuilder(metrics, curves, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func fp(v float64) *float64 { return &v }

// --- tests ---

func TestBuild_SingleTelegram(t *testing.T) {
	b := newBuilder(&fakeMetricStore{}, &fakeCurves{params: &squareCurve})

	got, err := b.Build(context.Background(), []kn15.DecodedTelegram{telegram(chu, 15, 410, 420)})
	require.NoError(t, err)
	require.Len(t, got.Stations, 1)

	st := got.Stations[0]
	assert.Equal(t, "12345", st.StationCode)
	assert.Equal(t, "Chu - Kochkorka", st.StationName)
	require.Len(t, st.Days, 2)

	// The 20:00 reading belongs to the previous day.
	prev := st.Days[0]
	assert.Equal(t, at(14, 0), prev.Date)
	assert.Nil(t, prev.MorningWaterLevel.New)
	assert.Equal(t, fp(420), prev.EveningWaterLevel.New)
	assert.Equal(t, fp(420), prev.AverageWaterLevel.New)
	assert.InDelta(t, 1764.0, *prev.EveningDischarge.New, 1e-9)
	assert.InDelta(t, 1764.0, *prev.AverageDischarge.New, 1e-9)

	cur := st.Days[1]
	assert.Equal(t, at(15, 0), cur.Date)
	assert.Equal(t, fp(410), cur.MorningWaterLevel.New)
	assert.Nil(t, cur.EveningWaterLevel.New)
	assert.Equal(t, fp(410), cur.AverageWaterLevel.New)
	assert.InDelta(t, 1681.0, *cur.MorningDischarge.New, 1e-9)
}

func TestBuild_AverageRoundsUp(t *testing.T) {
	b := newBuilder(&fakeMetricStore{}, &fakeCurves{params: &squareCurve})

	got, err := b.Build(context.Background(), []kn15.DecodedTelegram{
		telegram(chu, 15, 410, 400),
		telegram(chu, 16, 420, 415),
	})
	require.NoError(t, err)
	require.Len(t, got.Stations, 1)
	require.Len(t, got.Stations[0].Days, 3)

	day := got.Stations[0].Days[1]
	assert.Equal(t, at(15, 0), day.Date)
	assert.Equal(t, fp(410), day.MorningWaterLevel.New)
	assert.Equal(t, fp(415), day.EveningWaterLevel.New)
	assert.Equal(t, fp(413), day.AverageWaterLevel.New)
	assert.InDelta(t, 0.01*413*413, *day.AverageDischarge.New, 1e-9)
}

func TestBuild_OldValues(t *testing.T) {
	store := &fakeMetricStore{metrics: []domain.Metric{
		{Timestamp: at(15, 8), Name: domain.MetricWaterLevelDaily, ValueType: domain.ValueManual, Value: 405},
		{Timestamp: at(15, 12), Name: domain.MetricWaterLevelDailyAverage, ValueType: domain.ValueManual, Value: 406},
		{Timestamp: at(15, 8), Name: domain.MetricDischargeDaily, ValueType: domain.ValueEstimated, Value: 16.4},
		{Timestamp: at(15, 12), Name: domain.MetricDischargeDailyAverage, ValueType: domain.ValueEstimated, Value: 16.5},
		{Timestamp: at(14, 20), Name: domain.MetricWaterLevelDaily, ValueType: domain.ValueManual, Value: 399},
		{Timestamp: at(14, 20), Name: domain.MetricDischargeDaily, ValueType: domain.ValueEstimated, Value: 15.9},
		// Outside the touched range.
		{Timestamp: at(10, 8), Name: domain.MetricWaterLevelDaily, ValueType: domain.ValueManual, Value: 1},
	}}
	b := newBuilder(store, &fakeCurves{})

	got, err := b.Build(context.Background(), []kn15.DecodedTelegram{telegram(chu, 15, 410, 420)})
	require.NoError(t, err)
	require.Len(t, got.Stations[0].Days, 2)
	assert.Equal(t, 1, store.calls)

	prev := got.Stations[0].Days[0]
	assert.Equal(t, fp(399), prev.EveningWaterLevel.Old)
	assert.Equal(t, fp(15.9), prev.EveningDischarge.Old)
	assert.Nil(t, prev.MorningWaterLevel.Old)

	cur := got.Stations[0].Days[1]
	assert.Equal(t, fp(405), cur.MorningWaterLevel.Old)
	assert.Equal(t, fp(406), cur.AverageWaterLevel.Old)
	assert.Equal(t, fp(16.4), cur.MorningDischarge.Old)
	assert.Equal(t, fp(16.5), cur.AverageDischarge.Old)
	assert.Nil(t, cur.EveningWaterLevel.Old)
}

func TestBuild_NoRatingCurve(t *testing.T) {
	curves := &fakeCurves{}
	b := newBuilder(&fakeMetricStore{}, curves)

	got, err := b.Build(context.Background(), []kn15.DecodedTelegram{telegram(chu, 15, 410, 420)})
	require.NoError(t, err)

	for _, day := range got.Stations[0].Days {
		assert.NotNil(t, day.AverageWaterLevel.New)
		assert.Nil(t, day.MorningDischarge.New)
		assert.Nil(t, day.EveningDischarge.New)
		assert.Nil(t, day.AverageDischarge.New)
	}
}

func TestBuild_SectionTwoCorrections(t *testing.T) {
	tg := telegram(chu, 15, 410, 420)
	tg.SectionTwo = []kn15.SectionTwo{{
		Date:       at(12, 8),
		SectionOne: kn15.SectionOne{MorningWaterLevel: 300, WaterLevel20hPeriod: 310},
	}}
	b := newBuilder(&fakeMetricStore{}, &fakeCurves{})

	got, err := b.Build(context.Background(), []kn15.DecodedTelegram{tg})
	require.NoError(t, err)

	days := got.Stations[0].Days
	require.Len(t, days, 4)
	assert.Equal(t, at(11, 0), days[0].Date)
	assert.Equal(t, fp(310), days[0].EveningWaterLevel.New)
	assert.Equal(t, at(12, 0), days[1].Date)
	assert.Equal(t, fp(300), days[1].MorningWaterLevel.New)
	assert.Equal(t, at(14, 0), days[2].Date)
	assert.Equal(t, at(15, 0), days[3].Date)
}

func TestBuild_LaterTelegramWins(t *testing.T) {
	b := newBuilder(&fakeMetricStore{}, &fakeCurves{})

	got, err := b.Build(context.Background(), []kn15.DecodedTelegram{
		telegram(chu, 15, 410, 420),
		telegram(chu, 15, 412, 421),
	})
	require.NoError(t, err)

	days := got.Stations[0].Days
	require.Len(t, days, 2)
	assert.Equal(t, fp(421), days[0].EveningWaterLevel.New)
	assert.Equal(t, fp(412), days[1].MorningWaterLevel.New)
}

func TestBuild_GroupsStationsByCode(t *testing.T) {
	b := newBuilder(&fakeMetricStore{}, &fakeCurves{})

	got, err := b.Build(context.Background(), []kn15.DecodedTelegram{
		telegram(naryn, 15, 200, 201),
		telegram(chu, 15, 410, 420),
		telegram(naryn, 16, 202, 203),
	})
	require.NoError(t, err)
	require.Len(t, got.Stations, 2)
	assert.Equal(t, "12345", got.Stations[0].StationCode)
	assert.Equal(t, "54321", got.Stations[1].StationCode)
	assert.Len(t, got.Stations[1].Days, 3)

	for _, st := range got.Stations {
		for i := 1; i < len(st.Days); i++ {
			assert.True(t, st.Days[i-1].Date.Before(st.Days[i].Date))
		}
	}
}

func TestBuild_Empty(t *testing.T) {
	store := &fakeMetricStore{}
	b := newBuilder(store, &fakeCurves{})

	got, err := b.Build(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got.Stations)
	assert.Zero(t, store.calls)
}

func TestBuild_StoreError(t *testing.T) {
	storeErr := errors.New("connection reset")
	b := newBuilder(&fakeMetricStore{err: storeErr}, &fakeCurves{})

	_, err := b.Build(context.Background(), []kn15.DecodedTelegram{telegram(chu, 15, 410, 420)})
	require.ErrorIs(t, err, storeErr)
	assert.Contains(t, err.Error(), "12345")
}

func TestBuild_CurveError(t *testing.T) {
	curveErr := errors.New("query timeout")
	b := newBuilder(&fakeMetricStore{}, &fakeCurves{err: curveErr})

	_, err := b.Build(context.Background(), []kn15.DecodedTelegram{telegram(chu, 15, 410, 420)})
	require.ErrorIs(t, err, curveErr)
}

func TestBuild_CurveLookupsAreMemoised(t *testing.T) {
	curves := &fakeCurves{params: &squareCurve}
	b := newBuilder(&fakeMetricStore{}, curves)

	_, err := b.Build(context.Background(), []kn15.DecodedTelegram{
		telegram(chu, 15, 410, 420),
		telegram(chu, 15, 410, 420),
	})
	require.NoError(t, err)
	// Day 14: evening and average. Day 15: morning and average.
	assert.Equal(t, 4, curves.calls)
}
