package domain

import (
	"context"
	"errors"
	"time"
)

// ErrStationNotFound is returned by a StationDirectory when no station of the
// requested kind is registered under a code.
var ErrStationNotFound = errors.New("station not found")

// StationKind distinguishes hydrological posts from meteorological stations.
// A single 5-digit code may be registered as both.
type StationKind string

const (
	StationHydro StationKind = "hydro"
	StationMeteo StationKind = "meteo"
)

// Station is the directory's view of a manual station.
type Station struct {
	ID       int64          `json:"id"`
	Code     string         `json:"code"`
	Name     string         `json:"name"`
	Kind     StationKind    `json:"kind"`
	Location *time.Location `json:"-"`
}

// Timezone returns the station's zone, falling back to UTC.
func (s Station) Timezone() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

// StationDirectory answers station lookups for the telegram decoder.
type StationDirectory interface {
	// ExistsManualStation reports whether any manual station uses the code.
	ExistsManualStation(ctx context.Context, code string) (bool, error)

	// ResolveStation returns the station of the given kind, or an error
	// wrapping ErrStationNotFound.
	ResolveStation(ctx context.Context, code string, kind StationKind) (Station, error)
}
