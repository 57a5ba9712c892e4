// Package domain holds the types shared between the telegram decoder, the
// discharge overview and the adapters: stations, stored metrics, raw and
// serialized pipeline messages, and the collaborator interfaces the core
// calls out to.
//
// # Collaborators
//
// The decoder never touches storage directly. Everything it needs to know
// about the outside world goes through three narrow interfaces:
//
//	StationDirectory       does code X exist, and as a hydro or meteo station
//	RatingCurveRepository  which discharge model is valid at time T
//	MetricStore            what is already stored for a station and period
//
// The sqlite adapter implements all three; tests use in-memory fakes.
//
// # Time
//
// Telegram dates are ambiguous (day of month and hour only) and are resolved
// against a reference "now". The pipeline uses the Kafka receive timestamp
// as that reference and falls back to the package clock, which tests freeze
// through [SetClock].
package domain
