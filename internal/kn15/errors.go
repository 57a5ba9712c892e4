package kn15

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a decode failure.
type Kind int

const (
	KindInvalidToken Kind = iota + 1
	KindMissingSection
	KindUnsupportedSection
	KindStationNotFound
	KindMissingHydroStation
	KindMissingMeteoStation
)

// Sentinels for errors.Is. A *ParseError matches the sentinel of its Kind.
var (
	ErrInvalidToken        = errors.New("invalid token")
	ErrMissingSection      = errors.New("missing section")
	ErrUnsupportedSection  = errors.New("unsupported section")
	ErrStationNotFound     = errors.New("station not found")
	ErrMissingHydroStation = errors.New("missing hydro station")
	ErrMissingMeteoStation = errors.New("missing meteo station")
)

func (k Kind) sentinel() error {
	switch k {
	case KindInvalidToken:
		return ErrInvalidToken
	case KindMissingSection:
		return ErrMissingSection
	case KindUnsupportedSection:
		return ErrUnsupportedSection
	case KindStationNotFound:
		return ErrStationNotFound
	case KindMissingHydroStation:
		return ErrMissingHydroStation
	case KindMissingMeteoStation:
		return ErrMissingMeteoStation
	default:
		return nil
	}
}

// String returns the snake_case name used in logs, metrics and the telegram log.
func (k Kind) String() string {
	switch k {
	case KindInvalidToken:
		return "invalid_token"
	case KindMissingSection:
		return "missing_section"
	case KindUnsupportedSection:
		return "unsupported_section"
	case KindStationNotFound:
		return "station_not_found"
	case KindMissingHydroStation:
		return "missing_hydro_station"
	case KindMissingMeteoStation:
		return "missing_meteo_station"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseError describes why a telegram could not be decoded. It names the
// offending group and the format that was expected there so an operator can
// correct the telegram text.
type ParseError struct {
	Kind     Kind
	Section  string   // e.g. "section one"
	Token    string   // offending group or value, empty at end of input
	Expected string   // expected format, e.g. "1HHHH"
	Message  string
	Consumed []string // groups consumed before the failure
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.sentinel().Error())
	if e.Section != "" {
		b.WriteString(" in ")
		b.WriteString(e.Section)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Token != "" {
		fmt.Fprintf(&b, " (got %q", e.Token)
		if e.Expected != "" {
			fmt.Fprintf(&b, ", expected %s", e.Expected)
		}
		b.WriteString(")")
	} else if e.Expected != "" {
		fmt.Fprintf(&b, " (expected %s)", e.Expected)
	}
	if e.Kind == KindMissingSection && len(e.Consumed) > 0 {
		fmt.Fprintf(&b, " after %q", strings.Join(e.Consumed, " "))
	}
	return b.String()
}

// Is matches the sentinel for the error's Kind.
func (e *ParseError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// KindOf returns the Kind of a *ParseError in err's chain, or 0.
func KindOf(err error) Kind {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}
