package kn15

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/couchcryptid/hydro-telegram-etl/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	sectionZero  = "section zero"
	sectionOne   = "section one"
	sectionTwo   = "section two"
	sectionThree = "section three"
	sectionSix   = "section six"
	sectionEight = "section eight"
)

// Section markers.
const (
	markerSectionTwo   = "922"
	markerSectionThree = "933"
	markerSectionSix   = "96"
	markerSectionEight = "988"

	// previousPeriodMarker is the only Section Three header in use.
	previousPeriodMarker = "93301"
)

// Parser decodes KN15 telegrams. It is safe for concurrent use as long as
// the directory is.
type Parser struct {
	stations domain.StationDirectory
}

// NewParser creates a Parser that resolves station codes through stations.
func NewParser(stations domain.StationDirectory) *Parser {
	return &Parser{stations: stations}
}

// decodeState carries what one Parse call has learned so far.
type decodeState struct {
	cur   *cursor
	now   time.Time
	out   DecodedTelegram
	three bool
	eight bool
}

// Parse decodes telegram, resolving its day-of-month dates against now.
// Any failure aborts the whole telegram; errors from the station directory
// other than domain.ErrStationNotFound are returned wrapped, everything else
// is a *ParseError.
func (p *Parser) Parse(ctx context.Context, telegram string, now time.Time) (DecodedTelegram, error) {
	st := &decodeState{
		cur: newCursor(telegram),
		now: now,
		out: DecodedTelegram{Raw: strings.TrimSpace(telegram)},
	}

	if err := p.parseSectionZero(ctx, st); err != nil {
		return DecodedTelegram{}, err
	}

	one, err := parseReadings(st.cur, sectionOne)
	if err != nil {
		return DecodedTelegram{}, err
	}
	st.out.SectionOne = one

	for !st.cur.done() {
		if err := p.parseMarkedSection(ctx, st); err != nil {
			return DecodedTelegram{}, err
		}
	}

	if st.out.SectionZero.SectionCode == SectionCodeExtended && !st.three {
		return DecodedTelegram{}, &ParseError{
			Kind:     KindMissingSection,
			Section:  sectionThree,
			Expected: previousPeriodMarker,
			Message:  "section code 2 requires section three",
			Consumed: st.cur.consumed(),
		}
	}
	return st.out, nil
}

func (p *Parser) parseSectionZero(ctx context.Context, st *decodeState) error {
	code, err := st.cur.next(sectionZero, "station code (5 digits)")
	if err != nil {
		return err
	}
	if !ValidStationCode(code) {
		return &ParseError{
			Kind:     KindInvalidToken,
			Section:  sectionZero,
			Token:    code,
			Expected: "station code (5 digits)",
			Message:  "malformed station code",
		}
	}

	exists, err := p.stations.ExistsManualStation(ctx, code)
	if err != nil {
		return fmt.Errorf("check station %s: %w", code, err)
	}
	if !exists {
		return &ParseError{
			Kind:    KindStationNotFound,
			Section: sectionZero,
			Token:   code,
			Message: "no manual station with this code",
		}
	}

	tok, err := st.cur.next(sectionZero, "date group DDHHi")
	if err != nil {
		return err
	}
	if len(tok) != 5 || !isDigits(tok) {
		return &ParseError{
			Kind:     KindInvalidToken,
			Section:  sectionZero,
			Token:    tok,
			Expected: "date group DDHHi",
			Message:  "group must be 5 digits",
		}
	}
	day, hour, sectionCode := field(tok, 0, 2), field(tok, 2, 4), field(tok, 4, 5)
	if day < 1 || day > 31 {
		return &ParseError{Kind: KindInvalidToken, Section: sectionZero, Token: tok, Expected: "day 01-31", Message: "day out of range"}
	}
	if hour > 24 {
		return &ParseError{Kind: KindInvalidToken, Section: sectionZero, Token: tok, Expected: "hour 00-24", Message: "hour out of range"}
	}
	if sectionCode != SectionCodeDaily && sectionCode != SectionCodeExtended {
		return &ParseError{
			Kind:     KindUnsupportedSection,
			Section:  sectionZero,
			Token:    tok,
			Expected: "section code 1 or 2",
			Message:  fmt.Sprintf("section code %d", sectionCode),
		}
	}

	hydro, err := p.resolve(ctx, code, domain.StationHydro, sectionOne)
	if err != nil {
		return err
	}

	st.now = st.now.In(hydro.Timezone())
	st.out.HydroStation = hydro
	st.out.SectionZero = SectionZero{
		StationCode: code,
		StationName: hydro.Name,
		Date:        resolveDayHour(st.now, day, hour),
		SectionCode: sectionCode,
	}
	return nil
}

func (p *Parser) resolve(ctx context.Context, code string, kind domain.StationKind, section string) (domain.Station, error) {
	station, err := p.stations.ResolveStation(ctx, code, kind)
	if err == nil {
		return station, nil
	}
	if !errors.Is(err, domain.ErrStationNotFound) {
		return domain.Station{}, fmt.Errorf("resolve %s station %s: %w", kind, code, err)
	}
	k := KindMissingHydroStation
	if kind == domain.StationMeteo {
		k = KindMissingMeteoStation
	}
	return domain.Station{}, &ParseError{
		Kind:    k,
		Section: section,
		Token:   code,
		Message: fmt.Sprintf("no %s station with this code", kind),
	}
}

func (p *Parser) parseMarkedSection(ctx context.Context, st *decodeState) error {
	tok, _ := st.cur.peek()
	sectionCode := st.out.SectionZero.SectionCode

	switch {
	case strings.HasPrefix(tok, markerSectionTwo):
		two, err := parseSectionTwo(st.cur, st.out.SectionZero.Date)
		if err != nil {
			return err
		}
		st.out.SectionTwo = append(st.out.SectionTwo, two)

	case strings.HasPrefix(tok, markerSectionThree):
		if err := checkAllowed(tok, sectionThree, sectionCode, st.three); err != nil {
			return err
		}
		three, err := parseSectionThree(st.cur)
		if err != nil {
			return err
		}
		st.out.SectionThree = &three
		st.three = true

	case strings.HasPrefix(tok, markerSectionEight):
		if st.eight {
			return &ParseError{Kind: KindInvalidToken, Section: sectionEight, Token: tok, Message: "section eight repeated"}
		}
		meteo, err := p.resolve(ctx, st.out.SectionZero.StationCode, domain.StationMeteo, sectionEight)
		if err != nil {
			return err
		}
		eight, err := parseSectionEight(st.cur, st.out.SectionZero.Date)
		if err != nil {
			return err
		}
		st.out.MeteoStation = &meteo
		st.out.SectionEight = &eight
		st.eight = true

	case strings.HasPrefix(tok, markerSectionSix):
		if err := checkAllowed(tok, sectionSix, sectionCode, false); err != nil {
			return err
		}
		six, err := parseSectionSix(st.cur, st.now)
		if err != nil {
			return err
		}
		st.out.SectionSix = append(st.out.SectionSix, six)

	default:
		return &ParseError{
			Kind:     KindInvalidToken,
			Token:    tok,
			Expected: "section marker 922DD, 93301, 96NMM or 988XX",
			Message:  "unknown section marker",
		}
	}
	return nil
}

// checkAllowed enforces which sections a section code permits.
func checkAllowed(tok, section string, sectionCode int, seen bool) error {
	if sectionCode == SectionCodeDaily {
		return &ParseError{
			Kind:    KindInvalidToken,
			Section: section,
			Token:   tok,
			Message: section + " is not allowed with section code 1",
		}
	}
	if seen {
		return &ParseError{Kind: KindInvalidToken, Section: section, Token: tok, Message: section + " repeated"}
	}
	return nil
}

// parseReadings decodes the Section One body, also used by Section Two.
func parseReadings(cur *cursor, section string) (SectionOne, error) {
	out := SectionOne{IcePhenomena: []IcePhenomenon{}}

	tok, err := cur.next(section, "morning water level 1HHHH")
	if err != nil {
		return out, err
	}
	if err := group(tok, '1', section, "morning water level 1HHHH"); err != nil {
		return out, err
	}
	out.MorningWaterLevel = signedLevel(field(tok, 1, 5))

	tok, err = cur.next(section, "water level trend 2HHHs")
	if err != nil {
		return out, err
	}
	if err := group(tok, '2', section, "water level trend 2HHHs"); err != nil {
		return out, err
	}
	out.WaterLevelTrend = field(tok, 1, 4)
	if tok[4] == '2' {
		out.WaterLevelTrend = -out.WaterLevelTrend
	}

	tok, err = cur.next(section, "20h water level 3HHHH")
	if err != nil {
		return out, err
	}
	if err := group(tok, '3', section, "20h water level 3HHHH"); err != nil {
		return out, err
	}
	out.WaterLevel20hPeriod = signedLevel(field(tok, 1, 5))

	if cur.peekPrefix("4") {
		tok, _ = cur.next(section, "")
		if err := group(tok, '4', section, "temperature group 4TTtt"); err != nil {
			return out, err
		}
		water := float64(field(tok, 1, 3)) / 10
		air := field(tok, 3, 5)
		if air > 50 {
			air = -(air - 50)
		}
		out.WaterTemperature = &water
		out.AirTemperature = &air
	}

	for cur.peekPrefix("5") {
		tok, _ = cur.next(section, "")
		if err := group(tok, '5', section, "ice phenomena group 5EEii"); err != nil {
			return out, err
		}
		ice := IcePhenomenon{Code: field(tok, 1, 3)}
		if intensity := field(tok, 3, 5); intensity != ice.Code {
			ice.Intensity = &intensity
		}
		out.IcePhenomena = append(out.IcePhenomena, ice)
	}

	if cur.peekPrefix("0") {
		tok, _ = cur.next(section, "")
		if err := group(tok, '0', section, "daily precipitation group 0RRRd"); err != nil {
			return out, err
		}
		out.DailyPrecipitation = &DailyPrecipitation{
			Precipitation: field(tok, 1, 4),
			DurationCode:  field(tok, 4, 5),
		}
	}

	// Groups this decoder does not model (6xxxx, 7xxxx, 8xxxx), or optional
	// groups out of order, are dropped up to the next section marker.
	cur.skipToMarker()
	return out, nil
}

func parseSectionTwo(cur *cursor, sectionZeroDate time.Time) (SectionTwo, error) {
	tok, err := cur.next(sectionTwo, "header 922DD")
	if err != nil {
		return SectionTwo{}, err
	}
	if err := group(tok, '9', sectionTwo, "header 922DD"); err != nil {
		return SectionTwo{}, err
	}
	day := field(tok, 3, 5)
	if day < 1 || day > 31 {
		return SectionTwo{}, &ParseError{Kind: KindInvalidToken, Section: sectionTwo, Token: tok, Expected: "day 01-31", Message: "day out of range"}
	}

	readings, err := parseReadings(cur, sectionTwo)
	if err != nil {
		return SectionTwo{}, err
	}
	return SectionTwo{
		Date:       resolveDayHour(sectionZeroDate, day, 8),
		SectionOne: readings,
	}, nil
}

func parseSectionThree(cur *cursor) (SectionThree, error) {
	tok, err := cur.next(sectionThree, previousPeriodMarker)
	if err != nil {
		return SectionThree{}, err
	}
	if tok != previousPeriodMarker {
		return SectionThree{}, &ParseError{
			Kind:     KindInvalidToken,
			Section:  sectionThree,
			Token:    tok,
			Expected: previousPeriodMarker,
			Message:  "only previous-period data is supported",
		}
	}

	tok, err = cur.next(sectionThree, "mean water level 1HHHH")
	if err != nil {
		return SectionThree{}, err
	}
	if err := group(tok, '1', sectionThree, "mean water level 1HHHH"); err != nil {
		return SectionThree{}, err
	}
	out := SectionThree{MeanWaterLevel: signedLevel(field(tok, 1, 5))}

	cur.skipToMarker()
	return out, nil
}

func parseSectionSix(cur *cursor, now time.Time) (SectionSix, error) {
	tok, err := cur.next(sectionSix, "header 96NMM")
	if err != nil {
		return SectionSix{}, err
	}
	if err := group(tok, '9', sectionSix, "header 96NMM"); err != nil {
		return SectionSix{}, err
	}
	out := SectionSix{GroupIndex: field(tok, 2, 3)}
	month := field(tok, 3, 5)
	if month < 1 || month > 12 {
		return SectionSix{}, &ParseError{Kind: KindInvalidToken, Section: sectionSix, Token: tok, Expected: "month 01-12", Message: "month out of range"}
	}

	tok, err = cur.next(sectionSix, "water level 1HHHH")
	if err != nil {
		return SectionSix{}, err
	}
	if err := group(tok, '1', sectionSix, "water level 1HHHH"); err != nil {
		return SectionSix{}, err
	}
	out.WaterLevel = signedLevel(field(tok, 1, 5))

	tok, err = cur.next(sectionSix, "discharge 2eQQQ")
	if err != nil {
		return SectionSix{}, err
	}
	if err := group(tok, '2', sectionSix, "discharge 2eQQQ"); err != nil {
		return SectionSix{}, err
	}
	out.Discharge = scientific(tok)

	if cur.peekPrefix("3") {
		tok, _ = cur.next(sectionSix, "")
		if err := group(tok, '3', sectionSix, "free river area 3eFFF"); err != nil {
			return SectionSix{}, err
		}
		area := scientific(tok)
		out.FreeRiverArea = &area
	}

	if cur.peekPrefix("4") {
		tok, _ = cur.next(sectionSix, "")
		if err := group(tok, '4', sectionSix, "maximum depth 4hhhh"); err != nil {
			return SectionSix{}, err
		}
		depth := field(tok, 1, 5)
		out.MaximumDepth = &depth
	}

	tok, err = cur.next(sectionSix, "measurement date 5DDGG")
	if err != nil {
		return SectionSix{}, err
	}
	if err := group(tok, '5', sectionSix, "measurement date 5DDGG"); err != nil {
		return SectionSix{}, err
	}
	day, hour := field(tok, 1, 3), field(tok, 3, 5)
	if day < 1 || day > 31 || hour > 24 {
		return SectionSix{}, &ParseError{Kind: KindInvalidToken, Section: sectionSix, Token: tok, Expected: "day 01-31 and hour 00-24", Message: "date out of range"}
	}
	out.Date = resolveMonthDayHour(now, time.Month(month), day, hour)

	cur.skipToMarker()
	return out, nil
}

// scientific decodes the xeVVV groups: VVV × 10^(e−3).
func scientific(tok string) float64 {
	significand := int64(field(tok, 2, 5))
	exponent := int32(field(tok, 1, 2)) - 3
	return decimal.New(significand, exponent).InexactFloat64()
}

var decadeMarkers = map[string]Decade{
	"11": DecadeFirst,
	"22": DecadeSecond,
	"33": DecadeThird,
	"30": DecadeMonth,
}

func parseSectionEight(cur *cursor, sectionZeroDate time.Time) (SectionEight, error) {
	tok, err := cur.next(sectionEight, "header 988XX")
	if err != nil {
		return SectionEight{}, err
	}
	if err := group(tok, '9', sectionEight, "header 988XX"); err != nil {
		return SectionEight{}, err
	}
	decade, ok := decadeMarkers[tok[3:5]]
	if !ok {
		return SectionEight{}, &ParseError{
			Kind:     KindInvalidToken,
			Section:  sectionEight,
			Token:    tok,
			Expected: "98811, 98822, 98833 or 98830",
			Message:  "unknown decade",
		}
	}
	out := SectionEight{Decade: decade, Timestamp: decadeTimestamp(sectionZeroDate, decade)}

	tok, err = cur.next(sectionEight, "precipitation 1RRRc")
	if err != nil {
		return SectionEight{}, err
	}
	if err := group(tok, '1', sectionEight, "precipitation 1RRRc"); err != nil {
		return SectionEight{}, err
	}
	if want := checkDigit(tok[1:4]); field(tok, 4, 5) != want {
		return SectionEight{}, &ParseError{
			Kind:     KindInvalidToken,
			Section:  sectionEight,
			Token:    tok,
			Expected: fmt.Sprintf("check digit %d", want),
			Message:  "precipitation checksum mismatch",
		}
	}
	out.Precipitation = field(tok, 1, 4)

	tok, err = cur.next(sectionEight, "temperature 2sTTT")
	if err != nil {
		return SectionEight{}, err
	}
	if err := group(tok, '2', sectionEight, "temperature 2sTTT"); err != nil {
		return SectionEight{}, err
	}
	out.Temperature = float64(field(tok, 2, 5)) / 10
	switch tok[1] {
	case '0':
	case '1':
		out.Temperature = -out.Temperature
	default:
		return SectionEight{}, &ParseError{
			Kind:     KindInvalidToken,
			Section:  sectionEight,
			Token:    tok,
			Expected: "sign digit 0 or 1",
			Message:  "invalid temperature sign",
		}
	}

	cur.skipToMarker()
	return out, nil
}

// checkDigit is the digit sum of s modulo 10.
func checkDigit(s string) int {
	sum := 0
	for i := 0; i < len(s); i++ {
		sum += int(s[i] - '0')
	}
	return sum % 10
}
