package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/hydro-telegram-etl/internal/domain"
	"github.com/couchcryptid/hydro-telegram-etl/internal/kn15"
	"github.com/couchcryptid/hydro-telegram-etl/internal/ratingcurve"
)

// splitTelegrams splits input into telegrams. Telegrams end with "=" and may
// wrap across lines; input without any "=" is read one telegram per line.
func splitTelegrams(text string) []string {
	var parts []string
	if strings.Contains(text, "=") {
		parts = strings.SplitAfter(text, "=")
	} else {
		parts = strings.Split(text, "\n")
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Join(strings.Fields(p), " ")
		if p == "" || p == "=" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// readSamples reads "water level,discharge" rows. A first row that does not
// parse as numbers is treated as a header.
func readSamples(r io.Reader) ([]ratingcurve.Sample, error) {
	rows, err := readCSV(r, 2)
	if err != nil {
		return nil, err
	}

	var samples []ratingcurve.Sample
	for i, row := range rows {
		h, errH := strconv.ParseFloat(row[0], 64)
		q, errQ := strconv.ParseFloat(row[1], 64)
		if errH != nil || errQ != nil {
			if i == 0 {
				continue
			}
			return nil, fmt.Errorf("row %d: %w", i+1, errors.Join(errH, errQ))
		}
		samples = append(samples, ratingcurve.Sample{H: h, Q: q})
	}
	return samples, nil
}

// readStations reads "code,name,kind,timezone" rows after a header row.
// An empty timezone means UTC.
func readStations(r io.Reader) ([]domain.Station, error) {
	rows, err := readCSV(r, 4)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 && strings.EqualFold(rows[0][0], "code") {
		rows = rows[1:]
	}

	stations := make([]domain.Station, 0, len(rows))
	for i, row := range rows {
		st := domain.Station{Code: row[0], Name: row[1], Kind: domain.StationKind(strings.ToLower(row[2]))}
		if !kn15.ValidStationCode(st.Code) {
			return nil, fmt.Errorf("row %d: station code %q must be 5 digits", i+1, st.Code)
		}
		if st.Kind != domain.StationHydro && st.Kind != domain.StationMeteo {
			return nil, fmt.Errorf("row %d: unknown station kind %q", i+1, row[2])
		}
		if row[3] != "" {
			loc, err := time.LoadLocation(row[3])
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i+1, err)
			}
			st.Location = loc
		}
		stations = append(stations, st)
	}
	return stations, nil
}

func readCSV(r io.Reader, fields int) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = fields
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		for i := range row {
			row[i] = strings.TrimSpace(row[i])
		}
	}
	return rows, nil
}
