// Command kn15 decodes KN-15 telegrams against the local station database
// and prints the result as JSON. It can also print the data-processing
// overview for a batch, fit a rating curve from measurements, and import
// stations.
//
// Usage:
//
//	kn15 -db stations.db [-now 2024-04-15T09:00:00Z] telegrams.txt
//	kn15 -db stations.db -overview telegrams.txt
//	kn15 -db stations.db -fit measurements.csv [-station 12345 -valid-from 2024-04-01]
//	kn15 -db stations.db -import-stations stations.csv
//
// With no file argument telegrams are read from stdin.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/couchcryptid/hydro-telegram-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/hydro-telegram-etl/internal/domain"
	"github.com/couchcryptid/hydro-telegram-etl/internal/kn15"
	"github.com/couchcryptid/hydro-telegram-etl/internal/overview"
	"github.com/couchcryptid/hydro-telegram-etl/internal/ratingcurve"
)

type options struct {
	dbPath         string
	now            string
	overview       bool
	fitPath        string
	station        string
	validFrom      string
	importStations string
	args           []string
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "kn15:", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("kn15", flag.ContinueOnError)
	var opts options
	fs.StringVar(&opts.dbPath, "db", "stations.db", "path to the SQLite station database")
	fs.StringVar(&opts.now, "now", "", "reference time (RFC 3339) for resolving telegram dates; defaults to now")
	fs.BoolVar(&opts.overview, "overview", false, "print the data-processing overview instead of decoded telegrams")
	fs.StringVar(&opts.fitPath, "fit", "", "fit a rating curve from a CSV of water level,discharge pairs")
	fs.StringVar(&opts.station, "station", "", "with -fit: hydro station code to save the curve for")
	fs.StringVar(&opts.validFrom, "valid-from", "", "with -fit: first day (YYYY-MM-DD) the saved curve applies")
	fs.StringVar(&opts.importStations, "import-stations", "", "import stations from a CSV of code,name,kind,timezone")
	if err := fs.Parse(args); err != nil {
		return err
	}
	opts.args = fs.Args()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	ctx := context.Background()

	if opts.fitPath != "" && opts.station == "" {
		return fitOnly(opts.fitPath, stdout)
	}

	store, err := sqlite.Open(opts.dbPath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	switch {
	case opts.importStations != "":
		return importStations(ctx, store, opts.importStations, stdout)
	case opts.fitPath != "":
		return fitAndSave(ctx, store, opts, stdout)
	default:
		return decode(ctx, store, opts, stdin, stdout, logger)
	}
}

// decodeOutput is the JSON document printed for a decode run.
type decodeOutput struct {
	Decoded  []kn15.DecodedTelegram `json:"decoded"`
	Failures []failureOutput        `json:"failures"`
}

type failureOutput struct {
	Index int    `json:"index"`
	Raw   string `json:"raw"`
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

func decode(ctx context.Context, store *sqlite.Store, opts options, stdin io.Reader, stdout io.Writer, logger *slog.Logger) error {
	now := domain.Now()
	if opts.now != "" {
		t, err := time.Parse(time.RFC3339, opts.now)
		if err != nil {
			return fmt.Errorf("parse -now: %w", err)
		}
		now = t
	}

	in := stdin
	if len(opts.args) > 0 && opts.args[0] != "-" {
		f, err := os.Open(opts.args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	text, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read telegrams: %w", err)
	}

	decoded, failures := kn15.NewParser(store).ParseBatch(ctx, splitTelegrams(string(text)), now)

	out := decodeOutput{Decoded: decoded, Failures: make([]failureOutput, 0, len(failures))}
	for _, f := range failures {
		var pe *kn15.ParseError
		if !errors.As(f.Err, &pe) {
			// The station database failed; nothing else will decode either.
			return f.Err
		}
		out.Failures = append(out.Failures, failureOutput{Index: f.Index, Raw: f.Raw, Kind: pe.Kind.String(), Error: pe.Error()})
	}

	if opts.overview {
		ov, err := overview.NewBuilder(store, store, logger).Build(ctx, decoded)
		if err != nil {
			return err
		}
		return writeJSON(stdout, struct {
			overview.Overview
			Failures []failureOutput `json:"failures"`
		}{ov, out.Failures})
	}
	return writeJSON(stdout, out)
}

type fitOutput struct {
	Samples   int                `json:"samples"`
	Params    ratingcurve.Params `json:"params"`
	Station   string             `json:"station,omitempty"`
	ValidFrom string             `json:"valid_from,omitempty"`
}

func fitOnly(path string, stdout io.Writer) error {
	samples, params, err := fitFile(path)
	if err != nil {
		return err
	}
	return writeJSON(stdout, fitOutput{Samples: len(samples), Params: params})
}

func fitAndSave(ctx context.Context, store *sqlite.Store, opts options, stdout io.Writer) error {
	samples, params, err := fitFile(opts.fitPath)
	if err != nil {
		return err
	}
	station, err := store.ResolveStation(ctx, opts.station, domain.StationHydro)
	if err != nil {
		return err
	}

	validFrom := time.Date(1970, time.January, 1, 0, 0, 0, 0, station.Timezone())
	if opts.validFrom != "" {
		validFrom, err = time.ParseInLocation(time.DateOnly, opts.validFrom, station.Timezone())
		if err != nil {
			return fmt.Errorf("parse -valid-from: %w", err)
		}
	}
	if err := store.SaveRatingCurve(ctx, station, validFrom, params); err != nil {
		return err
	}
	return writeJSON(stdout, fitOutput{
		Samples:   len(samples),
		Params:    params,
		Station:   station.Code,
		ValidFrom: validFrom.Format(time.DateOnly),
	})
}

func fitFile(path string) ([]ratingcurve.Sample, ratingcurve.Params, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ratingcurve.Params{}, err
	}
	defer f.Close()

	samples, err := readSamples(f)
	if err != nil {
		return nil, ratingcurve.Params{}, fmt.Errorf("read %s: %w", path, err)
	}
	params, err := ratingcurve.Fit(samples)
	if err != nil {
		return samples, ratingcurve.Params{}, err
	}
	return samples, params, nil
}

func importStations(ctx context.Context, store *sqlite.Store, path string, stdout io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	stations, err := readStations(f)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	saved := make([]domain.Station, 0, len(stations))
	for _, st := range stations {
		s, err := store.SaveStation(ctx, st)
		if err != nil {
			return err
		}
		saved = append(saved, s)
	}
	return writeJSON(stdout, saved)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
