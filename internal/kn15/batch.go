package kn15

import (
	"context"
	"time"
)

// Failure records a telegram a batch could not decode.
type Failure struct {
	Index int    `json:"index"`
	Raw   string `json:"raw"`
	Err   error  `json:"-"`
}

// ParseBatch decodes each telegram independently. A failing telegram never
// affects the others; failures are returned in input order.
func (p *Parser) ParseBatch(ctx context.Context, telegrams []string, now time.Time) ([]DecodedTelegram, []Failure) {
	decoded := make([]DecodedTelegram, 0, len(telegrams))
	var failures []Failure
	for i, raw := range telegrams {
		out, err := p.Parse(ctx, raw, now)
		if err != nil {
			failures = append(failures, Failure{Index: i, Raw: raw, Err: err})
			continue
		}
		decoded = append(decoded, out)
	}
	return decoded, failures
}
