package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/couchcryptid/hydro-telegram-etl/internal/domain"
	"github.com/couchcryptid/hydro-telegram-etl/internal/kn15"
	"github.com/couchcryptid/hydro-telegram-etl/internal/observability"
)

// Record statuses, also sent as the "status" header.
const (
	StatusDecoded  = "decoded"
	StatusRejected = "rejected"
)

// Decoder turns telegram text into a DecodedTelegram. *kn15.Parser
// satisfies it.
type Decoder interface {
	Parse(ctx context.Context, telegram string, now time.Time) (kn15.DecodedTelegram, error)
}

// TelegramRecord is one entry of the telegram log. Exactly one of Decoded
// and Error is set.
type TelegramRecord struct {
	Raw        string                `json:"raw"`
	ReceivedAt time.Time             `json:"received_at"`
	Status     string                `json:"status"`
	Decoded    *kn15.DecodedTelegram `json:"decoded,omitempty"`
	Error      *RecordError          `json:"error,omitempty"`
}

// RecordError is the operator-facing form of a *kn15.ParseError.
type RecordError struct {
	Kind     string `json:"kind"`
	Section  string `json:"section,omitempty"`
	Token    string `json:"token,omitempty"`
	Expected string `json:"expected,omitempty"`
	Message  string `json:"message"`
}

// TelegramTransformer decodes raw telegrams into telegram log records.
// A telegram that fails to decode still yields a record; only collaborator
// failures (the station directory being unreachable) are returned as errors,
// and the pipeline retries the batch they occur in.
type TelegramTransformer struct {
	decoder Decoder
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewTransformer creates a TelegramTransformer.
func NewTransformer(decoder Decoder, logger *slog.Logger, metrics *observability.Metrics) *TelegramTransformer {
	return &TelegramTransformer{decoder: decoder, logger: logger, metrics: metrics}
}

// Transform decodes raw.Value against the message timestamp, or the domain
// clock when the message carries none.
func (t *TelegramTransformer) Transform(ctx context.Context, raw domain.RawTelegram) (domain.OutputEvent, error) {
	text := strings.TrimSpace(string(raw.Value))
	now := raw.Timestamp
	if now.IsZero() {
		now = domain.Now()
	}

	rec := TelegramRecord{Raw: text, ReceivedAt: now.UTC()}
	headers := map[string]string{}

	decoded, err := t.decoder.Parse(ctx, text, now)
	var pe *kn15.ParseError
	switch {
	case err == nil:
		rec.Status = StatusDecoded
		rec.Decoded = &decoded
		t.metrics.TelegramsDecoded.Inc()
	case errors.As(err, &pe):
		rec.Status = StatusRejected
		rec.Error = &RecordError{
			Kind:     pe.Kind.String(),
			Section:  pe.Section,
			Token:    pe.Token,
			Expected: pe.Expected,
			Message:  pe.Error(),
		}
		headers["kind"] = pe.Kind.String()
		t.metrics.TelegramsRejected.WithLabelValues(pe.Kind.String()).Inc()
		t.logger.Info("telegram rejected",
			"kind", pe.Kind.String(),
			"token", pe.Token,
			"offset", raw.Offset,
		)
	default:
		return domain.OutputEvent{}, fmt.Errorf("decode telegram: %w", err)
	}

	value, err := json.Marshal(rec)
	if err != nil {
		return domain.OutputEvent{}, fmt.Errorf("serialize telegram record: %w", err)
	}

	key := recordKey(raw, rec)
	headers["status"] = rec.Status
	if len(key) > 0 {
		headers["station"] = string(key)
	}
	return domain.OutputEvent{Key: key, Value: value, Headers: headers}, nil
}

// recordKey is the hydro station code when decoding got that far, else the
// leading group if it looks like a station code, else the inbound key.
func recordKey(raw domain.RawTelegram, rec TelegramRecord) []byte {
	if rec.Decoded != nil {
		return []byte(rec.Decoded.SectionZero.StationCode)
	}
	if fields := strings.Fields(rec.Raw); len(fields) > 0 && len(fields[0]) == 5 && isDigits(fields[0]) {
		return []byte(fields[0])
	}
	return raw.Key
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
