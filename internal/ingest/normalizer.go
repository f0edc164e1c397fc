package ingest

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finapi/internal/core"
)

// RawInput is the part of an invocation the normalizer looks at.
type RawInput struct {
	Body            string
	IsBase64Encoded bool
	ContentType     string
}

// Normalizer converts raw input into a TransactionRecord. It holds no
// per-request state and is safe for concurrent use.
type Normalizer struct {
	Owner string
	// Now returns the effective time of records without an explicit date.
	Now func() time.Time
	// NewTiebreaker returns the sort key suffix. Nil disables the suffix.
	NewTiebreaker func() string
}

// NewNormalizer returns a normalizer for owner using the wall clock. With
// tiebreaker set, every sort key gets a short random suffix.
func NewNormalizer(owner string, tiebreaker bool) *Normalizer {
	if owner == "" {
		owner = core.AnonymousOwner
	}
	n := &Normalizer{
		Owner: owner,
		Now:   time.Now,
	}
	if tiebreaker {
		n.NewTiebreaker = RandomTiebreaker
	}
	return n
}

// RandomTiebreaker returns 8 hex characters taken from a random UUID.
func RandomTiebreaker() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Normalize decodes, classifies and parses in, returning the record to store.
// Every failure is a *core.ValidationError.
func (n *Normalizer) Normalize(in RawInput) (core.TransactionRecord, error) {
	body, err := DecodeBody(in.Body, in.IsBase64Encoded)
	if err != nil {
		return core.TransactionRecord{}, err
	}

	payload, err := ParsePayload(body, DetectFormat(body, in.ContentType))
	if err != nil {
		return core.TransactionRecord{}, err
	}

	var f fields
	switch p := payload.(type) {
	case StructuredPayload:
		f, err = n.fromStructured(p)
	case FreeTextPayload:
		f, err = n.fromFreeText(p)
	}
	if err != nil {
		return core.TransactionRecord{}, err
	}

	return core.NewTransactionRecord(n.Owner, f.at, f.amount, f.category, f.note, n.tiebreaker()), nil
}

type fields struct {
	amount   decimal.Decimal
	category string
	note     string
	at       time.Time
}

func (n *Normalizer) fromStructured(p StructuredPayload) (fields, error) {
	amount, err := amountField(p.Fields["amount"])
	if err != nil {
		return fields{}, err
	}

	at, err := n.dateField(p.Fields["date"])
	if err != nil {
		return fields{}, err
	}

	return fields{
		amount:   amount,
		category: stringify(p.Fields["category"]),
		note:     stringify(p.Fields["note"]),
		at:       at,
	}, nil
}

func (n *Normalizer) fromFreeText(p FreeTextPayload) (fields, error) {
	tokens := strings.Fields(p.Text)
	if len(tokens) == 0 {
		return fields{}, core.NewValidationError(core.ErrEmptyBody, "empty body")
	}

	amount, err := core.ParseAmount(tokens[0])
	if err != nil {
		return fields{}, err
	}

	f := fields{amount: amount, at: n.now()}
	if len(tokens) > 1 {
		f.category = tokens[1]
	}
	if len(tokens) > 2 {
		f.note = strings.Join(tokens[2:], " ")
	}
	return f, nil
}

func amountField(v any) (decimal.Decimal, error) {
	switch val := v.(type) {
	case nil:
		return decimal.Zero, core.NewValidationError(core.ErrMissingAmount, "amount is required")
	case json.Number:
		return core.ParseDecimal(val.String())
	case string:
		return core.ParseDecimal(val)
	default:
		return decimal.Zero, core.NewValidationError(core.ErrInvalidAmount, "invalid amount %s", stringify(val))
	}
}

func (n *Normalizer) dateField(v any) (time.Time, error) {
	switch val := v.(type) {
	case nil:
		return n.now(), nil
	case string:
		if strings.TrimSpace(val) == "" {
			return n.now(), nil
		}
		return ParseTimestamp(val)
	default:
		return time.Time{}, core.NewValidationError(core.ErrInvalidDate, "invalid date %s: expected an ISO-8601 string", stringify(val))
	}
}

func (n *Normalizer) now() time.Time {
	if n.Now == nil {
		return time.Now().UTC()
	}
	return n.Now().UTC()
}

func (n *Normalizer) tiebreaker() string {
	if n.NewTiebreaker == nil {
		return ""
	}
	return n.NewTiebreaker()
}

// timestampLayouts are tried in order. Layouts without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp reads an ISO-8601 date or date-time and returns it in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, core.NewValidationError(core.ErrInvalidDate, "invalid date %q: expected ISO-8601", s)
}
