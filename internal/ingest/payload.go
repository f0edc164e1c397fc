// Package ingest turns a raw request body into a transaction record.
//
// A body is either a JSON object or a line of free text such as
// "12,34 mercado almoço". Format detection and fallback are explicit:
// a body is parsed as JSON when the declared content type says so, or when
// it merely looks like a JSON object. Only the second case falls back to
// free text when JSON decoding fails.
package ingest

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"finapi/internal/core"
)

// Format records how a body was classified.
type Format int

const (
	FormatFreeText Format = iota
	// FormatDeclaredJSON means the content type announced JSON.
	FormatDeclaredJSON
	// FormatSniffedJSON means the trimmed body is wrapped in braces.
	FormatSniffedJSON
)

func (f Format) String() string {
	switch f {
	case FormatDeclaredJSON:
		return "declared_json"
	case FormatSniffedJSON:
		return "sniffed_json"
	default:
		return "free_text"
	}
}

// Payload is either a StructuredPayload or a FreeTextPayload.
type Payload interface {
	payload()
}

// StructuredPayload holds a decoded JSON object. Numbers are json.Number.
type StructuredPayload struct {
	Fields map[string]any
}

// FreeTextPayload holds a whitespace separated line.
type FreeTextPayload struct {
	Text string
}

func (StructuredPayload) payload() {}
func (FreeTextPayload) payload()   {}

var base64Encodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.RawStdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
}

// DecodeBody undoes base64 transfer encoding when flagged. Invalid UTF-8 is
// replaced with U+FFFD instead of failing.
func DecodeBody(body string, isBase64 bool) (string, error) {
	if !isBase64 {
		return strings.ToValidUTF8(body, "\uFFFD"), nil
	}
	trimmed := strings.TrimSpace(body)
	for _, enc := range base64Encodings {
		if raw, err := enc.DecodeString(trimmed); err == nil {
			return strings.ToValidUTF8(string(raw), "\uFFFD"), nil
		}
	}
	return "", core.NewValidationError(core.ErrInvalidBody, "body is not valid base64")
}

// DetectFormat classifies a decoded body.
func DetectFormat(body, contentType string) Format {
	if strings.Contains(strings.ToLower(contentType), "application/json") {
		return FormatDeclaredJSON
	}
	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		return FormatSniffedJSON
	}
	return FormatFreeText
}

// ParsePayload resolves the body into its variant. A sniffed body that is not
// a valid JSON object becomes free text; a declared one is a ValidationError.
func ParsePayload(body string, format Format) (Payload, error) {
	if format == FormatFreeText {
		return FreeTextPayload{Text: body}, nil
	}

	fields, err := decodeObject(body)
	if err == nil {
		return StructuredPayload{Fields: fields}, nil
	}
	if format == FormatSniffedJSON {
		return FreeTextPayload{Text: body}, nil
	}
	return nil, core.NewValidationError(core.ErrInvalidBody, "invalid JSON body: %v", err)
}

func decodeObject(body string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after JSON value")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON object, got %s", jsonKind(v))
	}
	return obj, nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case []any:
		return "an array"
	case string:
		return "a string"
	case json.Number:
		return "a number"
	case bool:
		return "a boolean"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// stringify renders a scalar JSON value the way it appeared in the body.
func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		if val {
			return "true"
		}
		return "false"
	case nil:
		return ""
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(raw)
	}
}
