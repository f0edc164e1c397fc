// Package google mirrors stored transactions into a Google Sheet, one sheet
// per year ("2025 Transactions"), one row per record.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"finapi/internal/cache"
	"finapi/internal/core"
)

// Header is the first row of every mirror sheet.
var Header = []any{"isoDate", "period", "category", "amount", "note", "pk", "sk"}

// skColumn holds the sort key, used to skip rows already mirrored.
const skColumn = "G"

const (
	sortKeyCacheSize = 8
	sortKeyCacheTTL  = 5 * time.Minute
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string

	// mu serializes AppendRecord so a sort key is checked and written
	// atomically with respect to this client.
	mu       sync.Mutex
	known    map[string]bool
	sortKeys *cache.LRU[map[string]struct{}]
}

// Options configures New. Exactly one credential source is used, in the
// order CredentialsJSON, CredentialsFile. Endpoint and HTTPClient replace
// the Google endpoint and transport, e.g. for tests.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
	Endpoint        string
	HTTPClient      *http.Client
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	base := strings.TrimSpace(opts.SheetName)
	if base == "" {
		base = "Transactions"
	}

	svcOpts, err := serviceOptions(opts)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx, svcOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created",
		"spreadsheet_id", opts.SpreadsheetID,
		"sheet_base", base)

	return &Client{
		svc:           svc,
		spreadsheetID: opts.SpreadsheetID,
		sheetBase:     base,
		known:         make(map[string]bool),
		sortKeys:      cache.NewLRU[map[string]struct{}](sortKeyCacheSize, sortKeyCacheTTL),
	}, nil
}

func serviceOptions(opts Options) ([]goption.ClientOption, error) {
	if opts.HTTPClient != nil {
		out := []goption.ClientOption{goption.WithHTTPClient(opts.HTTPClient)}
		if opts.Endpoint != "" {
			out = append(out, goption.WithEndpoint(opts.Endpoint))
		}
		return out, nil
	}

	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(opts.CredentialsJSON) != "":
		credentialsJSON = []byte(opts.CredentialsJSON)
	case strings.TrimSpace(opts.CredentialsFile) != "":
		b, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}

	out := []goption.ClientOption{
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
	}
	if opts.Endpoint != "" {
		out = append(out, goption.WithEndpoint(opts.Endpoint))
	}
	return out, nil
}

// AppendRecord appends r to the sheet of its year and returns the updated
// range. A record whose sort key is already present is not appended again,
// so redelivered events are harmless; the returned range is then empty.
func (c *Client) AppendRecord(ctx context.Context, r core.TransactionRecord) (string, error) {
	if err := r.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	sheet, err := c.sheetFor(r.Period)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureSheet(ctx, sheet); err != nil {
		return "", err
	}

	exists, err := c.hasSortKey(ctx, sheet, r.SortKey)
	if err != nil {
		return "", err
	}
	if exists {
		slog.InfoContext(ctx, "Record already mirrored", "sheet", sheet, "sk", r.SortKey)
		return "", nil
	}

	rng := fmt.Sprintf("%s!A:G", quoteSheet(sheet))
	vr := &gsheet.ValueRange{Values: [][]any{RecordRow(r)}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", sheet, err)
	}

	c.rememberSortKey(sheet, r.SortKey)

	ref := ""
	if resp.Updates != nil {
		ref = resp.Updates.UpdatedRange
	}
	return ref, nil
}

// RecordRow lays out r in Header order. The amount keeps its exact decimal
// text and the sheet parses it as a number.
func RecordRow(r core.TransactionRecord) []any {
	return []any{
		r.IsoTimestamp,
		r.Period,
		r.Category,
		r.Amount.String(),
		r.Note,
		r.PartitionKey,
		r.SortKey,
	}
}

func (c *Client) sheetFor(period string) (string, error) {
	if len(period) < 4 {
		return "", fmt.Errorf("invalid period %q", period)
	}
	year, err := strconv.Atoi(period[:4])
	if err != nil {
		return "", fmt.Errorf("invalid period %q: %w", period, err)
	}
	return yearPrefixedName(c.sheetBase, year), nil
}

// ensureSheet creates the sheet with its header row the first time a year
// is seen.
func (c *Client) ensureSheet(ctx context.Context, sheet string) error {
	if c.known[sheet] {
		return nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet %s: %w", c.spreadsheetID, err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == sheet {
			c.known[sheet] = true
			return nil
		}
	}

	add := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: sheet},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, add).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", sheet, err)
	}

	header := &gsheet.ValueRange{Values: [][]any{Header}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, fmt.Sprintf("%s!A1:G1", quoteSheet(sheet)), header).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header to %s: %w", sheet, err)
	}

	slog.InfoContext(ctx, "Created mirror sheet", "sheet", sheet)
	c.known[sheet] = true
	return nil
}

// hasSortKey reports whether sk is already in the sheet. The sort key column
// is read once per sheet and then kept up to date by rememberSortKey until
// the cache entry expires.
func (c *Client) hasSortKey(ctx context.Context, sheet, sk string) (bool, error) {
	keys, ok := c.sortKeys.Get(sheet)
	if !ok {
		col, err := c.readCol(ctx, sheet, skColumn+":"+skColumn)
		if err != nil {
			return false, err
		}
		keys = make(map[string]struct{}, len(col))
		for _, v := range col {
			keys[v] = struct{}{}
		}
		c.sortKeys.Set(sheet, keys)
	}
	_, exists := keys[sk]
	return exists, nil
}

func (c *Client) rememberSortKey(sheet, sk string) {
	if keys, ok := c.sortKeys.Get(sheet); ok {
		keys[sk] = struct{}{}
	}
}

func (c *Client) readCol(ctx context.Context, sheetName, col string) ([]string, error) {
	rng := fmt.Sprintf("%s!%s", quoteSheet(sheetName), col)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	var out []string
	for _, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		if v := strings.TrimSpace(fmt.Sprint(row[0])); v != "" {
			out = append(out, v)
		}
	}
	return out, nil
}

// quoteSheet wraps a sheet name for A1 notation.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
