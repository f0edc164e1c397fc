//go:build integration

package google

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finapi/internal/core"
)

// Integration tests require a real spreadsheet shared with a service account.
// Run with: go test -tags=integration ./internal/sheets/google

func integrationClient(t *testing.T) *Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	spreadsheetID := os.Getenv("GOOGLE_SPREADSHEET_ID")
	if spreadsheetID == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}
	credsJSON := os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")
	credsFile := os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE")
	if credsJSON == "" && credsFile == "" {
		t.Skip("service account credentials not configured, skipping integration test")
	}

	c, err := New(context.Background(), Options{
		SpreadsheetID:   spreadsheetID,
		SheetName:       os.Getenv("GOOGLE_SHEET_NAME"),
		CredentialsJSON: credsJSON,
		CredentialsFile: credsFile,
	})
	require.NoError(t, err)
	return c
}

func TestIntegration_AppendRecord(t *testing.T) {
	c := integrationClient(t)
	ctx := context.Background()

	r := core.NewTransactionRecord(core.AnonymousOwner, time.Now(), decimal.RequireFromString("12.34"),
		"integration", "integration test row", "")

	ref, err := c.AppendRecord(ctx, r)
	require.NoError(t, err)
	assert.NotEmpty(t, ref)
	t.Logf("Appended record at %s", ref)

	ref, err = c.AppendRecord(ctx, r)
	require.NoError(t, err)
	assert.Empty(t, ref, "second append of the same sort key is skipped")
}

func TestIntegration_ContextCancellation(t *testing.T) {
	c := integrationClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := core.NewTransactionRecord(core.AnonymousOwner, time.Now(), decimal.NewFromInt(1), "", "", "cafebabe")
	_, err := c.AppendRecord(ctx, r)
	assert.Error(t, err)
}
