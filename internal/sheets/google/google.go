package google

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"coffeetea/internal/core"
	"coffeetea/internal/log"
)

// Client mirrors beverage records into one sheet of a spreadsheet, one row
// per record keyed by the record id in column A.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	location      *time.Location
	logger        *log.Logger

	// id -> row number, refreshed from column A when stale
	mu                 sync.Mutex
	rowIndex           map[string]int
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
}

// New creates a client. Credentials come from opts; with no opts the
// Application Default Credentials are used.
func New(ctx context.Context, spreadsheetID, sheetName string, loc *time.Location, logger *log.Logger, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if strings.TrimSpace(sheetName) == "" {
		sheetName = "Records"
	}
	if logger == nil {
		logger = log.Discard()
	}

	opts = append([]goption.ClientOption{goption.WithScopes(gsheet.SpreadsheetsScope)}, opts...)
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:                svc,
		spreadsheetID:      spreadsheetID,
		sheetName:          sheetName,
		location:           loc,
		logger:             logger.WithComponent(log.ComponentSheets),
		cacheValidDuration: 5 * time.Minute,
	}, nil
}

// CredentialOptions picks the credential source: a service account file when
// given, the ambient default credentials otherwise.
func CredentialOptions(credentialsFile string) []goption.ClientOption {
	if strings.TrimSpace(credentialsFile) == "" {
		return nil
	}
	return []goption.ClientOption{goption.WithCredentialsFile(credentialsFile)}
}

func (c *Client) rng(cols string) string {
	return fmt.Sprintf("%s!%s", quoteSheet(c.sheetName), cols)
}

// EnsureHeader writes the header row when the sheet is empty.
func (c *Client) EnsureHeader(ctx context.Context) error {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.rng("A1:"+lastColumn+"1")).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}
	vr := &gsheet.ValueRange{Values: [][]any{header}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, c.rng("A1:"+lastColumn+"1"), vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

// AppendRecords appends one row per record and returns the updated range.
func (c *Client) AppendRecords(ctx context.Context, recs []core.Record) (string, error) {
	if len(recs) == 0 {
		return "", nil
	}
	values := make([][]any, 0, len(recs))
	for _, r := range recs {
		if err := r.Validate(); err != nil {
			return "", fmt.Errorf("validation failed for %s: %w", r.ID, err)
		}
		values = append(values, recordToRow(r, c.location))
	}

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.rng("A:"+lastColumn), &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", c.sheetName, err)
	}

	ref := ""
	if resp.Updates != nil {
		ref = resp.Updates.UpdatedRange
	}
	c.rememberRows(ref, recs)

	c.logger.InfoContext(ctx, "Records appended to sheet", "count", len(recs), log.FieldSheetsRef, ref)
	return ref, nil
}

func (c *Client) rememberRows(ref string, recs []core.Record) {
	first, err := rowNumberFromRange(ref)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil || c.rowIndex == nil || time.Now().After(c.cacheExpiresAt) {
		c.invalidateLocked()
		return
	}
	for i, r := range recs {
		c.rowIndex[r.ID] = first + i
	}
}

// DeleteRecord clears the row holding id. A missing row is not an error.
func (c *Client) DeleteRecord(ctx context.Context, id string) error {
	row, ok, err := c.findRow(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		c.logger.DebugContext(ctx, "Record not present in sheet", log.FieldRecordID, id)
		return nil
	}

	rng := c.rng(fmt.Sprintf("A%d:%s%d", row, lastColumn, row))
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}

	c.mu.Lock()
	delete(c.rowIndex, id)
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "Record removed from sheet", log.FieldRecordID, id, log.FieldSheetsRef, rng)
	return nil
}

func (c *Client) findRow(ctx context.Context, id string) (int, bool, error) {
	c.mu.Lock()
	if c.rowIndex != nil && time.Now().Before(c.cacheExpiresAt) {
		row, ok := c.rowIndex[id]
		c.mu.Unlock()
		if ok {
			return row, true, nil
		}
	} else {
		c.mu.Unlock()
	}

	index, err := c.loadIndex(ctx)
	if err != nil {
		return 0, false, err
	}
	row, ok := index[id]
	return row, ok, nil
}

func (c *Client) loadIndex(ctx context.Context) (map[string]int, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.rng("A:A")).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read record ids: %w", err)
	}
	index := make(map[string]int, len(resp.Values))
	for i, row := range resp.Values {
		cols := toStrings(row)
		if len(cols) == 0 || cols[0] == "" || (i == 0 && cols[0] == header[0]) {
			continue
		}
		index[cols[0]] = i + 1
	}

	c.mu.Lock()
	c.rowIndex = index
	c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
	c.mu.Unlock()
	return index, nil
}

// InvalidateRowCache forces the next lookup to re-read column A.
func (c *Client) InvalidateRowCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked()
}

func (c *Client) invalidateLocked() {
	c.rowIndex = nil
	c.cacheExpiresAt = time.Time{}
}
