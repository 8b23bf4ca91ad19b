package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"visitmap/internal/core"
	ports "visitmap/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Config names the spreadsheet and its worksheets.
type Config struct {
	SpreadsheetID  string
	VisitsSheet    string
	CitiesSheet    string
	ProvincesSheet string
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.VisitsSheet) == "" {
		c.VisitsSheet = "Visits"
	}
	if strings.TrimSpace(c.CitiesSheet) == "" {
		c.CitiesSheet = "Cities"
	}
	if strings.TrimSpace(c.ProvincesSheet) == "" {
		c.ProvincesSheet = "Provinces"
	}
	return c
}

type Client struct {
	svc            *gsheet.Service
	spreadsheetID  string
	visitsSheet    string
	citiesSheet    string
	provincesSheet string
}

// Ensure interface conformance
var _ ports.SummaryWriter = (*Client)(nil)

// New creates a Sheets client authenticated with a service account.
// Credentials come from GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE
// or GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, cfg), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		svc:            svc,
		spreadsheetID:  cfg.SpreadsheetID,
		visitsSheet:    cfg.VisitsSheet,
		citiesSheet:    cfg.CitiesSheet,
		provincesSheet: cfg.ProvincesSheet,
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		slog.DebugContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.DebugContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		data, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// WriteVisits implements ports.SummaryWriter
func (c *Client) WriteVisits(ctx context.Context, visits []core.VisitRecord) error {
	return c.replaceSheet(ctx, c.visitsSheet, visitRows(visits))
}

// WriteSummary implements ports.SummaryWriter
func (c *Client) WriteSummary(ctx context.Context, tab ports.Tab, data []core.CityData, colors map[string]string) error {
	sheet, err := c.sheetFor(tab)
	if err != nil {
		return err
	}
	return c.replaceSheet(ctx, sheet, summaryRows(data, colors))
}

func (c *Client) sheetFor(tab ports.Tab) (string, error) {
	switch tab {
	case ports.TabCities:
		return c.citiesSheet, nil
	case ports.TabProvinces:
		return c.provincesSheet, nil
	default:
		return "", fmt.Errorf("unknown summary tab %d", int(tab))
	}
}

// replaceSheet clears the worksheet and writes rows starting at A1. Values are
// written RAW so YYYY-MM strings are not turned into dates.
func (c *Client) replaceSheet(ctx context.Context, sheet string, rows [][]any) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	clearRange := fmt.Sprintf("%s!A:Z", sheet)
	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", clearRange, err)
	}

	writeRange := fmt.Sprintf("%s!A1", sheet)
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, writeRange, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write %s: %w", writeRange, err)
	}

	slog.DebugContext(ctx, "Sheet rewritten", "sheet", sheet, "rows", len(rows))
	return nil
}
