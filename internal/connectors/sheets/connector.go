package sheets

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"searchtrack/internal"
	"searchtrack/internal/config"
)

// Store is a TableStore backed by one tab of a Google spreadsheet. The tab is
// looked up on first use and created, with its first row frozen, if missing.
type Store struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
	limiter       *RateLimiter

	mu      sync.Mutex
	ensured bool
}

func NewStore(ctx context.Context, cfg config.Config) (*Store, error) {
	if err := cfg.Require("SHEET_ID", cfg.SheetID); err != nil {
		return nil, err
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.GoogleCredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.GoogleCredentialsFile), option.WithScopes(sheets.SpreadsheetsScope))
	} else {
		if err := cfg.Require("GOOGLE_CLIENT_ID", cfg.GoogleClientID); err != nil {
			return nil, err
		}
		if err := cfg.Require("GOOGLE_CLIENT_SECRET", cfg.GoogleClientSecret); err != nil {
			return nil, err
		}
		if err := cfg.Require("GOOGLE_REFRESH_TOKEN", cfg.GoogleRefreshToken); err != nil {
			return nil, err
		}
		oauthCfg := &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			Endpoint:     google.Endpoint,
			RedirectURL:  cfg.GoogleRedirectURI,
			Scopes:       []string{sheets.SpreadsheetsScope},
		}
		tokenSource := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.GoogleRefreshToken})
		opts = append(opts, option.WithTokenSource(tokenSource))
	}

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	store := NewStoreWithService(svc, cfg.SheetID, cfg.SheetName)
	store.limiter = NewRateLimiter(cfg.SheetsRequestsPerSecond)
	return store, nil
}

func NewStoreWithService(svc *sheets.Service, spreadsheetID, sheetName string) *Store {
	return &Store{service: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}
}

func (s *Store) SpreadsheetID() string { return s.spreadsheetID }

func (s *Store) SheetName() string { return s.sheetName }

func (s *Store) RowCount(ctx context.Context) (int, error) {
	rows, err := s.ReadAll(ctx)
	return len(rows), err
}

func (s *Store) ReadAll(ctx context.Context) ([][]string, error) {
	if err := s.ensureSheet(ctx); err != nil {
		return nil, err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.sheetRange()).
		MajorDimension("ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", s.sheetName, err)
	}

	out := make([][]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprint(v)
		}
		out = append(out, cells)
	}
	return out, nil
}

func (s *Store) WriteHeader(ctx context.Context, fields []string) error {
	if err := s.ensureSheet(ctx); err != nil {
		return err
	}
	values := make([]any, len(fields))
	for i, f := range fields {
		values[i] = f
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, s.sheetRange()+"!A1", &sheets.ValueRange{Values: [][]any{values}}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

// AppendRows sends every row in a single values.append call.
func (s *Store) AppendRows(ctx context.Context, rows []internal.NormalizedRow) error {
	if len(rows) == 0 {
		return nil
	}
	if err := s.ensureSheet(ctx); err != nil {
		return err
	}
	values := make([][]any, 0, len(rows))
	for _, row := range rows {
		values = append(values, row.Cells())
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, s.sheetRange()+"!A1", &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append %d rows: %w", len(rows), err)
	}
	return nil
}

func (s *Store) AppendRow(ctx context.Context, row internal.NormalizedRow) error {
	return s.AppendRows(ctx, []internal.NormalizedRow{row})
}

func (s *Store) Clear(ctx context.Context) error {
	if err := s.ensureSheet(ctx); err != nil {
		return err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := s.service.Spreadsheets.Values.Clear(s.spreadsheetID, s.sheetRange(), &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("clear sheet %s: %w", s.sheetName, err)
	}
	return nil
}

func (s *Store) Rewrite(ctx context.Context, rows [][]string) error {
	if err := s.Clear(ctx); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	values := make([][]any, 0, len(rows))
	for _, row := range rows {
		cells := make([]any, len(row))
		for i, c := range row {
			cells[i] = c
		}
		values = append(values, cells)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, s.sheetRange()+"!A1", &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("rewrite sheet %s: %w", s.sheetName, err)
	}
	return nil
}

func (s *Store) ensureSheet(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured {
		return nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	spreadsheet, err := s.service.Spreadsheets.Get(s.spreadsheetID).
		Fields("sheets.properties").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("could not access Google Sheets, check SHEET_ID: %w", err)
	}
	for _, sh := range spreadsheet.Sheets {
		if sh.Properties != nil && sh.Properties.Title == s.sheetName {
			s.ensured = true
			return nil
		}
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err = s.service.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{
					Title:          s.sheetName,
					GridProperties: &sheets.GridProperties{FrozenRowCount: 1},
				},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("create sheet %s: %w", s.sheetName, err)
	}
	s.ensured = true
	return nil
}

// sheetRange quotes the tab name for A1 notation.
func (s *Store) sheetRange() string {
	return "'" + strings.ReplaceAll(s.sheetName, "'", "''") + "'"
}
