package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsv4 "google.golang.org/api/sheets/v4"

	cfgpkg "github.com/fatflowers/iftar/pkg/config"
)

var ErrNotConfigured = errors.New("google sheets export is not configured")

type Client struct {
	srv           *sheetsv4.Service
	spreadsheetID string
	sheet         string
}

// New returns a disabled client when credentials or the spreadsheet id are missing.
func New(cfg *cfgpkg.Config, log *zap.SugaredLogger) (*Client, error) {
	sc := cfg.Sheets
	c := &Client{spreadsheetID: sc.SpreadsheetID, sheet: sc.SheetName}
	if sc.CredentialsFile == "" || sc.SpreadsheetID == "" {
		log.Infow("sheets export disabled")
		return c, nil
	}
	if _, err := os.Stat(sc.CredentialsFile); err != nil {
		return nil, fmt.Errorf("service account json: %w", err)
	}
	srv, err := sheetsv4.NewService(context.Background(),
		option.WithCredentialsFile(sc.CredentialsFile),
		option.WithScopes(sheetsv4.SpreadsheetsScope),
	)
	if err != nil {
		return nil, err
	}
	c.srv = srv
	return c, nil
}

func (c *Client) Enabled() bool { return c != nil && c.srv != nil }

func (c *Client) SpreadsheetID() string { return c.spreadsheetID }

// ReplaceRows clears the sheet and writes header plus rows starting at A1.
func (c *Client) ReplaceRows(ctx context.Context, header []string, rows [][]string) (int, error) {
	if !c.Enabled() {
		return 0, ErrNotConfigured
	}
	rng := c.sheet + "!A:Z"
	if _, err := c.srv.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &sheetsv4.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return 0, fmt.Errorf("clear sheet: %w", err)
	}
	vr := &sheetsv4.ValueRange{Values: toValues(header, rows)}
	resp, err := c.srv.Spreadsheets.Values.Update(c.spreadsheetID, c.sheet+"!A1", vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return 0, fmt.Errorf("update sheet: %w", err)
	}
	return int(resp.UpdatedRows), nil
}

func toValues(header []string, rows [][]string) [][]interface{} {
	out := make([][]interface{}, 0, len(rows)+1)
	out = append(out, toRow(header))
	for _, r := range rows {
		out = append(out, toRow(r))
	}
	return out
}

func toRow(cells []string) []interface{} {
	row := make([]interface{}, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}

var Module = fx.Options(
	fx.Provide(New),
)
