package sheets

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	sheetsapi "google.golang.org/api/sheets/v4"
	"google.golang.org/api/option"
)

// Client wraps the Google Sheets API service.
type Client struct {
	svc *sheetsapi.Service
	log *logrus.Logger
}

// NewClient creates a Sheets client authenticated with the given service
// account credentials file.
func NewClient(ctx context.Context, log *logrus.Logger, credentialsFile string) (*Client, error) {
	svc, err := sheetsapi.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheetsapi.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{svc: svc, log: log}, nil
}

// Worksheet binds the client to one worksheet of one spreadsheet.
func (c *Client) Worksheet(spreadsheetID, title string) *Worksheet {
	return &Worksheet{client: c, spreadsheetID: spreadsheetID, title: title}
}

// Worksheet is one tab of a spreadsheet. It implements Table.
type Worksheet struct {
	client        *Client
	spreadsheetID string
	title         string
}

// Headers reads column A top to bottom.
func (w *Worksheet) Headers(ctx context.Context) ([]string, error) {
	rng := fmt.Sprintf("%s!A:A", w.title)
	resp, err := w.client.svc.Spreadsheets.Values.Get(w.spreadsheetID, rng).
		MajorDimension("COLUMNS").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", rng, err)
	}
	if len(resp.Values) == 0 {
		return nil, nil
	}
	return toStrings(resp.Values[0]), nil
}

// Row reads the 1-based row n left to right.
func (w *Worksheet) Row(ctx context.Context, n int) ([]string, error) {
	rng := fmt.Sprintf("%s!%d:%d", w.title, n, n)
	resp, err := w.client.svc.Spreadsheets.Values.Get(w.spreadsheetID, rng).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", rng, err)
	}
	if len(resp.Values) == 0 {
		return nil, nil
	}
	return toStrings(resp.Values[0]), nil
}

// Grid reads the whole used range as rows of strings.
func (w *Worksheet) Grid(ctx context.Context) ([][]string, error) {
	resp, err := w.client.svc.Spreadsheets.Values.Get(w.spreadsheetID, w.title).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", w.title, err)
	}
	grid := make([][]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		grid = append(grid, toStrings(row))
	}
	return grid, nil
}

// Bounds returns the declared grid size of the worksheet.
func (w *Worksheet) Bounds(ctx context.Context) (int, int, error) {
	props, err := w.properties(ctx)
	if err != nil {
		return 0, 0, err
	}
	grid := props.GridProperties
	if grid == nil {
		return 0, 0, fmt.Errorf("worksheet %q has no grid properties", w.title)
	}
	return int(grid.RowCount), int(grid.ColumnCount), nil
}

// Resize grows the declared grid to at least rows x cols.
func (w *Worksheet) Resize(ctx context.Context, rows, cols int) error {
	props, err := w.properties(ctx)
	if err != nil {
		return err
	}
	req := &sheetsapi.BatchUpdateSpreadsheetRequest{
		Requests: []*sheetsapi.Request{{
			UpdateSheetProperties: &sheetsapi.UpdateSheetPropertiesRequest{
				Properties: &sheetsapi.SheetProperties{
					SheetId: props.SheetId,
					GridProperties: &sheetsapi.GridProperties{
						RowCount:    int64(rows),
						ColumnCount: int64(cols),
					},
				},
				Fields: "gridProperties.rowCount,gridProperties.columnCount",
			},
		}},
	}
	if _, err := w.client.svc.Spreadsheets.BatchUpdate(w.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("resize worksheet %q: %w", w.title, err)
	}
	return nil
}

// Write issues all cell writes in one batched value update. Values are
// written USER_ENTERED so the store applies its usual type coercion.
func (w *Worksheet) Write(ctx context.Context, cells []Cell) error {
	data := make([]*sheetsapi.ValueRange, 0, len(cells))
	for _, cell := range cells {
		data = append(data, &sheetsapi.ValueRange{
			Range:  fmt.Sprintf("%s!%s%d", w.title, columnLetter(cell.Col), cell.Row),
			Values: [][]interface{}{{cell.Value}},
		})
	}
	req := &sheetsapi.BatchUpdateValuesRequest{
		ValueInputOption: "USER_ENTERED",
		Data:             data,
	}
	if _, err := w.client.svc.Spreadsheets.Values.BatchUpdate(w.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("batch update %q: %w", w.title, err)
	}
	return nil
}

func (w *Worksheet) properties(ctx context.Context) (*sheetsapi.SheetProperties, error) {
	spreadsheet, err := w.client.svc.Spreadsheets.Get(w.spreadsheetID).
		Fields("sheets.properties").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == w.title {
			return sheet.Properties, nil
		}
	}
	return nil, fmt.Errorf("worksheet %q not found", w.title)
}

// columnLetter converts a 1-based column index to A1 notation (1 -> A,
// 27 -> AA).
func columnLetter(col int) string {
	var letters []byte
	for col > 0 {
		col--
		letters = append([]byte{byte('A' + col%26)}, letters...)
		col /= 26
	}
	return string(letters)
}

func toStrings(row []interface{}) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = fmt.Sprint(v)
	}
	return out
}
