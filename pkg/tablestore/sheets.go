package tablestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/salesplan/salesplan/internal/config"
	log "github.com/sirupsen/logrus"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// SheetsClient maps every table onto a sheet of one spreadsheet. The first row of a sheet holds
// the field names; each following row is a record.
type SheetsClient struct {
	svc           *gsheet.Service
	spreadsheetId string
}

var _ Client = (*SheetsClient)(nil)

func NewSheetsClient(ctx context.Context, cfg config.Sheets) (*SheetsClient, error) {
	if strings.TrimSpace(cfg.SpreadsheetId) == "" {
		return nil, errors.New("missing sheets spreadsheet id")
	}
	credentials, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	client, err := newSheetsClient(ctx, cfg.SpreadsheetId,
		goption.WithCredentialsJSON(credentials),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, err
	}
	log.Infof("Using spreadsheet %s as table store", cfg.SpreadsheetId)
	return client, nil
}

func newSheetsClient(ctx context.Context, spreadsheetId string, opts ...goption.ClientOption) (*SheetsClient, error) {
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &SheetsClient{svc: svc, spreadsheetId: spreadsheetId}, nil
}

func (c *SheetsClient) Find(ctx context.Context, table string, filter Filter) ([]Row, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetId, table).Context(ctx).Do()
	if err != nil {
		err := fmt.Errorf("could not read sheet %s: %w", table, err)
		log.Error(err)
		return nil, err
	}
	rows := parseSheet(resp.Values)
	result := make([]Row, 0, len(rows))
	for _, row := range rows {
		if filter.Matches(row) {
			result = append(result, row)
		}
	}
	return result, nil
}

func (c *SheetsClient) Add(ctx context.Context, table string, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetId, table+"!1:1").Context(ctx).Do()
	if err != nil {
		err := fmt.Errorf("could not read header of sheet %s: %w", table, err)
		log.Error(err)
		return err
	}

	var header []string
	if len(resp.Values) > 0 {
		header = toStrings(resp.Values[0])
	}
	values := make([][]any, 0, len(rows)+1)
	if len(header) == 0 {
		header = fieldNames(rows)
		headerCells := make([]any, len(header))
		for i, name := range header {
			headerCells[i] = name
		}
		values = append(values, headerCells)
	} else if missing := missingColumns(header, rows); len(missing) > 0 {
		err := fmt.Errorf("%w: sheet %s has no column for %s", ErrUnknownColumn, table, strings.Join(missing, ", "))
		log.Error(err)
		return err
	}
	values = append(values, rowsToValues(header, rows)...)

	_, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetId, table, &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		err := fmt.Errorf("could not append to sheet %s: %w", table, err)
		log.Error(err)
		return err
	}
	return nil
}

// parseSheet turns a value matrix into rows keyed by the header row. Blank lines are skipped.
func parseSheet(values [][]any) []Row {
	if len(values) == 0 {
		return nil
	}
	header := toStrings(values[0])
	rows := make([]Row, 0, len(values)-1)
	for _, line := range values[1:] {
		cells := toStrings(line)
		if isBlank(cells) {
			continue
		}
		row := make(Row, len(header))
		for i, name := range header {
			if name == "" {
				continue
			}
			if i < len(cells) {
				row[name] = cells[i]
			} else {
				row[name] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// rowsToValues lays rows out in header order. Fields unknown to the header are dropped.
func rowsToValues(header []string, rows []Row) [][]any {
	values := make([][]any, 0, len(rows))
	for _, row := range rows {
		line := make([]any, len(header))
		for i, name := range header {
			line[i] = encodeValue(row[name])
		}
		values = append(values, line)
	}
	return values
}

// missingColumns lists the fields of rows that the header has no column for, sorted.
func missingColumns(header []string, rows []Row) []string {
	columns := make(map[string]struct{}, len(header))
	for _, name := range header {
		columns[name] = struct{}{}
	}
	var missing []string
	for _, name := range fieldNames(rows) {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

func fieldNames(rows []Row) []string {
	seen := map[string]struct{}{}
	var names []string
	for _, row := range rows {
		for name := range row {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func toStrings(cells []any) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.TrimSpace(fmt.Sprint(c))
	}
	return out
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
