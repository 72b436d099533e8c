package excel

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"tcg-pricer/internal/pricing"
	"tcg-pricer/internal/services/pricer"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	firstDataRow = 6
	nameCol      = 3 // D
	priceCol     = 5 // F
	// newPriceAxis is the price column after two columns are inserted in front.
	newPriceAxis = "H"
)

// Quoter prices a single catalog item from a live search.
type Quoter interface {
	Quote(ctx context.Context, item pricing.CatalogItem) pricer.ItemResult
}

// ProductRow is one product line of a price sheet.
type ProductRow struct {
	Row          int    `json:"row,omitempty"`
	ProductName  string `json:"product_name" binding:"required"`
	CurrentPrice int    `json:"current_price"`
}

// RowResult is the repricing outcome of one ProductRow.
type RowResult struct {
	Row            int    `json:"row,omitempty"`
	ProductName    string `json:"product_name"`
	Game           string `json:"game,omitempty"`
	Keyword        string `json:"keyword,omitempty"`
	Classification string `json:"classification,omitempty"`
	OldPrice       int    `json:"old_price"`
	NewPrice       int    `json:"new_price"`
	Diff           int    `json:"diff"`
	Change         string `json:"change"`
	Matched        bool   `json:"matched"`
	Reason         string `json:"reason,omitempty"`
}

// Report summarises a processed workbook.
type Report struct {
	Sheet     string      `json:"sheet"`
	Rows      int         `json:"rows"`
	Changed   int         `json:"changed"`
	Unchanged int         `json:"unchanged"`
	Results   []RowResult `json:"results"`
}

// Processor reprices product sheets.
type Processor struct {
	quoter Quoter
	log    zerolog.Logger
}

func NewProcessor(q Quoter, log zerolog.Logger) *Processor {
	return &Processor{quoter: q, log: log.With().Str("component", "excel").Logger()}
}

// Preview prices rows without touching a workbook. Rows whose product cannot
// be priced keep their current price.
func (p *Processor) Preview(ctx context.Context, rows []ProductRow) []RowResult {
	results := make([]RowResult, 0, len(rows))
	for _, row := range rows {
		if ctx.Err() != nil {
			break
		}
		results = append(results, p.price(ctx, row))
	}
	return results
}

func (p *Processor) price(ctx context.Context, row ProductRow) RowResult {
	r := RowResult{Row: row.Row, ProductName: row.ProductName, OldPrice: row.CurrentPrice, NewPrice: row.CurrentPrice}
	item, ok := pricing.ProductItem(row.ProductName)
	if !ok {
		r.Reason = pricing.Reason(pricing.ErrNotApplicable)
		r.Change = changeText(0)
		p.log.Info().Str("product", row.ProductName).Int("price", row.CurrentPrice).Msg("no search pattern, price kept")
		return r
	}
	r.Game = string(item.Game)

	q := p.quoter.Quote(ctx, item)
	r.Keyword, r.Classification = q.Keyword, q.Classification
	if q.Success && q.Price != nil {
		r.Matched = true
		r.NewPrice = *q.Price
	} else {
		r.Reason = q.Reason
	}
	r.Diff = r.NewPrice - r.OldPrice
	r.Change = changeText(r.Diff)

	if r.Diff != 0 {
		p.log.Info().Str("keyword", r.Keyword).Msgf("%s : %d → %d (%+d원)", r.ProductName, r.OldPrice, r.NewPrice, r.Diff)
	} else {
		p.log.Info().Str("keyword", r.Keyword).Str("reason", r.Reason).Msgf("%s : %d (변경없음)", r.ProductName, r.OldPrice)
	}
	return r
}

func changeText(diff int) string {
	if diff == 0 {
		return "0원"
	}
	return fmt.Sprintf("%+d원", diff)
}

// ReadRows returns the product rows of the first sheet of f.
func ReadRows(f *excelize.File) (string, []ProductRow, error) {
	sheet := f.GetSheetName(0)
	if sheet == "" {
		return "", nil, fmt.Errorf("workbook has no sheets")
	}
	all, err := f.GetRows(sheet)
	if err != nil {
		return "", nil, fmt.Errorf("read rows: %w", err)
	}
	var rows []ProductRow
	for i := firstDataRow - 1; i < len(all); i++ {
		name := strings.TrimSpace(cellAt(all[i], nameCol))
		if name == "" {
			continue
		}
		rows = append(rows, ProductRow{Row: i + 1, ProductName: name, CurrentPrice: parsePrice(cellAt(all[i], priceCol))})
	}
	return sheet, rows, nil
}

func cellAt(row []string, col int) string {
	if col < len(row) {
		return row[col]
	}
	return ""
}

func parsePrice(s string) int {
	s = strings.NewReplacer(",", "", "원", "", " ", "").Replace(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int(math.Round(f))
}

type legendEntry struct {
	color, label, rgb string
}

var legend = []legendEntry{
	{"초록색", "1000원 이하", "00FF00"},
	{"파랑색", "2000원 이하", "0000FF"},
	{"노랑색", "3000원 이하", "FFFF00"},
	{"빨강색", "3000원 초과", "FF0000"},
}

// fillIndex returns the legend entry for a price change, or -1 when the
// price did not move.
func fillIndex(diff int) int {
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff == 0:
		return -1
	case diff <= 1000:
		return 0
	case diff <= 2000:
		return 1
	case diff <= 3000:
		return 2
	default:
		return 3
	}
}

// Process reprices every product row of the workbook read from r. The
// returned file has two columns inserted in front: the change and the
// previous price. The new price replaces the old one, coloured by the size
// of the change.
func (p *Processor) Process(ctx context.Context, r io.Reader) (*excelize.File, Report, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, Report{}, fmt.Errorf("open workbook: %w", err)
	}
	sheet, rows, err := ReadRows(f)
	if err != nil {
		f.Close()
		return nil, Report{}, err
	}
	report := Report{Sheet: sheet, Rows: len(rows)}
	p.log.Info().Str("sheet", sheet).Int("rows", len(rows)).Msg("processing workbook")

	results := p.Preview(ctx, rows)
	if err := ctx.Err(); err != nil {
		f.Close()
		return nil, report, err
	}

	if err := f.InsertCols(sheet, "A", 2); err != nil {
		f.Close()
		return nil, report, fmt.Errorf("insert columns: %w", err)
	}
	styles := make([]int, len(legend))
	for i, e := range legend {
		id, err := f.NewStyle(&excelize.Style{Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{e.rgb}}})
		if err != nil {
			f.Close()
			return nil, report, fmt.Errorf("create style: %w", err)
		}
		styles[i] = id
	}

	set := func(axis string, v interface{}) {
		if err == nil {
			err = f.SetCellValue(sheet, axis, v)
		}
	}
	set("A1", "변동률")
	set("B1", "기존가격")
	for _, res := range results {
		set(fmt.Sprintf("A%d", res.Row), res.Change)
		set(fmt.Sprintf("B%d", res.Row), res.OldPrice)
		axis := fmt.Sprintf("%s%d", newPriceAxis, res.Row)
		set(axis, res.NewPrice)
		if i := fillIndex(res.Diff); i >= 0 && err == nil {
			err = f.SetCellStyle(sheet, axis, axis, styles[i])
		}
		if res.Diff != 0 {
			report.Changed++
		} else {
			report.Unchanged++
		}
	}
	for i, e := range legend {
		row := i + 2
		set(fmt.Sprintf("A%d", row), e.color)
		set(fmt.Sprintf("B%d", row), e.label)
		if err == nil {
			err = f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("A%d", row), styles[i])
		}
	}
	if err != nil {
		f.Close()
		return nil, report, fmt.Errorf("write workbook: %w", err)
	}
	report.Results = results
	p.log.Info().Int("changed", report.Changed).Int("unchanged", report.Unchanged).Msg("workbook processed")
	return f, report, nil
}
