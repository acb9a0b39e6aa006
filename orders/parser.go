package orders

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/models"
	"github.com/mmdatafocus/fulfillment_backend/utils"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// label search window for the header block
const (
	labelMaxRow = 40
	labelMaxCol = 15
)

const (
	labelReturnName    = "회송담당자"
	labelReturnPhone   = "연락처"
	labelReturnAddress = "회송지"
)

var logger = config.GetLogger()

// Parser turns pending purchase-order spreadsheets into order lines.
type Parser struct {
	Layout         models.Layout
	PairMode       string
	TrackingDigits int
}

// NewParser builds a parser from the environment (PAIR_MODE, TRACKING_DIGITS).
func NewParser() *Parser {
	return &Parser{
		Layout:         models.DefaultLayout,
		PairMode:       config.PairMode(),
		TrackingDigits: config.TrackingDigits(),
	}
}

func fail(file, format string, args ...any) *models.ParseFailure {
	return &models.ParseFailure{File: filepath.Base(file), Reason: fmt.Sprintf(format, args...)}
}

// ParseFile reads one spreadsheet. Any error it returns is a *models.ParseFailure.
func (p *Parser) ParseFile(file string) (*models.ParsedOrder, error) {
	f, err := excelize.OpenFile(file)
	if err != nil {
		return nil, fail(file, "cannot open spreadsheet: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fail(file, "workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fail(file, "cannot read sheet %s: %v", sheets[0], err)
	}

	layout := p.Layout
	poRow := findInFirstColumn(rows, layout.OrderIdLabel)
	if poRow < 0 {
		return nil, fail(file, "label %q not found", layout.OrderIdLabel)
	}
	orderId := utils.CellAt(rows, poRow, layout.OrderIdColumn)
	if orderId == "" {
		return nil, fail(file, "order number next to %q is blank", layout.OrderIdLabel)
	}

	etaRow := findInFirstColumn(rows, layout.ArrivalLabel)
	if etaRow < 0 {
		return nil, fail(file, "label %q not found", layout.ArrivalLabel)
	}
	dataRow := etaRow + 1
	etaValue := rawCell(f, sheets[0], dataRow, layout.ArrivalDateCol, utils.CellAt(rows, dataRow, layout.ArrivalDateCol))
	eta := utils.ParseDate(etaValue)
	center := utils.CellAt(rows, dataRow, layout.CenterCol)
	if eta == nil {
		logger.WithFields(logrus.Fields{"file": filepath.Base(file), "value": etaValue}).Warn("expected arrival date not parsable")
	}

	if layout.ItemHeaderRow >= len(rows) {
		return nil, fail(file, "item table header (row %d) missing", layout.ItemHeaderRow+1)
	}
	header := rows[layout.ItemHeaderRow]
	colProduct := models.FindColumnFor(header, models.ColumnProductCode)
	colBarcode := models.FindColumnFor(header, models.ColumnBarcode)
	if colProduct < 0 || colBarcode < 0 {
		return nil, fail(file, "item table lacks %s or %s column",
			strings.Join(models.ColumnCandidates[models.ColumnProductCode], "/"),
			strings.Join(models.ColumnCandidates[models.ColumnBarcode], "/"))
	}
	colQty := models.FindColumnFor(header, models.ColumnQuantity)
	if colQty < 0 {
		colQty = layout.QuantityCol
	}

	order := &models.ParsedOrder{
		File:                filepath.Base(file),
		OrderId:             orderId,
		LogisticsCenter:     center,
		ExpectedArrivalDate: eta,
		ReturnContact: models.ReturnContact{
			Name:    findByLabel(rows, labelReturnName),
			Phone:   utils.NormalizePhoneNumber(findByLabel(rows, labelReturnPhone)),
			Address: findByLabel(rows, labelReturnAddress),
		},
	}

	var pending *models.OrderLine
	for r := layout.ItemHeaderRow + 1; r < len(rows); r++ {
		cell := utils.CellAt(rows, r, colBarcode)
		if utils.IsCanonicalBarcode(cell) {
			if pending == nil {
				continue
			}
			line := *pending
			line.Barcode = utils.NormalizeBarcode(cell)
			order.Lines = append(order.Lines, line)
			pending = nil
			if p.PairMode == config.PairModeFirst {
				break
			}
			continue
		}
		code := utils.CellAt(rows, r, colProduct)
		if code == "" {
			// a barcode only confirms the row directly above it
			pending = nil
			continue
		}
		qty := utils.ParseQuantity(utils.CellAt(rows, r, colQty))
		pending = &models.OrderLine{
			OrderId:             orderId,
			ProductCode:         code,
			ProductName:         cell,
			LogisticsCenter:     center,
			ExpectedArrivalDate: eta,
			OrderedQuantity:     qty,
			ConfirmedQuantity:   qty,
			SourceFile:          order.File,
		}
	}

	order.SetTrackingNumber(utils.GenerateTrackingNumber(p.TrackingDigits))
	return order, nil
}

// ParseAll parses every file, collecting failures instead of stopping.
// Files for the same arrival date and center share one tracking number.
func (p *Parser) ParseAll(files []string) ([]models.ParsedOrder, []models.ParseFailure) {
	sorted := append([]string(nil), files...)
	sort.Strings(sorted)

	var (
		parsed   []models.ParsedOrder
		failures []models.ParseFailure
		shared   = map[string]string{}
	)
	for _, file := range sorted {
		order, err := p.ParseFile(file)
		if err != nil {
			var pf *models.ParseFailure
			if !errors.As(err, &pf) {
				pf = fail(file, "%v", err)
			}
			config.LogError(logger, "orders", "ParseAll", "parse file", pf.File, err)
			failures = append(failures, *pf)
			continue
		}
		key := utils.FormatDate(order.ExpectedArrivalDate) + "|" + order.LogisticsCenter
		if tn, ok := shared[key]; ok {
			order.SetTrackingNumber(tn)
		} else {
			shared[key] = order.TrackingNumber
		}
		if len(order.Lines) == 0 {
			logger.WithFields(logrus.Fields{"file": order.File, "order_id": order.OrderId}).Warn("no product/barcode pairs found")
		}
		parsed = append(parsed, *order)
	}

	logger.WithFields(logrus.Fields{
		"files":     len(files),
		"parsed":    len(parsed),
		"failures":  len(failures),
		"pair_mode": p.PairMode,
	}).Info("purchase orders parsed")
	return parsed, failures
}

// rawCell returns the unformatted value of a cell so date-typed cells arrive as
// Excel serials rather than locale-rendered text.
func rawCell(f *excelize.File, sheet string, r, c int, fallback string) string {
	name, err := excelize.CoordinatesToCellName(c+1, r+1)
	if err != nil {
		return fallback
	}
	v, err := f.GetCellValue(sheet, name, excelize.Options{RawCellValue: true})
	if err != nil || strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func findInFirstColumn(rows [][]string, label string) int {
	for r := range rows {
		if strings.Contains(utils.CellAt(rows, r, 0), label) {
			return r
		}
	}
	return -1
}

// findByLabel returns the cell right of the first cell containing label, spaces ignored.
func findByLabel(rows [][]string, label string) string {
	target := utils.StripSpaces(label)
	for r := 0; r < labelMaxRow && r < len(rows); r++ {
		for c := 0; c < labelMaxCol && c < len(rows[r]); c++ {
			if strings.Contains(utils.StripSpaces(rows[r][c]), target) {
				return utils.CellAt(rows, r, c+1)
			}
		}
	}
	return ""
}
