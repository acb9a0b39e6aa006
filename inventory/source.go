package inventory

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/models"
	"github.com/mmdatafocus/fulfillment_backend/utils"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

var logger = config.GetLogger()

// Source yields the on-hand quantities of one business.
type Source interface {
	Load(ctx context.Context, businessNumber string) (models.InventorySnapshot, error)
	Name() string
}

// CSVSource reads a published spreadsheet export over HTTP.
type CSVSource struct {
	URL    string
	Client *http.Client
}

// XLSXSource reads a local workbook; Sheet defaults to the first sheet.
type XLSXSource struct {
	Path  string
	Sheet string
}

// NewSourceFromEnv picks STOCK_SHEET_CSV (remote) over STOCK_XLSX (local).
func NewSourceFromEnv() (Source, error) {
	if u := strings.TrimSpace(os.Getenv("STOCK_SHEET_CSV")); u != "" {
		return &CSVSource{URL: u}, nil
	}
	if p := strings.TrimSpace(os.Getenv("STOCK_XLSX")); p != "" {
		return &XLSXSource{Path: p}, nil
	}
	return nil, errors.New("STOCK_SHEET_CSV or STOCK_XLSX is required")
}

func (s *CSVSource) Name() string { return s.URL }

func (s *CSVSource) Load(ctx context.Context, businessNumber string) (models.InventorySnapshot, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch inventory csv: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch inventory csv: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	r := csv.NewReader(resp.Body)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse inventory csv: %w", err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return fromRows(rows, businessNumber, "csv")
}

func (s *XLSXSource) Name() string { return s.Path }

func (s *XLSXSource) Load(_ context.Context, businessNumber string) (models.InventorySnapshot, error) {
	f, err := excelize.OpenFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open inventory workbook: %w", err)
	}
	defer f.Close()

	sheet := s.Sheet
	if sheet == "" {
		list := f.GetSheetList()
		if len(list) == 0 {
			return nil, fmt.Errorf("inventory workbook %s has no sheets", filepath.Base(s.Path))
		}
		sheet = list[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read inventory workbook: %w", err)
	}
	return fromRows(rows, businessNumber, "xlsx")
}

func normalizeBusinessNumber(s string) string {
	return strings.ReplaceAll(utils.StripSpaces(s), "-", "")
}

// fromRows filters rows by business number. Duplicate barcodes keep the last row.
func fromRows(rows [][]string, businessNumber, source string) (models.InventorySnapshot, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("inventory %s is empty", source)
	}
	header := rows[0]
	bizCol := models.FindColumnFor(header, models.ColumnBusinessNumber)
	bcCol := models.FindColumnFor(header, models.ColumnStockBarcode)
	qtyCol := models.FindColumnFor(header, models.ColumnStockQuantity)
	var missing []string
	if bizCol < 0 {
		missing = append(missing, models.ColumnBusinessNumber)
	}
	if bcCol < 0 {
		missing = append(missing, models.ColumnStockBarcode)
	}
	if qtyCol < 0 {
		missing = append(missing, models.ColumnStockQuantity)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("inventory %s lacks columns: %s", source, strings.Join(missing, ", "))
	}

	want := normalizeBusinessNumber(businessNumber)
	snapshot := models.InventorySnapshot{}
	matched := 0
	for r := 1; r < len(rows); r++ {
		if normalizeBusinessNumber(utils.CellAt(rows, r, bizCol)) != want {
			continue
		}
		matched++
		bc := utils.NormalizeBarcode(utils.CellAt(rows, r, bcCol))
		if bc == "" {
			continue
		}
		snapshot[bc] = utils.ParseQuantity(utils.CellAt(rows, r, qtyCol))
	}
	if want == "" || matched == 0 {
		return nil, &models.ValidationHalt{
			Stage:  models.HaltStageInventory,
			Reason: fmt.Sprintf("no inventory rows for business number %q", businessNumber),
		}
	}

	logger.WithFields(logrus.Fields{"source": source, "rows": matched, "barcodes": len(snapshot)}).Info("inventory snapshot loaded")
	return snapshot, nil
}

// RequireBarcodes halts when any barcode has no inventory row at all.
func RequireBarcodes(snapshot models.InventorySnapshot, barcodes []string) error {
	var missing []string
	for _, bc := range utils.UniqueSlice(barcodes) {
		bc = utils.NormalizeBarcode(bc)
		if bc == "" || snapshot.Has(bc) {
			continue
		}
		missing = append(missing, bc)
	}
	if len(missing) == 0 {
		return nil
	}
	return &models.ValidationHalt{
		Stage:  models.HaltStageInventory,
		Reason: "barcodes missing from inventory",
		Items:  utils.UniqueSlice(missing),
	}
}
