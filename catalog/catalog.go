package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/models"
	"github.com/mmdatafocus/fulfillment_backend/utils"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

var logger = config.GetLogger()

// Catalog is the product catalog workbook loaded in memory.
// Duplicate barcodes are kept as rows; lookups see the last one.
type Catalog struct {
	Path    string
	Entries []models.CatalogEntry
	index   map[string]int
}

// EnsureTemplate creates the catalog with its header row when the file does not exist.
func EnsureTemplate(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", models.CatalogSheet); err != nil {
		return false, err
	}
	if err := f.SetSheetRow(models.CatalogSheet, "A1", &models.CatalogHeaders); err != nil {
		return false, err
	}
	if err := f.SaveAs(path); err != nil {
		return false, fmt.Errorf("create catalog %s: %w", filepath.Base(path), err)
	}
	logger.WithFields(logrus.Fields{"file": filepath.Base(path)}).Info("catalog template created")
	return true, nil
}

// Load reads the first sheet of the catalog workbook. Columns are matched by exact header name.
func Load(path string) (*Catalog, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("catalog %s has no sheets", filepath.Base(path))
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	c := &Catalog{Path: path, index: map[string]int{}}
	if len(rows) == 0 {
		return c, nil
	}

	cols := headerColumns(rows[0])
	if cols[0] < 0 {
		return nil, fmt.Errorf("catalog %s has no %s column", filepath.Base(path), models.CatalogHeaders[0])
	}

	for r := 1; r < len(rows); r++ {
		values := make([]string, len(cols))
		for i, col := range cols {
			values[i] = utils.CellAt(rows, r, col)
		}
		if values[0] == "" {
			continue
		}
		c.add(models.CatalogEntryFromRow(values))
	}
	return c, nil
}

// headerColumns maps each catalog header to its column index in the sheet, -1 when absent.
func headerColumns(header []string) []int {
	cols := make([]int, len(models.CatalogHeaders))
	for i, name := range models.CatalogHeaders {
		cols[i] = -1
		for j, h := range header {
			if strings.TrimSpace(h) == name {
				cols[i] = j
				break
			}
		}
	}
	return cols
}

func (c *Catalog) add(e models.CatalogEntry) {
	c.Entries = append(c.Entries, e)
	c.index[utils.NormalizeBarcode(e.Barcode)] = len(c.Entries) - 1
}

func (c *Catalog) Contains(barcode string) bool {
	_, ok := c.index[utils.NormalizeBarcode(barcode)]
	return ok
}

// Lookup compares barcodes trimmed and case-insensitively.
func (c *Catalog) Lookup(barcode string) (models.CatalogEntry, bool) {
	i, ok := c.index[utils.NormalizeBarcode(barcode)]
	if !ok {
		return models.CatalogEntry{}, false
	}
	return c.Entries[i], true
}

// Append adds rows to the workbook on disk below the last used row and to the in-memory index.
func (c *Catalog) Append(entries ...models.CatalogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if _, err := EnsureTemplate(c.Path); err != nil {
		return err
	}
	f, err := excelize.OpenFile(c.Path)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetList()[0]
	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	var header []string
	if len(rows) > 0 {
		header = rows[0]
	}
	cols := headerColumns(header)
	width := len(header)
	for i, col := range cols {
		if col >= 0 {
			continue
		}
		// header missing from the sheet, add it after the last used column
		cols[i] = width
		width++
		cell, _ := excelize.CoordinatesToCellName(cols[i]+1, 1)
		if err := f.SetCellValue(sheet, cell, models.CatalogHeaders[i]); err != nil {
			return err
		}
	}

	next := len(rows) + 1
	if next < 2 {
		next = 2
	}
	for _, e := range entries {
		row := make([]interface{}, width)
		for i, v := range e.Row() {
			row[cols[i]] = v
		}
		cell, _ := excelize.CoordinatesToCellName(1, next)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
		next++
	}
	if err := f.Save(); err != nil {
		return fmt.Errorf("save catalog: %w", err)
	}
	for _, e := range entries {
		c.add(e)
	}
	logger.WithFields(logrus.Fields{"file": filepath.Base(c.Path), "rows": len(entries)}).Info("catalog rows appended")
	return nil
}
