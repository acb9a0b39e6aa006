package reports

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/mmdatafocus/fulfillment_backend/models"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

const (
	batchSheet        = "상품목록"
	batchInvoiceSheet = "송장번호입력"
	batchHelpSheet    = "입력방법"
	undatedBatchKey   = "미정"
)

var batchHeaders = []string{
	"발주번호(PO ID)",
	"물류센터(FC)",
	"입고유형(Transport Type)",
	"입고예정일(EDD)",
	"상품번호(SKU ID)",
	"상품바코드(SKU Barcode)",
	"상품이름(SKU Name)",
	"확정수량(Confirmed Qty)",
	"송장번호(Invoice Number)",
	"납품수량(Shipped Qty)",
	"",
	"주의사항",
}

// index of the invoice column, kept as text so leading digits survive
const batchInvoiceCol = 8

// BatchFileName is the shipment upload workbook for one expected-arrival date.
func BatchFileName(edd string) string {
	return fmt.Sprintf("쉽먼트 일괄 양식_%s.xlsx", edd)
}

// WriteShipmentBatches writes one shipment upload workbook per expected-arrival date.
func WriteShipmentBatches(dir string, parsed []models.ParsedOrder) ([]string, error) {
	byDate := map[string][]models.OrderLine{}
	for _, o := range parsed {
		for _, l := range o.Lines {
			key := undatedBatchKey
			if l.ExpectedArrivalDate != nil {
				key = l.ExpectedArrivalDate.Format("20060102")
			}
			byDate[key] = append(byDate[key], l)
		}
	}
	keys := make([]string, 0, len(byDate))
	for k := range byDate {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var paths []string
	for _, edd := range keys {
		path := filepath.Join(dir, BatchFileName(edd))
		if err := writeBatch(path, edd, byDate[edd]); err != nil {
			return paths, fmt.Errorf("shipment batch %s: %w", edd, err)
		}
		paths = append(paths, path)
		logger.WithFields(logrus.Fields{"file": filepath.Base(path), "rows": len(byDate[edd])}).Info("shipment batch written")
	}
	return paths, nil
}

func writeBatch(path, edd string, lines []models.OrderLine) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", batchSheet); err != nil {
		return err
	}
	headers := batchHeaders
	if err := f.SetSheetRow(batchSheet, "A1", &headers); err != nil {
		return err
	}
	textStyle, err := f.NewStyle(&excelize.Style{NumFmt: 49})
	if err != nil {
		return err
	}
	if edd == undatedBatchKey {
		edd = ""
	}
	for i, l := range lines {
		row := []interface{}{
			l.OrderId,
			l.LogisticsCenter,
			"쉽먼트",
			edd,
			l.ProductCode,
			l.Barcode,
			l.ProductName,
			l.ConfirmedQuantity,
			l.TrackingNumber,
			l.ConfirmedQuantity,
			"",
			"",
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(batchSheet, cell, &row); err != nil {
			return err
		}
		invoiceCell, _ := excelize.CoordinatesToCellName(batchInvoiceCol+1, i+2)
		if err := f.SetCellStyle(batchSheet, invoiceCell, invoiceCell, textStyle); err != nil {
			return err
		}
	}
	for _, name := range []string{batchInvoiceSheet, batchHelpSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}
