package orders

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mmdatafocus/fulfillment_backend/models"
	"github.com/mmdatafocus/fulfillment_backend/utils"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// FormFileName is the confirmation form written next to the unpacked archive.
const FormFileName = "발주 확정 양식.xlsx"

const formSheet = "Sheet1"

const (
	FormColOrderId        = "발주번호"
	FormColCenter         = "물류센터"
	FormColTransportType  = "입고유형"
	FormColOrderStatus    = "발주상태"
	FormColProductCode    = "상품번호"
	FormColBarcode        = "상품바코드"
	FormColProductName    = "상품이름"
	FormColOrderedQty     = "발주수량"
	FormColConfirmedQty   = "확정수량"
	FormColReturnName     = "회송담당자"
	FormColReturnPhone    = "회송담당자 연락처"
	FormColReturnAddress  = "회송지주소"
	FormColExpectedArrive = "입고예정일"
)

// formTextCols is the number of leading form columns written as text.
const formTextCols = 6

// FormHeaders is the column contract of the order confirmation form.
var FormHeaders = []string{
	FormColOrderId,
	FormColCenter,
	FormColTransportType,
	FormColOrderStatus,
	FormColProductCode,
	FormColBarcode,
	FormColProductName,
	FormColOrderedQty,
	FormColConfirmedQty,
	"유통(소비기한)",
	"제조일자",
	"생산년도",
	"납품부족사유",
	FormColReturnName,
	FormColReturnPhone,
	FormColReturnAddress,
	"매입가",
	"공급가",
	"부가세",
	"총발주매입금",
	FormColExpectedArrive,
	"발주등록일시",
}

// columns ReadConfirmationForm cannot work without
var requiredFormColumns = []string{
	FormColOrderId,
	FormColCenter,
	FormColProductCode,
	FormColBarcode,
	FormColProductName,
	FormColExpectedArrive,
	FormColConfirmedQty,
}

const (
	transportTypeShipment = "쉽먼트"
	orderStatusRequested  = "거래처확인요청"
)

// WriteConfirmationForm writes one form row per parsed line, confirmed quantity prefilled with the ordered quantity.
func WriteConfirmationForm(path string, parsed []models.ParsedOrder) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetRow(formSheet, "A1", &FormHeaders); err != nil {
		return err
	}
	textStyle, err := f.NewStyle(&excelize.Style{NumFmt: 49})
	if err != nil {
		return err
	}

	rowNo := 2
	for _, o := range parsed {
		for _, l := range o.Lines {
			row := []interface{}{
				l.OrderId,
				l.LogisticsCenter,
				transportTypeShipment,
				orderStatusRequested,
				l.ProductCode,
				l.Barcode,
				l.ProductName,
				l.OrderedQuantity,
				l.ConfirmedQuantity,
				"", "", "", "",
				o.ReturnContact.Name,
				o.ReturnContact.Phone,
				o.ReturnContact.Address,
				"", "", "", "",
				compactDate(l),
				"",
			}
			cell, _ := excelize.CoordinatesToCellName(1, rowNo)
			if err := f.SetSheetRow(formSheet, cell, &row); err != nil {
				return err
			}
			rowNo++
		}
	}
	if rowNo > 2 {
		// identifier columns from the order id through the barcode stay text
		first, _ := excelize.CoordinatesToCellName(1, 2)
		last, _ := excelize.CoordinatesToCellName(formTextCols, rowNo-1)
		if err := f.SetCellStyle(formSheet, first, last, textStyle); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", filepath.Base(path), err)
	}
	logger.WithFields(logrus.Fields{"file": filepath.Base(path), "rows": rowNo - 2}).Info("confirmation form written")
	return nil
}

func compactDate(l models.OrderLine) string {
	if l.ExpectedArrivalDate == nil {
		return ""
	}
	return l.ExpectedArrivalDate.Format("20060102")
}

// ReadConfirmationForm reads the operator-confirmed form back into order lines.
// Columns are matched by exact name; confirmed quantity is floored and unparsable values count as 0.
func ReadConfirmationForm(path string) ([]models.OrderLine, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open confirmation form: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("confirmation form %s has no sheets", filepath.Base(path))
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read confirmation form: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("confirmation form %s is empty", filepath.Base(path))
	}

	index := map[string]int{}
	for i, h := range rows[0] {
		h = strings.TrimSpace(h)
		if _, ok := index[h]; !ok && h != "" {
			index[h] = i
		}
	}
	var missing []string
	for _, col := range requiredFormColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("confirmation form %s missing columns: %s", filepath.Base(path), strings.Join(missing, ", "))
	}
	optional := func(r int, col string) string {
		if c, ok := index[col]; ok {
			return utils.CellAt(rows, r, c)
		}
		return ""
	}

	var lines []models.OrderLine
	for r := 1; r < len(rows); r++ {
		orderId := utils.CellAt(rows, r, index[FormColOrderId])
		barcode := utils.NormalizeBarcode(utils.CellAt(rows, r, index[FormColBarcode]))
		if orderId == "" && barcode == "" {
			continue
		}
		lines = append(lines, models.OrderLine{
			OrderId:             orderId,
			Barcode:             barcode,
			ProductCode:         utils.CellAt(rows, r, index[FormColProductCode]),
			ProductName:         utils.CellAt(rows, r, index[FormColProductName]),
			LogisticsCenter:     utils.CellAt(rows, r, index[FormColCenter]),
			ExpectedArrivalDate: utils.ParseDate(utils.CellAt(rows, r, index[FormColExpectedArrive])),
			OrderedQuantity:     utils.ParseQuantity(optional(r, FormColOrderedQty)),
			ConfirmedQuantity:   utils.ParseQuantity(utils.CellAt(rows, r, index[FormColConfirmedQty])),
			SourceFile:          filepath.Base(path),
		})
	}
	return lines, nil
}
