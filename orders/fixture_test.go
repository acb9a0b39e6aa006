package orders

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

type itemRow struct {
	code string
	name string // name on name rows, barcode on barcode rows
	qty  string
}

type poFixture struct {
	orderId string
	center  string
	eta     string
	etaTime time.Time // written as a date-typed cell when set
	etaFmt  int
	items   []itemRow
	noLabel bool
	noBCCol bool
}

func defaultItems() []itemRow {
	return []itemRow{
		{code: "1001", name: "테스트 상품 A", qty: "5"},
		{name: "R1001"},
		{code: "1002", name: "테스트 상품 B", qty: "3"},
		{name: "R1002"},
		{code: "1003", name: "바코드 없는 상품", qty: "9"},
		{code: "1004", name: "테스트 상품 D", qty: "2.6"},
		{name: "r1004"},
	}
}

func set(t *testing.T, f *excelize.File, cell string, v interface{}) {
	t.Helper()
	if err := f.SetCellValue("Sheet1", cell, v); err != nil {
		t.Fatalf("set %s: %v", cell, err)
	}
}

func writePurchaseOrder(t *testing.T, dir, name string, fx poFixture) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	set(t, f, "A1", "발주서")
	if !fx.noLabel {
		set(t, f, "A10", "발주번호")
	}
	set(t, f, "C10", fx.orderId)
	set(t, f, "A12", "입고예정일시")
	set(t, f, "C13", fx.center)
	if fx.etaTime.IsZero() {
		set(t, f, "F13", fx.eta)
	} else {
		set(t, f, "F13", fx.etaTime)
		style, err := f.NewStyle(&excelize.Style{NumFmt: fx.etaFmt})
		if err != nil {
			t.Fatalf("style: %v", err)
		}
		if err := f.SetCellStyle("Sheet1", "F13", "F13", style); err != nil {
			t.Fatalf("style F13: %v", err)
		}
	}
	set(t, f, "B14", "회송 담당자")
	set(t, f, "C14", "김담당")
	set(t, f, "F14", "연락처")
	set(t, f, "G14", "01012345678")
	set(t, f, "B15", "회송지")
	set(t, f, "C15", "경기도 이천시 물류로 1")

	set(t, f, "A20", "No")
	set(t, f, "B20", "상품코드")
	if fx.noBCCol {
		set(t, f, "C20", "상품명/옵션")
	} else {
		set(t, f, "C20", "상품명/옵션/BARCODE")
	}
	set(t, f, "G20", "발주수량")

	items := fx.items
	if items == nil {
		items = defaultItems()
	}
	for i, it := range items {
		row := 21 + i
		if it.code != "" {
			cell, _ := excelize.CoordinatesToCellName(2, row)
			set(t, f, cell, it.code)
		}
		cell, _ := excelize.CoordinatesToCellName(3, row)
		set(t, f, cell, it.name)
		if it.qty != "" {
			cell, _ := excelize.CoordinatesToCellName(7, row)
			set(t, f, cell, it.qty)
		}
	}

	p := filepath.Join(dir, name)
	if err := f.SaveAs(p); err != nil {
		t.Fatalf("save fixture: %v", err)
	}
	return p
}
