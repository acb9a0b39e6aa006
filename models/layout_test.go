package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFindColumn_PriorityAndNormalization(t *testing.T) {
	headers := []string{"No", "상품 코드", "상품명/옵션/barcode", "발주수량", "확정 수량"}

	assert.Equal(t, 1, FindColumnFor(headers, ColumnProductCode))
	assert.Equal(t, 2, FindColumnFor(headers, ColumnBarcode))
	// 확정수량 outranks 발주수량 even though it comes later
	assert.Equal(t, 4, FindColumnFor(headers, ColumnQuantity))
	assert.Equal(t, -1, FindColumnFor(headers, ColumnBusinessNumber))
	assert.Equal(t, -1, FindColumn(headers, []string{" "}))
}

func TestValidationHalt_Error(t *testing.T) {
	h := &ValidationHalt{Stage: HaltStageCatalog, Reason: "barcodes not in product catalog", Items: []string{"R1", "R2"}}
	assert.Equal(t, "catalog: barcodes not in product catalog: R1, R2", h.Error())

	h.Items = nil
	assert.Equal(t, "catalog: barcodes not in product catalog", h.Error())
}

func TestDistinctOrderIdsAndTotalNeed(t *testing.T) {
	eta := time.Date(2024, 5, 20, 0, 0, 0, 0, time.Local)
	orders := []ParsedOrder{
		{OrderId: "A", Lines: []OrderLine{{OrderId: "A", Barcode: "R1", ExpectedArrivalDate: &eta}, {OrderId: "A", Barcode: "R2"}}},
		{OrderId: "B", Lines: []OrderLine{{OrderId: "B", Barcode: "R1"}}},
	}
	lines := AllLines(orders)
	assert.Len(t, lines, 3)
	assert.Equal(t, []string{"A", "B"}, DistinctOrderIds(lines))

	assert.Equal(t, 5, TotalNeed([]Allocation{{Need: 2}, {Need: 0}, {Need: 3}}))
	assert.True(t, InventorySnapshot{"R1": 0}.Has("R1"))
	assert.False(t, InventorySnapshot{}.Has("R1"))
}
