package reports

import (
	"github.com/mmdatafocus/fulfillment_backend/models"
)

const (
	RequestReport  = "3PL신청서"
	ReorderReport  = "주문서"
	SourcingReport = "원데이주문서"
)

// NothingToOrder fills the re-order sheet when every group was covered by stock.
const NothingToOrder = "부족 수량 없음 (재고로 모두 충당)"

// Table is a rendered report, independent of where it is written.
type Table struct {
	Name    string
	Headers []string
	Rows    [][]interface{}
}

// CatalogLookup resolves catalog metadata for the sourcing sheet.
type CatalogLookup interface {
	Lookup(barcode string) (models.CatalogEntry, bool)
}

var requestHeaders = []string{"브랜드명", "쉽먼트번호", "발주번호", "SKU번호", "SKU(제품명)", "바코드", "수량", "", "입고예정일", "센터명"}

var reorderHeaders = []string{"바코드명", "바코드", "상품코드", "쿠팡납품센터명", "쿠팡쉽먼트번호", "쿠팡입고예정일자", "입고마감준수여부", "발주 수량", "중국재고사용여부"}

var sourcingHeaders = []string{"상품URL", "단가(위안)", "수량", "색상", "사이즈", "이미지URL", "상품바코드", "상품바코드명", "브랜드명"}

// RequestTable lists every group with its confirmed quantity.
func RequestTable(allocs []models.Allocation, brand string) Table {
	t := Table{Name: RequestReport, Headers: requestHeaders}
	for _, a := range allocs {
		g := a.Group
		t.Rows = append(t.Rows, []interface{}{
			brand, g.ShipmentId, g.OrderId, g.ProductCode,
			g.ProductName, g.Barcode, g.ConfirmedQuantity, "", g.ExpectedArrivalDate, g.LogisticsCenter,
		})
	}
	return t
}

// ReorderTable lists groups with a shortfall; an empty result gets one placeholder row.
func ReorderTable(allocs []models.Allocation) Table {
	t := Table{Name: ReorderReport, Headers: reorderHeaders}
	for _, a := range allocs {
		if a.Need <= 0 {
			continue
		}
		g := a.Group
		t.Rows = append(t.Rows, []interface{}{
			g.ProductName, g.Barcode, g.ProductCode, g.LogisticsCenter,
			g.ShipmentId, g.ExpectedArrivalDate, "Y", a.Need, "N",
		})
	}
	if len(t.Rows) == 0 {
		t.Rows = append(t.Rows, []interface{}{NothingToOrder})
	}
	return t
}

// SourcingTable is the supplier purchase sheet for shortfalls, enriched from the catalog.
// Colour and size are left for the operator.
func SourcingTable(allocs []models.Allocation, catalog CatalogLookup, brand string) Table {
	t := Table{Name: SourcingReport, Headers: sourcingHeaders}
	for _, a := range allocs {
		if a.Need <= 0 {
			continue
		}
		var entry models.CatalogEntry
		if catalog != nil {
			entry, _ = catalog.Lookup(a.Group.Barcode)
		}
		t.Rows = append(t.Rows, []interface{}{
			entry.ProductURL, entry.UnitPriceCNY, a.Need, "", "",
			entry.ImageURL, a.Group.Barcode, entry.DisplayName, brand,
		})
	}
	return t
}

// BuildTables renders all reports of one run in output order.
func BuildTables(allocs []models.Allocation, catalog CatalogLookup, brand string) []Table {
	return []Table{
		RequestTable(allocs, brand),
		ReorderTable(allocs),
		SourcingTable(allocs, catalog, brand),
	}
}
