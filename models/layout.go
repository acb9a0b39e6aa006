package models

import "strings"

// Layout holds the fixed offsets of the purchase-order template family. All indexes are 0-based.
type Layout struct {
	OrderIdLabel     string
	OrderIdColumn    int
	ArrivalLabel     string
	ArrivalDateCol   int
	CenterCol        int
	ItemHeaderRow    int
	QuantityCol      int
	ConfirmedMarker  string
	ConfirmedRowFrom int
	ConfirmedRowTo   int
}

// DefaultLayout matches the marketplace purchase-order download.
var DefaultLayout = Layout{
	OrderIdLabel:     "발주번호",
	OrderIdColumn:    2,
	ArrivalLabel:     "입고예정일시",
	ArrivalDateCol:   5,
	CenterCol:        2,
	ItemHeaderRow:    19,
	QuantityCol:      6,
	ConfirmedMarker:  "입고수량",
	ConfirmedRowFrom: 17,
	ConfirmedRowTo:   20,
}

// Logical column names resolved against spreadsheet headers.
const (
	ColumnProductCode    = "product_code"
	ColumnBarcode        = "barcode"
	ColumnQuantity       = "quantity"
	ColumnBusinessNumber = "business_number"
	ColumnStockBarcode   = "stock_barcode"
	ColumnStockQuantity  = "stock_quantity"
)

// ColumnCandidates maps a logical field to header substrings tried in priority order.
// Templates change upstream without notice; extend this table instead of the parsers.
var ColumnCandidates = map[string][]string{
	ColumnProductCode:    {"상품코드", "품번"},
	ColumnBarcode:        {"BARCODE"},
	ColumnQuantity:       {"확정수량", "발주수량", "수량"},
	ColumnBusinessNumber: {"사업자"},
	ColumnStockBarcode:   {"바코드", "BARCODE"},
	ColumnStockQuantity:  {"수량", "재고"},
}

// FindColumn returns the index of the first header containing the highest-priority candidate,
// compared case-insensitively with spaces ignored, or -1.
func FindColumn(headers []string, candidates []string) int {
	norm := make([]string, len(headers))
	for i, h := range headers {
		norm[i] = strings.ToUpper(strings.Join(strings.Fields(h), ""))
	}
	for _, c := range candidates {
		c = strings.ToUpper(strings.Join(strings.Fields(c), ""))
		if c == "" {
			continue
		}
		for i, h := range norm {
			if h != "" && strings.Contains(h, c) {
				return i
			}
		}
	}
	return -1
}

// FindColumnFor resolves a logical field through ColumnCandidates.
func FindColumnFor(headers []string, field string) int {
	return FindColumn(headers, ColumnCandidates[field])
}
