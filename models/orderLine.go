package models

import (
	"time"
)

// OrderLine is one barcode/quantity entry of a marketplace purchase order.
type OrderLine struct {
	OrderId             string     `json:"order_id"`
	Barcode             string     `json:"barcode"`
	ProductCode         string     `json:"product_code"`
	ProductName         string     `json:"product_name"`
	LogisticsCenter     string     `json:"logistics_center"`
	ExpectedArrivalDate *time.Time `json:"expected_arrival_date"`
	ShipmentId          string     `json:"shipment_id"`
	OrderedQuantity     int        `json:"ordered_quantity"`
	ConfirmedQuantity   int        `json:"confirmed_quantity"`
	TrackingNumber      string     `json:"tracking_number"`
	SourceFile          string     `json:"source_file,omitempty"`
}

// ReturnContact is the return-shipment contact block printed on purchase orders.
type ReturnContact struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// ParsedOrder is everything read from one pending spreadsheet.
type ParsedOrder struct {
	File                string        `json:"file"`
	OrderId             string        `json:"order_id"`
	LogisticsCenter     string        `json:"logistics_center"`
	ExpectedArrivalDate *time.Time    `json:"expected_arrival_date"`
	TrackingNumber      string        `json:"tracking_number"`
	ReturnContact       ReturnContact `json:"return_contact"`
	Lines               []OrderLine   `json:"lines"`
}

// SetTrackingNumber stamps tn on the order and every line of it.
func (o *ParsedOrder) SetTrackingNumber(tn string) {
	o.TrackingNumber = tn
	for i := range o.Lines {
		o.Lines[i].TrackingNumber = tn
	}
}

// AllLines flattens parsed orders into order lines, preserving file order.
func AllLines(orders []ParsedOrder) []OrderLine {
	var lines []OrderLine
	for _, o := range orders {
		lines = append(lines, o.Lines...)
	}
	return lines
}

// DistinctOrderIds returns order ids in first-seen order.
func DistinctOrderIds(lines []OrderLine) []string {
	seen := make(map[string]bool, len(lines))
	var ids []string
	for _, l := range lines {
		if l.OrderId == "" || seen[l.OrderId] {
			continue
		}
		seen[l.OrderId] = true
		ids = append(ids, l.OrderId)
	}
	return ids
}
