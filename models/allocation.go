package models

// GroupKey is the aggregation key of confirmed order lines.
type GroupKey struct {
	ShipmentId          string
	Barcode             string
	ProductName         string
	LogisticsCenter     string
	ExpectedArrivalDate string
}

// AllocationGroup sums confirmed quantity across every line sharing a GroupKey.
// OrderId and ProductCode come from the first line matching (shipment, barcode).
type AllocationGroup struct {
	GroupKey
	ConfirmedQuantity int    `json:"confirmed_quantity"`
	OrderId           string `json:"order_id"`
	ProductCode       string `json:"product_code"`
}

// Allocation is the outcome of one group in an allocation pass.
type Allocation struct {
	Group     AllocationGroup `json:"group"`
	Allocated int             `json:"allocated"`
	Need      int             `json:"need"`
}

// StockUsage is the running per-barcode quantity already consumed in a pass.
type StockUsage map[string]int

// TotalNeed sums shortfall across allocations.
func TotalNeed(allocs []Allocation) int {
	total := 0
	for _, a := range allocs {
		total += a.Need
	}
	return total
}
