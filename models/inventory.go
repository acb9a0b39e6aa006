package models

// InventorySnapshot maps a normalized barcode to on-hand quantity.
// It is read once per run and never mutated during allocation.
type InventorySnapshot map[string]int

func (s InventorySnapshot) Available(barcode string) int {
	return s[barcode]
}

func (s InventorySnapshot) Has(barcode string) bool {
	_, ok := s[barcode]
	return ok
}
