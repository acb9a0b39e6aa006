package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

func init() {
	// Load env from .env
	godotenv.Load()
}

const (
	PairModeAll   = "all"
	PairModeFirst = "first"

	CatalogPolicyBlock    = "block"
	CatalogPolicyRegister = "register"

	AllocationOrderFirstSeen = "first-seen"
	AllocationOrderSorted    = "sorted"
)

// PairMode controls how many name/barcode pairs the order parser takes per spreadsheet.
//
// Set via env:
// - PAIR_MODE=all   (default) every name row followed by a barcode row
// - PAIR_MODE=first only the first pair, as the older templates were processed
func PairMode() string {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("PAIR_MODE")))
	if v == PairModeFirst {
		return PairModeFirst
	}
	return PairModeAll
}

// CatalogMissingPolicy decides what happens when an order references a barcode the catalog lacks.
//
// Set via env:
// - CATALOG_MISSING_POLICY=block    (default) report and halt
// - CATALOG_MISSING_POLICY=register append blank rows, save, notify and halt
func CatalogMissingPolicy() string {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("CATALOG_MISSING_POLICY")))
	if v == CatalogPolicyRegister {
		return CatalogPolicyRegister
	}
	return CatalogPolicyBlock
}

// AllocationOrder is the order groups compete for stock in.
//
// Set via env:
// - ALLOCATION_ORDER=first-seen (default) order of first appearance in the confirmation form
// - ALLOCATION_ORDER=sorted     by shipment, barcode, name, center, date
func AllocationOrder() string {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("ALLOCATION_ORDER")))
	if v == AllocationOrderSorted {
		return AllocationOrderSorted
	}
	return AllocationOrderFirstSeen
}

// WorkDir is where archives are unpacked and spreadsheets are written. Defaults to the cwd.
func WorkDir() string {
	if v := strings.TrimSpace(os.Getenv("WORK_DIR")); v != "" {
		return v
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

func CatalogPath() string {
	if v := strings.TrimSpace(os.Getenv("CATALOG_FILE")); v != "" {
		return v
	}
	return filepath.Join(WorkDir(), "상품정보.xlsx")
}

func SettingsPath() string {
	if v := strings.TrimSpace(os.Getenv("SETTINGS_FILE")); v != "" {
		return v
	}
	return filepath.Join(WorkDir(), "settings.env")
}

// TrackingDigits is the length of generated tracking numbers, clamped to 10..12.
func TrackingDigits() int {
	n := IntFromEnv("TRACKING_DIGITS", 12)
	if n < 10 {
		return 10
	}
	if n > 12 {
		return 12
	}
	return n
}

func IntFromEnv(key string, def int) int {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return n
}

func SplitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
