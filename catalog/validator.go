package catalog

import (
	"fmt"

	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/models"
	"github.com/mmdatafocus/fulfillment_backend/utils"
	"github.com/sirupsen/logrus"
)

// Result reports what validation found and, under the register policy, what it added.
type Result struct {
	Missing    []string              `json:"missing"`
	Registered []models.CatalogEntry `json:"registered,omitempty"`
}

// Missing returns the distinct barcodes absent from the catalog, in first-seen order.
func Missing(lines []models.OrderLine, c *Catalog) []string {
	var missing []string
	seen := map[string]bool{}
	for _, l := range lines {
		bc := utils.NormalizeBarcode(l.Barcode)
		if bc == "" || seen[bc] {
			continue
		}
		seen[bc] = true
		if !c.Contains(bc) {
			missing = append(missing, bc)
		}
	}
	return missing
}

// Validate gates the pipeline on catalog completeness. With any barcode missing it always
// returns a *models.ValidationHalt; the register policy appends blank rows first.
func Validate(lines []models.OrderLine, c *Catalog, policy string) (*Result, error) {
	res := &Result{Missing: Missing(lines, c)}
	if len(res.Missing) == 0 {
		return res, nil
	}

	if policy != config.CatalogPolicyRegister {
		logger.WithFields(logrus.Fields{"missing": res.Missing}).Warn("catalog incomplete")
		return res, &models.ValidationHalt{
			Stage:  models.HaltStageCatalog,
			Reason: "barcodes not in product catalog",
			Items:  res.Missing,
		}
	}

	names := firstSeenNames(lines)
	for _, bc := range res.Missing {
		res.Registered = append(res.Registered, models.CatalogEntry{Barcode: bc, DisplayName: names[bc]})
	}
	if err := c.Append(res.Registered...); err != nil {
		config.LogError(logger, "catalog", "Validate", "register missing barcodes", res.Missing, err)
		return res, fmt.Errorf("register missing barcodes: %w", err)
	}
	return res, &models.ValidationHalt{
		Stage:  models.HaltStageCatalog,
		Reason: fmt.Sprintf("registered %d new catalog rows; complete them and re-run", len(res.Registered)),
		Items:  res.Missing,
	}
}

func firstSeenNames(lines []models.OrderLine) map[string]string {
	names := map[string]string{}
	for _, l := range lines {
		bc := utils.NormalizeBarcode(l.Barcode)
		if _, ok := names[bc]; !ok {
			names[bc] = l.ProductName
		}
	}
	return names
}
