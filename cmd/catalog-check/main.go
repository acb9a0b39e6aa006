package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mmdatafocus/fulfillment_backend/archive"
	"github.com/mmdatafocus/fulfillment_backend/catalog"
	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/models"
	"github.com/mmdatafocus/fulfillment_backend/orders"
	"github.com/mmdatafocus/fulfillment_backend/utils"
	"github.com/sirupsen/logrus"
)

// catalog-check validates the barcodes of an archive against the product catalog without
// touching inventory, the marketplace or any report sink.
func main() {
	zipPath := flag.String("zip", "", "Required: ZIP archive of purchase order spreadsheets")
	catalogPath := flag.String("catalog", config.CatalogPath(), "Product catalog workbook")
	policy := flag.String("policy", config.CatalogMissingPolicy(), "Missing barcode policy: block or register")
	flag.Parse()

	if strings.TrimSpace(*zipPath) == "" {
		fmt.Fprintln(os.Stderr, "--zip is required")
		os.Exit(1)
	}
	logger := config.GetLogger()

	if _, err := catalog.EnsureTemplate(*catalogPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	tmp, err := os.MkdirTemp("", "catalog-check-")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer os.RemoveAll(tmp)

	parser := orders.NewParser()
	res, err := archive.Normalize(*zipPath, filepath.Join(tmp, "unzipped"), parser.Layout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	parsed, failures := parser.ParseAll(res.Pending)
	for _, f := range append(res.Failures, failures...) {
		fmt.Printf("skipped %s: %s\n", f.File, f.Reason)
	}
	lines := models.AllLines(parsed)

	cat, err := catalog.Load(*catalogPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	vres, err := catalog.Validate(lines, cat, strings.ToLower(strings.TrimSpace(*policy)))
	if vres != nil {
		for _, e := range vres.Registered {
			fmt.Printf("registered %s (%s)\n", e.Barcode, e.DisplayName)
		}
	}
	if err != nil {
		var halt *models.ValidationHalt
		if errors.As(err, &halt) {
			fmt.Fprintf(os.Stderr, "%s\n", halt.Reason)
			for _, item := range halt.Items {
				fmt.Fprintf(os.Stderr, "  %s\n", item)
			}
			os.Exit(1)
		}
		logger.WithFields(logrus.Fields{"field": "catalog-check"}).Error(err)
		os.Exit(1)
	}

	barcodes := make([]string, 0, len(lines))
	for _, l := range lines {
		barcodes = append(barcodes, utils.NormalizeBarcode(l.Barcode))
	}
	fmt.Printf("%d orders, %d distinct barcodes, all in catalog\n", len(parsed), len(utils.UniqueSlice(barcodes)))
}
