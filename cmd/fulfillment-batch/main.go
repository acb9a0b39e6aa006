package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/inventory"
	"github.com/mmdatafocus/fulfillment_backend/models"
	"github.com/mmdatafocus/fulfillment_backend/orders"
	"github.com/mmdatafocus/fulfillment_backend/shipment"
	"github.com/mmdatafocus/fulfillment_backend/workflow"
	"github.com/sirupsen/logrus"
)

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	zipPath := flag.String("zip", "", "Required: ZIP archive of purchase order spreadsheets")
	catalogPath := flag.String("catalog", config.CatalogPath(), "Product catalog workbook (created with headers if missing)")
	inventoryCSV := flag.String("inventory-csv", "", "Inventory CSV export URL (overrides STOCK_SHEET_CSV)")
	inventoryXLSX := flag.String("inventory-xlsx", "", "Inventory workbook path (overrides STOCK_XLSX)")
	shipmentsFile := flag.String("shipments", "", "Optional: workbook of order id -> shipment id pairs instead of the marketplace portal")
	var shipmentPairs stringList
	flag.Var(&shipmentPairs, "shipment", "Optional, repeatable: order=shipment pair")
	outDir := flag.String("out", config.WorkDir(), "Directory for the generated reports")
	settingsPath := flag.String("settings", config.SettingsPath(), "Settings file")
	flag.Parse()

	if strings.TrimSpace(*zipPath) == "" {
		fmt.Fprintln(os.Stderr, "--zip is required")
		os.Exit(1)
	}
	config.CheckVersionOrExit()

	logger := config.GetLogger()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings, err := config.LoadSettings(*settingsPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var source inventory.Source
	switch {
	case *inventoryCSV != "":
		source = &inventory.CSVSource{URL: *inventoryCSV}
	case *inventoryXLSX != "":
		source = &inventory.XLSXSource{Path: *inventoryXLSX}
	default:
		source, err = inventory.NewSourceFromEnv()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	worker := &shipment.Worker{OutDir: *outDir}
	switch {
	case *shipmentsFile != "":
		fr, err := shipment.NewFileResolver(*shipmentsFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		worker.Resolver = fr
	case len(shipmentPairs) > 0:
		sr, err := shipment.ParseShipmentPairs(shipmentPairs)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		worker.Resolver = sr
	default:
		if err := settings.Validate(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		hr, err := shipment.NewHTTPResolver(settings.MarketplaceID, settings.MarketplacePW)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		worker.Resolver = hr
		worker.Documents = hr
	}

	sinks, mirror, err := workflow.SinksFromEnv(*outDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if mirror != nil {
		defer mirror.Close()
	}
	defer config.ClosePubSub()
	defer config.CloseRedis()

	runner := &workflow.Runner{
		WorkDir:         config.WorkDir(),
		CatalogPath:     *catalogPath,
		Settings:        *settings,
		Parser:          orders.NewParser(),
		Inventory:       source,
		CatalogPolicy:   config.CatalogMissingPolicy(),
		AllocationOrder: config.AllocationOrder(),
		Worker:          worker,
		Sinks:           sinks,
		Notifier:        workflow.NewNotifierFromEnv(),
		Guard:           workflow.NewGuardFromEnv(ctx),
		Mirror:          mirror,
	}

	summary, err := runner.Run(ctx, *zipPath)
	if summary != nil && summary.Prepared != nil {
		for _, f := range summary.Prepared.Failures {
			fmt.Printf("skipped %s: %s\n", f.File, f.Reason)
		}
	}
	if err != nil {
		var halt *models.ValidationHalt
		if errors.As(err, &halt) {
			fmt.Fprintf(os.Stderr, "halted at %s: %s\n", halt.Stage, halt.Reason)
			for _, item := range halt.Items {
				fmt.Fprintf(os.Stderr, "  %s\n", item)
			}
			os.Exit(1)
		}
		logger.WithFields(logrus.Fields{"field": "fulfillment-batch"}).Error(err)
		os.Exit(1)
	}

	fmt.Printf("confirmation form: %s\n", summary.Prepared.FormPath)
	for _, b := range summary.Prepared.Batches {
		fmt.Printf("shipment batch: %s\n", b)
	}
	if summary.Shipments.Documents != "" {
		fmt.Printf("shipment documents: %s\n", summary.Shipments.Documents)
	}
	for _, id := range summary.Shipments.Unresolved() {
		fmt.Printf("no shipment for order %s\n", id)
	}
	for _, o := range summary.Generated.Outputs {
		fmt.Printf("%s [%s]: %s\n", o.Report, o.Sink, o.Location)
	}
	for _, m := range summary.Generated.Mirrored {
		fmt.Printf("mirrored: %s\n", m)
	}
	fmt.Printf("units to reorder: %d\n", summary.Generated.TotalNeed)
}
