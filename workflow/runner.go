package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mmdatafocus/fulfillment_backend/allocation"
	"github.com/mmdatafocus/fulfillment_backend/archive"
	"github.com/mmdatafocus/fulfillment_backend/catalog"
	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/inventory"
	"github.com/mmdatafocus/fulfillment_backend/models"
	"github.com/mmdatafocus/fulfillment_backend/orders"
	"github.com/mmdatafocus/fulfillment_backend/reports"
	"github.com/mmdatafocus/fulfillment_backend/shipment"
	"github.com/mmdatafocus/fulfillment_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var logger = config.GetLogger()

var tracer = otel.Tracer("fulfillment/workflow")

// Runner drives one fulfillment run through its three phases:
// Prepare (validate everything, write the confirmation form), Resolve (shipment lookups on the
// worker) and Generate (allocate stock and emit the reports).
type Runner struct {
	WorkDir         string
	CatalogPath     string
	Settings        config.Settings
	Parser          *orders.Parser
	Inventory       inventory.Source
	CatalogPolicy   string
	AllocationOrder string
	Worker          *shipment.Worker
	Sinks           []reports.Sink
	Notifier        Notifier
	Guard           Guard

	// Mirror uploads the confirmation form, batch sheets and document bundle when set.
	Mirror *utils.GCSUploader

	Now func() time.Time
}

// Prepared is the state carried from Prepare into the later phases.
type Prepared struct {
	RunId      string                `json:"run_id"`
	Stamp      string                `json:"stamp"`
	Archive    *archive.Result       `json:"archive"`
	Orders     []models.ParsedOrder  `json:"-"`
	Failures   []models.ParseFailure `json:"failures"`
	FormPath   string                `json:"form_path"`
	Batches    []string              `json:"batches"`
	Registered []models.CatalogEntry `json:"registered,omitempty"`
}

// Generated is the outcome of the Generate phase.
type Generated struct {
	Allocations []models.Allocation `json:"-"`
	Shortfalls  []models.Allocation `json:"-"`
	TotalNeed   int                 `json:"total_need"`
	Outputs     []reports.Output    `json:"outputs"`
	Mirrored    []string            `json:"mirrored,omitempty"`
}

// Summary is everything a completed run produced.
type Summary struct {
	Prepared  *Prepared       `json:"prepared"`
	Shipments shipment.Result `json:"shipments"`
	Generated *Generated      `json:"generated"`
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) guardKey() string {
	if bn := strings.NewReplacer("-", "", " ", "").Replace(r.Settings.BusinessNumber); bn != "" {
		return bn
	}
	return "default"
}

func (r *Runner) notify(ctx context.Context, kind, message string, items []string) {
	if r.Notifier == nil {
		return
	}
	runId, _ := utils.GetRunIdFromContext(ctx)
	r.Notifier.Notify(ctx, config.NotificationMessage{
		RunId:          runId,
		BusinessNumber: r.Settings.BusinessNumber,
		Kind:           kind,
		Message:        message,
		Items:          items,
		OccurredAt:     r.now(),
	})
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Prepare unpacks the archive, parses the pending orders and runs both gates.
// Nothing is written outside the unpack directory until the catalog and inventory gates pass.
func (r *Runner) Prepare(ctx context.Context, zipPath string) (p *Prepared, err error) {
	ctx, runId := utils.EnsureRunId(ctx)
	ctx, span := tracer.Start(ctx, "workflow.Prepare", trace.WithAttributes(
		attribute.String("run.id", runId),
		attribute.String("archive", filepath.Base(zipPath)),
	))
	defer func() { endSpan(span, err) }()

	p, err = r.prepare(ctx, runId, zipPath)
	var halt *models.ValidationHalt
	if errors.As(err, &halt) {
		r.notify(ctx, NotifyHalt, halt.Stage+": "+halt.Reason, halt.Items)
	}
	if p != nil {
		span.SetAttributes(attribute.Int("orders", len(p.Orders)), attribute.Int("failures", len(p.Failures)))
	}
	return p, err
}

func (r *Runner) prepare(ctx context.Context, runId, zipPath string) (*Prepared, error) {
	businessNumber := strings.TrimSpace(r.Settings.BusinessNumber)
	if businessNumber == "" {
		return nil, &models.ValidationHalt{Stage: models.HaltStageInventory, Reason: "business number is not configured"}
	}

	created, err := catalog.EnsureTemplate(r.CatalogPath)
	if err != nil {
		return nil, err
	}
	if created {
		logger.WithFields(logrus.Fields{"path": r.CatalogPath}).Info("created empty product catalog")
	}

	stamp := utils.RunTimestamp(r.now())
	p := &Prepared{RunId: runId, Stamp: stamp}
	p.Archive, err = archive.Normalize(zipPath, filepath.Join(r.WorkDir, "unzipped_"+stamp), r.Parser.Layout)
	if err != nil {
		return nil, fmt.Errorf("normalize archive: %w", err)
	}
	p.Failures = append(p.Failures, p.Archive.Failures...)
	if len(p.Archive.Pending) == 0 {
		return p, &models.ValidationHalt{Stage: models.HaltStageArchive, Reason: utils.ErrNoPendingOrders.Error()}
	}

	var failures []models.ParseFailure
	p.Orders, failures = r.Parser.ParseAll(p.Archive.Pending)
	p.Failures = append(p.Failures, failures...)
	lines := models.AllLines(p.Orders)
	if len(lines) == 0 {
		return p, &models.ValidationHalt{Stage: models.HaltStageArchive, Reason: "no order lines could be parsed"}
	}

	cat, err := catalog.Load(r.CatalogPath)
	if err != nil {
		return p, err
	}
	res, err := catalog.Validate(lines, cat, r.CatalogPolicy)
	if res != nil && len(res.Registered) > 0 {
		p.Registered = res.Registered
		r.notify(ctx, NotifyRegistered, fmt.Sprintf("%d barcodes added to the product catalog", len(res.Registered)), res.Missing)
	}
	if err != nil {
		return p, err
	}

	snapshot, err := r.Inventory.Load(ctx, businessNumber)
	if err != nil {
		return p, err
	}
	barcodes := make([]string, 0, len(lines))
	for _, l := range lines {
		barcodes = append(barcodes, l.Barcode)
	}
	if err := inventory.RequireBarcodes(snapshot, barcodes); err != nil {
		return p, err
	}

	p.FormPath = filepath.Join(r.WorkDir, orders.FormFileName)
	if err := orders.WriteConfirmationForm(p.FormPath, p.Orders); err != nil {
		return p, err
	}
	p.Batches, err = reports.WriteShipmentBatches(r.WorkDir, p.Orders)
	if err != nil {
		return p, err
	}

	logger.WithFields(logrus.Fields{
		"run_id":   runId,
		"orders":   len(p.Orders),
		"lines":    len(lines),
		"failures": len(p.Failures),
		"form":     p.FormPath,
	}).Info("run prepared")
	return p, nil
}

// Resolve starts shipment resolution for the prepared orders on the worker.
func (r *Runner) Resolve(ctx context.Context, p *Prepared) (<-chan shipment.Result, error) {
	refs := shipment.RefsFromParsed(p.Orders)
	_, span := tracer.Start(ctx, "workflow.Resolve", trace.WithAttributes(
		attribute.String("run.id", p.RunId),
		attribute.Int("orders", len(refs)),
	))
	ch, err := r.Worker.Start(ctx, refs)
	endSpan(span, err)
	return ch, err
}

// Generate reads the operator-confirmed form back, allocates current stock and emits the reports.
func (r *Runner) Generate(ctx context.Context, p *Prepared, resolved shipment.Result) (g *Generated, err error) {
	ctx, span := tracer.Start(ctx, "workflow.Generate", trace.WithAttributes(attribute.String("run.id", p.RunId)))
	defer func() { endSpan(span, err) }()

	lines, err := orders.ReadConfirmationForm(p.FormPath)
	if err != nil {
		return nil, err
	}
	for i := range lines {
		if id := resolved.Shipments[lines[i].OrderId]; id != "" {
			lines[i].ShipmentId = id
		}
	}

	snapshot, err := r.Inventory.Load(ctx, strings.TrimSpace(r.Settings.BusinessNumber))
	if err != nil {
		return nil, err
	}
	cat, err := catalog.Load(r.CatalogPath)
	if err != nil {
		return nil, err
	}

	g = &Generated{}
	g.Allocations = allocation.Run(snapshot, lines, r.AllocationOrder)
	g.Shortfalls = allocation.Shortfalls(g.Allocations)
	g.TotalNeed = models.TotalNeed(g.Allocations)
	span.SetAttributes(attribute.Int("groups", len(g.Allocations)), attribute.Int("total_need", g.TotalNeed))

	tables := reports.BuildTables(g.Allocations, cat, r.Settings.BrandName)
	g.Outputs, err = reports.Emit(ctx, tables, r.Sinks, p.Stamp)
	if err != nil {
		r.notify(ctx, NotifyFailed, err.Error(), nil)
		return g, err
	}

	if r.Mirror != nil {
		files := append([]string{p.FormPath}, p.Batches...)
		if resolved.Documents != "" {
			files = append(files, resolved.Documents)
		}
		g.Mirrored = r.mirror(ctx, files)
	}

	locations := make([]string, 0, len(g.Outputs))
	for _, o := range g.Outputs {
		locations = append(locations, o.Location)
	}
	r.notify(ctx, NotifyFinished, fmt.Sprintf("reports ready, %d units to reorder", g.TotalNeed), locations)
	logger.WithFields(logrus.Fields{
		"run_id":     p.RunId,
		"groups":     len(g.Allocations),
		"shortfalls": len(g.Shortfalls),
		"total_need": g.TotalNeed,
		"outputs":    len(g.Outputs),
	}).Info("reports generated")
	return g, nil
}

// mirror uploads run artifacts. Upload failures are logged and skipped.
func (r *Runner) mirror(ctx context.Context, files []string) []string {
	var out []string
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		object, err := r.Mirror.UploadFile(ctx, file)
		if err != nil {
			config.LogError(logger, "workflow", "Runner.mirror", "upload artifact", filepath.Base(file), err)
			continue
		}
		out = append(out, fmt.Sprintf("gs://%s/%s", r.Mirror.Bucket, object))
	}
	return out
}

// Run executes all three phases in one go while holding the run guard.
func (r *Runner) Run(ctx context.Context, zipPath string) (*Summary, error) {
	ctx, runId := utils.EnsureRunId(ctx)
	release, err := r.Guard.Acquire(ctx, r.guardKey())
	if err != nil {
		return nil, err
	}
	defer release()

	s := &Summary{}
	s.Prepared, err = r.Prepare(ctx, zipPath)
	if err != nil {
		return s, err
	}

	ch, err := r.Resolve(ctx, s.Prepared)
	if err != nil {
		return s, err
	}
	s.Shipments = <-ch
	if s.Shipments.Err != nil {
		r.notify(ctx, NotifyFailed, s.Shipments.Err.Error(), nil)
		return s, s.Shipments.Err
	}
	r.notify(ctx, NotifyResolved, fmt.Sprintf("%d shipments resolved", len(s.Shipments.Shipments)-len(s.Shipments.Unresolved())), s.Shipments.Unresolved())

	s.Generated, err = r.Generate(ctx, s.Prepared, s.Shipments)
	if err != nil {
		return s, err
	}
	logger.WithFields(logrus.Fields{"run_id": runId}).Info("run finished")
	return s, nil
}
