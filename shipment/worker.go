package shipment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/models"
	"github.com/mmdatafocus/fulfillment_backend/utils"
	"github.com/sirupsen/logrus"
)

// OrderRef is what the resolver stage needs to know about one purchase order.
type OrderRef struct {
	OrderId             string
	LogisticsCenter     string
	ExpectedArrivalDate *time.Time
}

// RefsFromParsed returns one ref per distinct order id, in parse order.
func RefsFromParsed(parsed []models.ParsedOrder) []OrderRef {
	seen := map[string]bool{}
	var refs []OrderRef
	for _, o := range parsed {
		if seen[o.OrderId] {
			continue
		}
		seen[o.OrderId] = true
		refs = append(refs, OrderRef{OrderId: o.OrderId, LogisticsCenter: o.LogisticsCenter, ExpectedArrivalDate: o.ExpectedArrivalDate})
	}
	return refs
}

// Cache remembers the shipment last seen per delivery (center|date). It belongs to one run.
type Cache struct {
	mu    sync.Mutex
	byKey map[string]string
}

func NewCache() *Cache {
	return &Cache{byKey: map[string]string{}}
}

func CacheKey(center string, eta *time.Time) string {
	return center + "|" + utils.FormatDate(eta)
}

func (c *Cache) Put(key, shipmentId string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byKey[key] = shipmentId
}

func (c *Cache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.byKey[key]
	return v, ok
}

// Snapshot copies the cache contents.
func (c *Cache) Snapshot() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.byKey))
	for k, v := range c.byKey {
		out[k] = v
	}
	return out
}

// Result is delivered once per run when the worker finishes.
type Result struct {
	Shipments  map[string]string `json:"shipments"`
	ByDelivery map[string]string `json:"by_delivery"`
	Documents  string            `json:"documents,omitempty"`
	Err        error             `json:"-"`
}

// Unresolved lists order ids that came back without a shipment.
func (r Result) Unresolved() []string {
	var out []string
	for id, s := range r.Shipments {
		if s == "" {
			out = append(out, id)
		}
	}
	return out
}

// Progress reports done out of total orders.
type Progress func(done, total int)

// Worker resolves shipment ids on a single background goroutine. At most one run is active at a time.
type Worker struct {
	Resolver   Resolver
	Documents  DocumentFetcher
	OutDir     string
	OnProgress Progress

	busy atomic.Bool
}

// Busy reports whether a run is in flight.
func (w *Worker) Busy() bool {
	return w.busy.Load()
}

// Start launches resolution and returns the channel the single Result arrives on.
func (w *Worker) Start(ctx context.Context, refs []OrderRef) (<-chan Result, error) {
	if !w.busy.CompareAndSwap(false, true) {
		return nil, utils.ErrRunInFlight
	}
	done := make(chan Result, 1)
	go func() {
		res := w.run(ctx, refs)
		w.busy.Store(false)
		done <- res
		close(done)
	}()
	return done, nil
}

func (w *Worker) run(ctx context.Context, refs []OrderRef) Result {
	cache := NewCache()
	res := Result{Shipments: map[string]string{}}

	var docsDir string
	if w.Documents != nil {
		docsDir = filepath.Join(w.OutDir, "shipment")
	}

	for i, ref := range refs {
		if err := ctx.Err(); err != nil {
			res.Err = err
			break
		}
		shipmentId, err := w.Resolver.Resolve(ctx, ref.OrderId)
		if err != nil && !errors.Is(err, utils.ErrShipmentNotFound) {
			config.LogError(logger, "shipment", "Worker.run", "resolve", ref.OrderId, err)
			res.Err = fmt.Errorf("resolve order %s: %w", ref.OrderId, err)
			break
		}
		if shipmentId == "" {
			logger.WithFields(logrus.Fields{"order_id": ref.OrderId}).Warn("shipment not found")
		}
		res.Shipments[ref.OrderId] = shipmentId
		cache.Put(CacheKey(ref.LogisticsCenter, ref.ExpectedArrivalDate), shipmentId)

		if shipmentId != "" && docsDir != "" {
			if err := w.Documents.FetchDocuments(ctx, shipmentId, docsDir); err != nil {
				logger.WithFields(logrus.Fields{"shipment_id": shipmentId, "error": err.Error()}).Warn("document download failed")
			}
		}
		if w.OnProgress != nil {
			w.OnProgress(i+1, len(refs))
		}
	}
	res.ByDelivery = cache.Snapshot()

	if docsDir != "" && res.Err == nil {
		bundle, err := BundleDocuments(docsDir, w.OutDir, utils.RunTimestamp(time.Now()))
		if err != nil {
			config.LogError(logger, "shipment", "Worker.run", "bundle documents", docsDir, err)
		} else {
			res.Documents = bundle
			_ = os.RemoveAll(docsDir)
		}
	}

	logger.WithFields(logrus.Fields{
		"orders":     len(refs),
		"resolved":   len(res.Shipments) - len(res.Unresolved()),
		"unresolved": len(res.Unresolved()),
		"failed":     res.Err != nil,
	}).Info("shipment resolution finished")
	return res
}
