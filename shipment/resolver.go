package shipment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/utils"
	"github.com/xuri/excelize/v2"
	"golang.org/x/time/rate"
)

var logger = config.GetLogger()

// Resolver maps a purchase order to its marketplace shipment id.
// A missing shipment is reported as utils.ErrShipmentNotFound; any other error aborts the run.
type Resolver interface {
	Resolve(ctx context.Context, orderId string) (string, error)
}

// DocumentFetcher downloads the label and manifest of a shipment into dir.
type DocumentFetcher interface {
	FetchDocuments(ctx context.Context, shipmentId, dir string) error
}

// HTTPResolver talks to the seller-portal automation service. It logs in lazily on first use.
type HTTPResolver struct {
	BaseURL  string
	Username string
	Password string

	client  *http.Client
	limiter *rate.Limiter

	loginMu  sync.Mutex
	loggedIn bool
}

type searchResponse struct {
	Shipments []struct {
		ShipmentId string `json:"shipmentId"`
	} `json:"shipments"`
}

// NewHTTPResolver builds a resolver from SHIPMENT_API_BASE_URL, SHIPMENT_TIMEOUT_SEC and SHIPMENT_RATE_PER_SEC.
func NewHTTPResolver(username, password string) (*HTTPResolver, error) {
	baseURL := strings.TrimSpace(os.Getenv("SHIPMENT_API_BASE_URL"))
	if baseURL == "" {
		return nil, errors.New("SHIPMENT_API_BASE_URL is required")
	}
	timeout := time.Duration(config.IntFromEnv("SHIPMENT_TIMEOUT_SEC", 10)) * time.Second
	perSec := config.IntFromEnv("SHIPMENT_RATE_PER_SEC", 2)
	if perSec <= 0 {
		perSec = 1
	}
	return newHTTPResolver(baseURL, username, password, timeout, rate.Limit(perSec))
}

func newHTTPResolver(baseURL, username, password string, timeout time.Duration, limit rate.Limit) (*HTTPResolver, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &HTTPResolver{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Username: username,
		Password: password,
		client:   &http.Client{Timeout: timeout, Jar: jar},
		limiter:  rate.NewLimiter(limit, 1),
	}, nil
}

// SetCredentials swaps the portal account. The next request logs in again.
func (r *HTTPResolver) SetCredentials(username, password string) {
	r.loginMu.Lock()
	defer r.loginMu.Unlock()
	if username == r.Username && password == r.Password {
		return
	}
	r.Username = username
	r.Password = password
	r.loggedIn = false
}

func (r *HTTPResolver) ensureLogin(ctx context.Context) error {
	r.loginMu.Lock()
	defer r.loginMu.Unlock()
	if r.loggedIn {
		return nil
	}
	if r.Username == "" || r.Password == "" {
		return errors.New("marketplace credentials are not configured")
	}
	form := url.Values{"username": {r.Username}, "password": {r.Password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+"/login", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("marketplace login: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("marketplace login: status %d", resp.StatusCode)
	}
	r.loggedIn = true
	return nil
}

func (r *HTTPResolver) get(ctx context.Context, endpoint string) (*http.Response, error) {
	if err := r.ensureLogin(ctx); err != nil {
		return nil, err
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return r.client.Do(req)
}

func (r *HTTPResolver) Resolve(ctx context.Context, orderId string) (string, error) {
	params := url.Values{"purchaseOrderSeq": {orderId}}
	resp, err := r.get(ctx, r.BaseURL+"/shipments?"+params.Encode())
	if err != nil {
		return "", fmt.Errorf("shipment search %s: %w", orderId, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return "", utils.ErrShipmentNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("shipment search %s: status %d: %s", orderId, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("shipment search %s: %w", orderId, err)
	}
	if len(out.Shipments) == 0 || strings.TrimSpace(out.Shipments[0].ShipmentId) == "" {
		return "", utils.ErrShipmentNotFound
	}
	return strings.TrimSpace(out.Shipments[0].ShipmentId), nil
}

var documentKinds = []struct {
	path   string
	prefix string
}{
	{"pdf-label", "shipment_label_document"},
	{"pdf-manifest", "shipment_manifest_document"},
}

func (r *HTTPResolver) FetchDocuments(ctx context.Context, shipmentId, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, kind := range documentKinds {
		endpoint := fmt.Sprintf("%s/shipments/%s/%s", r.BaseURL, url.PathEscape(shipmentId), kind.path)
		if err := r.download(ctx, endpoint, filepath.Join(dir, fmt.Sprintf("%s_%s.pdf", kind.prefix, shipmentId))); err != nil {
			return fmt.Errorf("%s for %s: %w", kind.path, shipmentId, err)
		}
	}
	return nil
}

func (r *HTTPResolver) download(ctx context.Context, endpoint, path string) error {
	resp, err := r.get(ctx, endpoint)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// FileResolver looks shipment ids up in an operator-maintained workbook:
// order id in column A, shipment id in column B, first row is a header.
type FileResolver struct {
	byOrder map[string]string
}

func NewFileResolver(path string) (*FileResolver, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open shipment map: %w", err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("shipment map %s has no sheets", filepath.Base(path))
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read shipment map: %w", err)
	}
	m := map[string]string{}
	for r := 1; r < len(rows); r++ {
		orderId := utils.CellAt(rows, r, 0)
		shipmentId := utils.CellAt(rows, r, 1)
		if orderId == "" || shipmentId == "" {
			continue
		}
		m[orderId] = shipmentId
	}
	return &FileResolver{byOrder: m}, nil
}

func (r *FileResolver) Resolve(_ context.Context, orderId string) (string, error) {
	if id, ok := r.byOrder[orderId]; ok {
		return id, nil
	}
	return "", utils.ErrShipmentNotFound
}

// Len is the number of mapped orders.
func (r *FileResolver) Len() int {
	return len(r.byOrder)
}

// StaticResolver serves a fixed order to shipment map.
type StaticResolver map[string]string

func (r StaticResolver) Resolve(_ context.Context, orderId string) (string, error) {
	if id, ok := r[orderId]; ok {
		return id, nil
	}
	return "", utils.ErrShipmentNotFound
}

// ParseShipmentPairs reads "order=shipment" pairs.
func ParseShipmentPairs(pairs []string) (StaticResolver, error) {
	out := StaticResolver{}
	for _, p := range pairs {
		orderId, shipmentId, ok := strings.Cut(p, "=")
		orderId, shipmentId = strings.TrimSpace(orderId), strings.TrimSpace(shipmentId)
		if !ok || orderId == "" || shipmentId == "" {
			return nil, fmt.Errorf("invalid shipment pair %q, want order=shipment", p)
		}
		out[orderId] = shipmentId
	}
	return out, nil
}
