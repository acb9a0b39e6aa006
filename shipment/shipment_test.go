package shipment

import (
	"archive/zip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mmdatafocus/fulfillment_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/time/rate"
)

func portal(t *testing.T, logins *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(logins, 1)
		if r.FormValue("username") != "seller" || r.FormValue("password") != "pw" {
			http.Error(w, "bad credentials", http.StatusUnauthorized)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "SESSION", Value: "ok", Path: "/"})
	})
	mux.HandleFunc("/shipments", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("SESSION"); err != nil || c.Value != "ok" {
			http.Error(w, "login required", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("purchaseOrderSeq") {
		case "100":
			_, _ = w.Write([]byte(`{"shipments":[{"shipmentId":"S-100"},{"shipmentId":"S-old"}]}`))
		case "200":
			_, _ = w.Write([]byte(`{"shipments":[{"shipmentId":" S-200 "}]}`))
		case "boom":
			http.Error(w, "menu unavailable", http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte(`{"shipments":[]}`))
		}
	})
	mux.HandleFunc("/shipments/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("%PDF-1.4 " + r.URL.Path))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestResolver(t *testing.T, baseURL, user, pw string) *HTTPResolver {
	t.Helper()
	r, err := newHTTPResolver(baseURL, user, pw, 5*time.Second, rate.Inf)
	require.NoError(t, err)
	return r
}

func TestHTTPResolver_Resolve(t *testing.T) {
	var logins int32
	srv := portal(t, &logins)
	r := newTestResolver(t, srv.URL, "seller", "pw")
	ctx := context.Background()

	id, err := r.Resolve(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, "S-100", id, "first row wins")

	id, err = r.Resolve(ctx, "200")
	require.NoError(t, err)
	assert.Equal(t, "S-200", id)

	_, err = r.Resolve(ctx, "300")
	assert.True(t, errors.Is(err, utils.ErrShipmentNotFound))

	_, err = r.Resolve(ctx, "boom")
	require.Error(t, err)
	assert.False(t, errors.Is(err, utils.ErrShipmentNotFound))

	assert.Equal(t, int32(1), atomic.LoadInt32(&logins), "login happens once")
}

func TestHTTPResolver_BadCredentials(t *testing.T) {
	var logins int32
	srv := portal(t, &logins)
	_, err := newTestResolver(t, srv.URL, "seller", "wrong").Resolve(context.Background(), "100")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login")
}

func TestWorker_ResolvesOnBackgroundAndBundlesDocuments(t *testing.T) {
	var logins int32
	srv := portal(t, &logins)
	r := newTestResolver(t, srv.URL, "seller", "pw")
	out := t.TempDir()

	eta := time.Date(2024, 5, 20, 0, 0, 0, 0, time.Local)
	var progress []int
	w := &Worker{Resolver: r, Documents: r, OutDir: out, OnProgress: func(done, total int) {
		progress = append(progress, done)
	}}
	ch, err := w.Start(context.Background(), []OrderRef{
		{OrderId: "100", LogisticsCenter: "XRC01", ExpectedArrivalDate: &eta},
		{OrderId: "300", LogisticsCenter: "XRC02", ExpectedArrivalDate: &eta},
	})
	require.NoError(t, err)

	res := <-ch
	require.NoError(t, res.Err)
	assert.Equal(t, map[string]string{"100": "S-100", "300": ""}, res.Shipments)
	assert.Equal(t, []string{"300"}, res.Unresolved())
	assert.Equal(t, "S-100", res.ByDelivery["XRC01|2024-05-20"])
	assert.Equal(t, []int{1, 2}, progress)

	require.NotEmpty(t, res.Documents)
	zr, err := zip.OpenReader(res.Documents)
	require.NoError(t, err)
	defer zr.Close()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"shipment_label_document_S-100.pdf", "shipment_manifest_document_S-100.pdf"}, names)
	assert.NoDirExists(t, filepath.Join(out, "shipment"))
	assert.False(t, w.Busy())
}

func TestWorker_AbortsOnResolverFailure(t *testing.T) {
	var logins int32
	srv := portal(t, &logins)
	w := &Worker{Resolver: newTestResolver(t, srv.URL, "seller", "pw")}
	ch, err := w.Start(context.Background(), []OrderRef{{OrderId: "boom"}, {OrderId: "100"}})
	require.NoError(t, err)
	res := <-ch
	require.Error(t, res.Err)
	assert.NotContains(t, res.Shipments, "100")
}

type blockingResolver struct {
	release chan struct{}
}

func (b blockingResolver) Resolve(ctx context.Context, orderId string) (string, error) {
	select {
	case <-b.release:
		return "S-" + orderId, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestWorker_OneRunAtATime(t *testing.T) {
	br := blockingResolver{release: make(chan struct{})}
	w := &Worker{Resolver: br}
	ch, err := w.Start(context.Background(), []OrderRef{{OrderId: "1"}})
	require.NoError(t, err)
	assert.True(t, w.Busy())

	_, err = w.Start(context.Background(), []OrderRef{{OrderId: "2"}})
	assert.True(t, errors.Is(err, utils.ErrRunInFlight))

	close(br.release)
	res := <-ch
	require.NoError(t, res.Err)
	assert.Equal(t, "S-1", res.Shipments["1"])

	ch, err = w.Start(context.Background(), []OrderRef{{OrderId: "3"}})
	require.NoError(t, err)
	assert.Equal(t, "S-3", (<-ch).Shipments["3"])
}

func TestFileResolver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shipments.xlsx")
	f := excelize.NewFile()
	rows := [][]string{{"발주번호", "쉽먼트번호"}, {"100", "S-100"}, {"200", ""}}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	fr, err := NewFileResolver(path)
	require.NoError(t, err)
	assert.Equal(t, 1, fr.Len())
	id, err := fr.Resolve(context.Background(), "100")
	require.NoError(t, err)
	assert.Equal(t, "S-100", id)
	_, err = fr.Resolve(context.Background(), "200")
	assert.True(t, errors.Is(err, utils.ErrShipmentNotFound))
}

func TestParseShipmentPairs(t *testing.T) {
	r, err := ParseShipmentPairs([]string{"100=S-1", " 200 = S-2 "})
	require.NoError(t, err)
	assert.Equal(t, StaticResolver{"100": "S-1", "200": "S-2"}, r)

	_, err = ParseShipmentPairs([]string{"100"})
	assert.Error(t, err)
}
