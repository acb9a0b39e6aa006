package orders

import (
	"errors"
	"testing"
	"time"

	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/models"
	"github.com/mmdatafocus/fulfillment_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser(mode string) *Parser {
	return &Parser{Layout: models.DefaultLayout, PairMode: mode, TrackingDigits: 12}
}

func TestParseFile_AllPairs(t *testing.T) {
	dir := t.TempDir()
	file := writePurchaseOrder(t, dir, "po.xlsx", poFixture{orderId: "12345678", center: "XRC01", eta: "2024-05-20"})

	order, err := newTestParser(config.PairModeAll).ParseFile(file)
	require.NoError(t, err)

	require.Len(t, order.Lines, 3)
	assert.Equal(t, "12345678", order.OrderId)
	assert.Equal(t, "XRC01", order.LogisticsCenter)
	require.NotNil(t, order.ExpectedArrivalDate)
	assert.True(t, order.ExpectedArrivalDate.Equal(time.Date(2024, 5, 20, 0, 0, 0, 0, time.Local)))

	assert.Equal(t, models.ReturnContact{Name: "김담당", Phone: "010-1234-5678", Address: "경기도 이천시 물류로 1"}, order.ReturnContact)

	want := []struct {
		code, name, barcode string
		qty                 int
	}{
		{"1001", "테스트 상품 A", "R1001", 5},
		{"1002", "테스트 상품 B", "R1002", 3},
		{"1004", "테스트 상품 D", "R1004", 2},
	}
	for i, w := range want {
		l := order.Lines[i]
		assert.Equal(t, w.code, l.ProductCode)
		assert.Equal(t, w.name, l.ProductName)
		assert.Equal(t, w.barcode, l.Barcode)
		assert.Equal(t, w.qty, l.ConfirmedQuantity)
		assert.Equal(t, "XRC01", l.LogisticsCenter)
	}

	for _, l := range order.Lines {
		assert.Equal(t, order.OrderId, l.OrderId, "order id must be identical across a file")
		assert.NotEmpty(t, l.OrderId)
		assert.Equal(t, order.TrackingNumber, l.TrackingNumber)
	}
	assert.Len(t, order.TrackingNumber, 12)
}

func TestParseFile_FirstPairOnly(t *testing.T) {
	file := writePurchaseOrder(t, t.TempDir(), "po.xlsx", poFixture{orderId: "777", center: "C1", eta: "2024-05-20"})

	order, err := newTestParser(config.PairModeFirst).ParseFile(file)
	require.NoError(t, err)
	require.Len(t, order.Lines, 1)
	assert.Equal(t, "R1001", order.Lines[0].Barcode)
}

func TestParseFile_UnparsableDateIsNotFatal(t *testing.T) {
	file := writePurchaseOrder(t, t.TempDir(), "po.xlsx", poFixture{orderId: "1", center: "C1", eta: "미정"})

	order, err := newTestParser(config.PairModeAll).ParseFile(file)
	require.NoError(t, err)
	assert.Nil(t, order.ExpectedArrivalDate)
	assert.NotEmpty(t, order.Lines)
}

func TestParseFile_Failures(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		name string
		fx   poFixture
	}{
		{"no-label.xlsx", poFixture{orderId: "1", center: "C1", eta: "2024-05-20", noLabel: true}},
		{"blank-id.xlsx", poFixture{orderId: "", center: "C1", eta: "2024-05-20"}},
		{"no-barcode-col.xlsx", poFixture{orderId: "1", center: "C1", eta: "2024-05-20", noBCCol: true}},
	}
	for _, c := range cases {
		file := writePurchaseOrder(t, dir, c.name, c.fx)
		_, err := newTestParser(config.PairModeAll).ParseFile(file)
		require.Error(t, err, c.name)
		var pf *models.ParseFailure
		require.True(t, errors.As(err, &pf), c.name)
		assert.Equal(t, c.name, pf.File)
		assert.Contains(t, err.Error(), c.name)
	}
}

func TestParseAll_CollectsFailuresAndSharesTracking(t *testing.T) {
	dir := t.TempDir()
	a := writePurchaseOrder(t, dir, "a.xlsx", poFixture{orderId: "100", center: "XRC01", eta: "2024-05-20"})
	b := writePurchaseOrder(t, dir, "b.xlsx", poFixture{orderId: "200", center: "XRC01", eta: "2024-05-20"})
	c := writePurchaseOrder(t, dir, "c.xlsx", poFixture{orderId: "300", center: "XRC02", eta: "2024-05-20"})
	bad := writePurchaseOrder(t, dir, "bad.xlsx", poFixture{orderId: "1", center: "C1", eta: "2024-05-20", noLabel: true})

	parsed, failures := newTestParser(config.PairModeAll).ParseAll([]string{c, bad, b, a})
	require.Len(t, parsed, 3)
	require.Len(t, failures, 1)
	assert.Equal(t, "bad.xlsx", failures[0].File)

	assert.Equal(t, "a.xlsx", parsed[0].File)
	assert.Equal(t, parsed[0].TrackingNumber, parsed[1].TrackingNumber, "same date and center share a delivery")
	for _, l := range parsed[1].Lines {
		assert.Equal(t, parsed[0].TrackingNumber, l.TrackingNumber)
	}
	assert.Equal(t, []string{"100", "200", "300"}, models.DistinctOrderIds(models.AllLines(parsed)))
}

func TestParseFile_DateTypedArrivalCell(t *testing.T) {
	at := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	for _, numFmt := range []int{14, 22} {
		file := writePurchaseOrder(t, t.TempDir(), "po.xlsx", poFixture{orderId: "1", center: "XRC01", etaTime: at, etaFmt: numFmt})

		order, err := newTestParser(config.PairModeAll).ParseFile(file)
		require.NoError(t, err)
		require.NotNil(t, order.ExpectedArrivalDate, "numFmt %d", numFmt)
		assert.Equal(t, "2024-05-20", utils.FormatDate(order.ExpectedArrivalDate), "numFmt %d", numFmt)
		for _, l := range order.Lines {
			assert.Equal(t, "2024-05-20", utils.FormatDate(l.ExpectedArrivalDate))
		}
	}
}

func TestParseFile_BarcodeAfterBlankRowDoesNotPair(t *testing.T) {
	items := []itemRow{
		{code: "1001", name: "테스트 상품 A", qty: "5"},
		{name: ""},
		{name: "R1001"},
		{code: "1002", name: "테스트 상품 B", qty: "3"},
		{name: "R1002"},
	}
	file := writePurchaseOrder(t, t.TempDir(), "po.xlsx", poFixture{orderId: "1", center: "C1", eta: "2024-05-20", items: items})

	order, err := newTestParser(config.PairModeAll).ParseFile(file)
	require.NoError(t, err)
	require.Len(t, order.Lines, 1)
	assert.Equal(t, "1002", order.Lines[0].ProductCode)
	assert.Equal(t, "R1002", order.Lines[0].Barcode)
}
