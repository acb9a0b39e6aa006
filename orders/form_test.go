package orders

import (
	"path/filepath"
	"testing"

	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestConfirmationForm_WriteThenRead(t *testing.T) {
	dir := t.TempDir()
	file := writePurchaseOrder(t, dir, "po.xlsx", poFixture{orderId: "12345678", center: "XRC01", eta: "2024-05-20"})
	order, err := newTestParser(config.PairModeAll).ParseFile(file)
	require.NoError(t, err)

	form := filepath.Join(dir, FormFileName)
	require.NoError(t, WriteConfirmationForm(form, []models.ParsedOrder{*order}))

	f, err := excelize.OpenFile(form)
	require.NoError(t, err)
	header, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	assert.Equal(t, FormHeaders, header[0])
	assert.Equal(t, "김담당", header[1][13])
	assert.Equal(t, "010-1234-5678", header[1][14])
	assert.Equal(t, "20240520", header[1][20])
	for _, cell := range []string{"A2", "E2", "F2"} {
		styleID, err := f.GetCellStyle("Sheet1", cell)
		require.NoError(t, err)
		style, err := f.GetStyle(styleID)
		require.NoError(t, err)
		assert.Equal(t, 49, style.NumFmt, cell)
	}

	// operator edits confirmed quantities before upload
	require.NoError(t, f.SetCellValue("Sheet1", "I2", "4.9"))
	require.NoError(t, f.SetCellValue("Sheet1", "I3", "없음"))
	require.NoError(t, f.Save())
	require.NoError(t, f.Close())

	lines, err := ReadConfirmationForm(form)
	require.NoError(t, err)
	require.Len(t, lines, 3)

	assert.Equal(t, "12345678", lines[0].OrderId)
	assert.Equal(t, "R1001", lines[0].Barcode)
	assert.Equal(t, "1001", lines[0].ProductCode)
	assert.Equal(t, "XRC01", lines[0].LogisticsCenter)
	assert.Equal(t, 4, lines[0].ConfirmedQuantity)
	assert.Equal(t, 5, lines[0].OrderedQuantity)
	assert.Equal(t, 0, lines[1].ConfirmedQuantity)
	assert.Equal(t, 2, lines[2].ConfirmedQuantity)
	require.NotNil(t, lines[2].ExpectedArrivalDate)
	assert.Equal(t, "2024-05-20", lines[2].ExpectedArrivalDate.Format("2006-01-02"))
}

func TestReadConfirmationForm_MissingColumns(t *testing.T) {
	p := filepath.Join(t.TempDir(), "form.xlsx")
	f := excelize.NewFile()
	header := []string{FormColOrderId, FormColBarcode, "확정 수량"}
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &header))
	require.NoError(t, f.SaveAs(p))
	require.NoError(t, f.Close())

	_, err := ReadConfirmationForm(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), FormColConfirmedQty)
	assert.Contains(t, err.Error(), FormColCenter)
	assert.NotContains(t, err.Error(), FormColOrderId+",")
}
