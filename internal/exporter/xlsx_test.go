package exporter

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"promogate/internal/promo"
)

func TestWriteCodesXLSX(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	codes := []promo.PromoCode{
		{Code: "LT-7K9M2XQ4", Type: promo.CodeTypeLifetime, CreatedAt: created},
		{Code: "MO-ABCDEFGH", Type: promo.CodeTypeMonthly, CreatedAt: created.Add(time.Hour)},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCodesXLSX(&buf, codes))

	workbook, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer workbook.Close()

	header, err := workbook.GetCellValue("Codes", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Code", header)

	rows, err := workbook.GetRows("Codes")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"Code", "Type", "Created At"}, rows[0])
	assert.Equal(t, "LT-7K9M2XQ4", rows[1][0])
	assert.Equal(t, "lifetime", rows[1][1])
	assert.Equal(t, "MO-ABCDEFGH", rows[2][0])
	assert.Equal(t, "monthly", rows[2][1])
}

func TestWriteCodesXLSXEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCodesXLSX(&buf, nil))

	workbook, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer workbook.Close()

	rows, err := workbook.GetRows("Codes")
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
