package product

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/bym-inventory/bym-inventory/internal/shared"
)

const validHeader = "name,sku,category,variant,unit,minStock,openingQty,openingPrice\n"

func TestParseBulkCSVHappyPath(t *testing.T) {
	csv := validHeader +
		"Widget Pro,WID-001,Gadgets,Blue,pcs,10,100,25.50\n" +
		"Widget Mini,WID-002,Gadgets,,pcs,5,0,0\n"
	inputs, rowErrors, err := ParseBulkCSV(strings.NewReader(csv), 100)
	require.NoError(t, err)
	require.Empty(t, rowErrors)
	require.Len(t, inputs, 2)
	require.Equal(t, "Widget Pro", inputs[0].Name)
	require.Equal(t, "WID-001", inputs[0].SKU)
	require.Equal(t, int64(10), inputs[0].MinStock)
	require.Equal(t, int64(100), inputs[0].OpeningQty)
	require.True(t, inputs[0].OpeningPrice.Equal(decimal.RequireFromString("25.50")))
}

func TestParseBulkCSVRejectsWrongHeader(t *testing.T) {
	_, _, err := ParseBulkCSV(strings.NewReader("sku,name\nA,B\n"), 100)
	require.Equal(t, shared.KindValidation, shared.KindOf(err))

	_, _, err = ParseBulkCSV(strings.NewReader(""), 100)
	require.Equal(t, shared.KindValidation, shared.KindOf(err))
}

func TestParseBulkCSVCollectsRowErrors(t *testing.T) {
	csv := validHeader +
		"Good,OK-1,,,pcs,1,1,1.00\n" +
		"Bad MinStock,BAD-1,,,pcs,-1,1,1.00\n" +
		"Bad Qty,BAD-2,,,pcs,1,x,1.00\n" +
		"Bad Price,BAD-3,,,pcs,1,1,-2\n"
	inputs, rowErrors, err := ParseBulkCSV(strings.NewReader(csv), 100)
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	require.Len(t, rowErrors, 3)
	require.Equal(t, 3, rowErrors[0].Row)
	require.Equal(t, 4, rowErrors[1].Row)
	require.Equal(t, 5, rowErrors[2].Row)
}

func TestParseBulkCSVEnforcesRowLimit(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(validHeader)
	for i := 0; i < 4; i++ {
		sb.WriteString("P,SKU-")
		sb.WriteByte(byte('0' + i))
		sb.WriteString(",,,pcs,1,1,1\n")
	}
	_, _, err := ParseBulkCSV(strings.NewReader(sb.String()), 3)
	require.Equal(t, shared.KindValidation, shared.KindOf(err))
}

func TestBulkTemplateRoundTrips(t *testing.T) {
	inputs, rowErrors, err := ParseBulkCSV(strings.NewReader(string(BulkTemplate())), 10)
	require.NoError(t, err)
	require.Empty(t, rowErrors)
	require.Len(t, inputs, 1)
}
