package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHistoryCSVColumnContract(t *testing.T) {
	out, err := HistoryCSV([]HistoryRecord{
		{Product: "Widget Pro", Type: "IN", Qty: "5", InvoiceNo: "INV-7", Date: "2026-03-01", User: "admin@bym.local"},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "Product,Type,Qty,Invoice No,Date,User", lines[0])
	require.Equal(t, "Widget Pro,IN,5,INV-7,2026-03-01,admin@bym.local", lines[1])
}

func TestHistoryCSVQuotesEmbeddedCommas(t *testing.T) {
	out, err := HistoryCSV([]HistoryRecord{{Product: "Tee, Black", Type: "OUT", Qty: "-2"}})
	require.NoError(t, err)
	require.Contains(t, string(out), `"Tee, Black"`)
}

func TestHistoryCSVEmptyStillHasHeader(t *testing.T) {
	out, err := HistoryCSV(nil)
	require.NoError(t, err)
	require.Equal(t, "Product,Type,Qty,Invoice No,Date,User", strings.TrimSpace(string(out)))
}

func TestDashboardCSVColumnContract(t *testing.T) {
	out, err := DashboardCSV([]ProductRecord{
		{Name: "Mug", SKU: "MUG-1", Category: "Homeware", Unit: "pcs", CurrentQty: "400", AvgPrice: "2.10", StockValue: "840.00", MinStock: "50", Status: "OK"},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "Name,SKU,Category,Variant,Unit,Current Qty,Avg Price,Stock Value,Min Stock,Status", lines[0])
	require.Equal(t, "Mug,MUG-1,Homeware,,pcs,400,2.10,840.00,50,OK", lines[1])
}
