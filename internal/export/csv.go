// Package export serialises report data to CSV. Column sets are part of the
// API contract and must not change without versioning the download.
package export

import (
	"bytes"
	"encoding/csv"
	"io"
)

// HistoryRecord is one row of the stock history download.
type HistoryRecord struct {
	Product   string
	Type      string
	Qty       string
	InvoiceNo string
	Date      string
	User      string
}

// ProductRecord is one row of the dashboard download.
type ProductRecord struct {
	Name       string
	SKU        string
	Category   string
	Variant    string
	Unit       string
	CurrentQty string
	AvgPrice   string
	StockValue string
	MinStock   string
	Status     string
}

// HistoryCSV renders history records with the fixed history column set.
func HistoryCSV(records []HistoryRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteHistoryCSV(&buf, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteHistoryCSV streams history records to w.
func WriteHistoryCSV(w io.Writer, records []HistoryRecord) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Product", "Type", "Qty", "Invoice No", "Date", "User"}); err != nil {
		return err
	}
	for _, rec := range records {
		if err := writer.Write([]string{rec.Product, rec.Type, rec.Qty, rec.InvoiceNo, rec.Date, rec.User}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// DashboardCSV renders the product summary download.
func DashboardCSV(records []ProductRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteDashboardCSV(&buf, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteDashboardCSV streams product summary records to w.
func WriteDashboardCSV(w io.Writer, records []ProductRecord) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{"Name", "SKU", "Category", "Variant", "Unit", "Current Qty", "Avg Price", "Stock Value", "Min Stock", "Status"}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, rec := range records {
		row := []string{rec.Name, rec.SKU, rec.Category, rec.Variant, rec.Unit, rec.CurrentQty, rec.AvgPrice, rec.StockValue, rec.MinStock, rec.Status}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
