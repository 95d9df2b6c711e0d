package product

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bym-inventory/bym-inventory/internal/shared"
)

// bulkHeader is the required first row of an upload, in order.
var bulkHeader = []string{"name", "sku", "category", "variant", "unit", "minStock", "openingQty", "openingPrice"}

// RowError reports a rejected upload row. Row numbers are 1-based and
// include the header, matching what the user sees in a spreadsheet.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// BulkTemplate returns the downloadable CSV template.
func BulkTemplate() []byte {
	return []byte(strings.Join(bulkHeader, ",") + "\n" +
		"Widget Pro,WID-001,Gadgets,Blue,pcs,10,100,25.50\n")
}

// ParseBulkCSV reads an upload into create inputs plus per-row errors.
// Identifier cells are NFC-normalized so spreadsheet exports with
// decomposed accents do not create lookalike SKUs.
func ParseBulkCSV(r io.Reader, maxRows int) ([]CreateInput, []RowError, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, shared.ValidationError("file", "file is empty or not a CSV")
	}
	if err := checkHeader(header); err != nil {
		return nil, nil, err
	}

	var inputs []CreateInput
	var rowErrors []RowError
	row := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			rowErrors = append(rowErrors, RowError{Row: row, Message: "malformed CSV row"})
			continue
		}
		if maxRows > 0 && len(inputs) >= maxRows {
			return nil, nil, shared.ValidationError("file", fmt.Sprintf("upload exceeds the %d row limit", maxRows))
		}
		in, rowErr := parseBulkRow(record, row)
		if rowErr != nil {
			rowErrors = append(rowErrors, *rowErr)
			continue
		}
		inputs = append(inputs, in)
	}
	return inputs, rowErrors, nil
}

func checkHeader(header []string) error {
	if len(header) != len(bulkHeader) {
		return shared.ValidationError("file", "header must be: "+strings.Join(bulkHeader, ","))
	}
	for i, col := range header {
		if shared.NormalizeIdentifier(col) != bulkHeader[i] {
			return shared.ValidationError("file", "header must be: "+strings.Join(bulkHeader, ","))
		}
	}
	return nil
}

func parseBulkRow(record []string, row int) (CreateInput, *RowError) {
	if len(record) != len(bulkHeader) {
		return CreateInput{}, &RowError{Row: row, Message: fmt.Sprintf("expected %d columns, got %d", len(bulkHeader), len(record))}
	}
	in := CreateInput{
		Name:     shared.NormalizeIdentifier(record[0]),
		SKU:      shared.NormalizeIdentifier(record[1]),
		Category: shared.NormalizeIdentifier(record[2]),
		Variant:  shared.NormalizeIdentifier(record[3]),
		Unit:     shared.NormalizeIdentifier(record[4]),
	}
	minStock, err := strconv.ParseInt(strings.TrimSpace(record[5]), 10, 64)
	if err != nil || minStock < 0 {
		return CreateInput{}, &RowError{Row: row, Message: "minStock must be a non-negative integer"}
	}
	in.MinStock = minStock

	openingQty, err := strconv.ParseInt(strings.TrimSpace(record[6]), 10, 64)
	if err != nil || openingQty < 0 {
		return CreateInput{}, &RowError{Row: row, Message: "openingQty must be a non-negative integer"}
	}
	in.OpeningQty = openingQty

	openingPrice, err := decimal.NewFromString(strings.TrimSpace(record[7]))
	if err != nil || openingPrice.IsNegative() {
		return CreateInput{}, &RowError{Row: row, Message: "openingPrice must be a non-negative number"}
	}
	in.OpeningPrice = openingPrice

	return in, nil
}
