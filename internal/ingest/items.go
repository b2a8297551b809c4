// backend-go/internal/ingest/items.go
package ingest

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/autoplan/backend-go/internal/domain"
)

// Item CSV columns. Only product_id is mandatory.
const (
	ColProductID        = "product_id"
	ColLocationID       = "location_id"
	ColSegment          = "segment"
	ColInventory        = "inventory"
	ColForecastQuantity = "forecast_quantity"
	ColSalesHistory     = "sales_history"
	ColPolicyOverrides  = "policy_overrides"
)

// ItemRow is one parsed item with its raw override document, kept as JSON so kind-scoped
// overrides survive the round trip to the database.
type ItemRow struct {
	domain.ItemRecord
	Overrides json.RawMessage
}

// ReadItemsCSV parses an item snapshot. Headers are matched case-insensitively;
// sales_history is a ';' or '|' separated list. Blank quantities stay nil so the
// engine can tell "no data" from zero. Rows without a product id are skipped with
// a warning.
func ReadItemsCSV(r io.Reader, comma rune) ([]ItemRow, error) {
	reader := csv.NewReader(r)
	if comma != 0 {
		reader.Comma = comma
	}
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	if _, ok := cols[ColProductID]; !ok {
		return nil, fmt.Errorf("CSV header is missing the %s column", ColProductID)
	}

	get := func(record []string, col string) string {
		idx, ok := cols[col]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var rows []ItemRow
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record on line %d: %w", line, err)
		}

		productID := get(record, ColProductID)
		if productID == "" {
			log.Warn().Int("line", line).Msg("Skipping item row without product_id")
			continue
		}

		row := ItemRow{ItemRecord: domain.ItemRecord{
			ItemID:     productID,
			LocationID: get(record, ColLocationID),
			Segment:    get(record, ColSegment),
		}}
		if row.InventoryQty, err = parseOptionalFloat(get(record, ColInventory)); err != nil {
			return nil, fmt.Errorf("line %d: invalid %s: %w", line, ColInventory, err)
		}
		if row.ForecastQty, err = parseOptionalFloat(get(record, ColForecastQuantity)); err != nil {
			return nil, fmt.Errorf("line %d: invalid %s: %w", line, ColForecastQuantity, err)
		}
		if row.SalesHistory, err = parseHistory(get(record, ColSalesHistory)); err != nil {
			return nil, fmt.Errorf("line %d: invalid %s: %w", line, ColSalesHistory, err)
		}
		if raw := get(record, ColPolicyOverrides); raw != "" {
			if !json.Valid([]byte(raw)) {
				return nil, fmt.Errorf("line %d: %s is not valid JSON", line, ColPolicyOverrides)
			}
			row.Overrides = json.RawMessage(raw)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseOptionalFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseHistory(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == '|' })
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
