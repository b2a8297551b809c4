// backend-go/internal/storage/export.go
package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/autoplan/backend-go/internal/domain"
)

const exportDateFormat = "2006-01-02"

var decisionHeader = []string{
	"decision_id", "item_id", "location_id", "kind", "method", "strategy", "horizon",
	"series", "periods", "order_quantity", "order_date", "expected_delivery",
	"fallback_kind", "warnings", "generated_at",
}

// WriteDecisionsCSV writes one row per decision. Series and periods are joined with ';'.
func WriteDecisionsCSV(w io.Writer, decisions []domain.Decision) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(decisionHeader); err != nil {
		return err
	}

	for _, d := range decisions {
		series := make([]string, len(d.Series))
		for i, v := range d.Series {
			series[i] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		periods := make([]string, len(d.Periods))
		for i, p := range d.Periods {
			periods[i] = p.Format(exportDateFormat)
		}

		var qty, orderDate, delivery, fallback string
		if o := d.Order; o != nil {
			qty = strconv.FormatFloat(o.Quantity, 'f', -1, 64)
			orderDate = o.OrderDate.Format(exportDateFormat)
			delivery = o.ExpectedDelivery.Format(exportDateFormat)
		}
		if d.Fallback != nil {
			fallback = string(d.Fallback.Kind)
		}

		row := []string{
			d.ID.String(), d.ItemID, d.LocationID, string(d.Kind), d.Method, d.Strategy,
			strconv.Itoa(d.Horizon), strings.Join(series, ";"), strings.Join(periods, ";"),
			qty, orderDate, delivery, fallback, strings.Join(d.Warnings, "; "),
			d.GeneratedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// Exporter uploads batch results to object storage.
type Exporter struct {
	store  ObjectStorage
	prefix string
}

func NewExporter(store ObjectStorage, prefix string) *Exporter {
	if prefix == "" {
		prefix = "exports/"
	}
	return &Exporter{store: store, prefix: prefix}
}

// Export writes decisions.csv and summary.json under <prefix><kind>/<date>/<runID>/ and
// returns the decisions key.
func (e *Exporter) Export(ctx context.Context, runID string, summary *domain.BatchSummary) (string, error) {
	base := fmt.Sprintf("%s%s/%s/%s/", e.prefix, summary.Kind, summary.StartedAt.Format(exportDateFormat), runID)

	var buf bytes.Buffer
	if err := WriteDecisionsCSV(&buf, summary.Decisions); err != nil {
		return "", fmt.Errorf("failed to encode decisions csv: %w", err)
	}
	csvKey := base + "decisions.csv"
	if err := e.store.UploadObject(ctx, csvKey, buf.Bytes(), "text/csv"); err != nil {
		return "", err
	}

	raw, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode summary: %w", err)
	}
	if err := e.store.UploadObject(ctx, base+"summary.json", raw, "application/json"); err != nil {
		return "", err
	}

	log.Info().
		Str("run_id", runID).
		Str("key", csvKey).
		Int("decisions", len(summary.Decisions)).
		Msg("Exported planning run")
	return csvKey, nil
}
