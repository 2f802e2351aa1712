package checkpoint

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"

	"imovelscan/models"
)

// Exporter mirrors the full dataset into a consumer-facing representation.
// Exports rewrite the whole file atomically on every snapshot.
type Exporter interface {
	Export(records []*models.ListingRecord) error
}

var csvHeader = []string{
	"code", "title", "category", "operation",
	"price", "original_price", "condo_fee", "iptu",
	"address", "neighborhood", "city", "state",
	"usable_area", "total_area",
	"bedrooms", "suites", "bathrooms", "parking_spots",
	"description", "features", "amenities", "image_urls",
	"url", "collected_at",
}

// CSVExporter writes the dataset as a single CSV table for the statistics
// and spreadsheet consumers.
type CSVExporter struct {
	path string
}

// NewCSVExporter builds an exporter targeting path.
func NewCSVExporter(path string) *CSVExporter {
	return &CSVExporter{path: path}
}

// Export rewrites the CSV file from the full record set.
func (e *CSVExporter) Export(records []*models.ListingRecord) error {
	return atomicWrite(e.path, func(w io.Writer) error {
		writer := csv.NewWriter(w)
		if err := writer.Write(csvHeader); err != nil {
			return err
		}
		for _, rec := range records {
			if err := writer.Write(csvRow(rec)); err != nil {
				return err
			}
		}
		writer.Flush()
		return writer.Error()
	})
}

func csvRow(rec *models.ListingRecord) []string {
	return []string{
		rec.Code,
		rec.Title,
		rec.Category,
		rec.Operation,
		floatField(rec.Price),
		floatField(rec.OriginalPrice),
		floatField(rec.CondoFee),
		floatField(rec.IPTU),
		rec.Address,
		rec.Neighborhood,
		rec.City,
		rec.State,
		floatField(rec.UsableArea),
		floatField(rec.TotalArea),
		intField(rec.Bedrooms),
		intField(rec.Suites),
		intField(rec.Bathrooms),
		intField(rec.ParkingSpots),
		rec.Description,
		strings.Join(rec.Features, "; "),
		strings.Join(rec.Amenities, "; "),
		strings.Join(rec.ImageURLs, "; "),
		rec.URL,
		rec.CollectedAt.Format(time.RFC3339),
	}
}

func floatField(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func intField(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

// JSONLExporter writes the dataset as newline-delimited JSON records.
type JSONLExporter struct {
	path string
}

// NewJSONLExporter builds an exporter targeting path.
func NewJSONLExporter(path string) *JSONLExporter {
	return &JSONLExporter{path: path}
}

// Export rewrites the JSONL file from the full record set.
func (e *JSONLExporter) Export(records []*models.ListingRecord) error {
	return atomicWrite(e.path, func(w io.Writer) error {
		buffered := bufio.NewWriter(w)
		encoder := json.NewEncoder(buffered)
		for _, rec := range records {
			if err := encoder.Encode(rec); err != nil {
				return err
			}
		}
		return buffered.Flush()
	})
}
