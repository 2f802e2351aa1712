// Package stats computes summary aggregates over the collected dataset.
package stats

import (
	"fmt"
	"io"
	"sort"

	"imovelscan/models"
)

// NeighborhoodCount pairs a neighborhood with its listing count.
type NeighborhoodCount struct {
	Neighborhood string
	Count        int
}

// Summary aggregates the dataset for the end-of-run report.
type Summary struct {
	Total            int
	ByOperation      map[string]int
	ByCategory       map[string]int
	TopNeighborhoods []NeighborhoodCount
	WithPrice        int
	AveragePrice     float64
	MedianPrice      float64
}

// Compute builds a summary from the record collection.
func Compute(records []*models.ListingRecord) *Summary {
	s := &Summary{
		Total:       len(records),
		ByOperation: make(map[string]int),
		ByCategory:  make(map[string]int),
	}

	neighborhoods := make(map[string]int)
	var prices []float64

	for _, rec := range records {
		if rec == nil {
			continue
		}
		if rec.Operation != "" {
			s.ByOperation[rec.Operation]++
		}
		if rec.Category != "" {
			s.ByCategory[rec.Category]++
		}
		if rec.Neighborhood != "" {
			neighborhoods[rec.Neighborhood]++
		}
		if rec.Price != nil {
			prices = append(prices, *rec.Price)
		}
	}

	s.TopNeighborhoods = topCounts(neighborhoods, 10)
	s.WithPrice = len(prices)
	if len(prices) > 0 {
		sort.Float64s(prices)
		var sum float64
		for _, p := range prices {
			sum += p
		}
		s.AveragePrice = sum / float64(len(prices))
		mid := len(prices) / 2
		if len(prices)%2 == 0 {
			s.MedianPrice = (prices[mid-1] + prices[mid]) / 2
		} else {
			s.MedianPrice = prices[mid]
		}
	}

	return s
}

func topCounts(counts map[string]int, limit int) []NeighborhoodCount {
	out := make([]NeighborhoodCount, 0, len(counts))
	for name, count := range counts {
		out = append(out, NeighborhoodCount{Neighborhood: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Neighborhood < out[j].Neighborhood
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Write prints the summary in the report layout.
func (s *Summary) Write(w io.Writer) {
	fmt.Fprintf(w, "  Total listings:  %d\n", s.Total)
	if len(s.ByOperation) > 0 {
		fmt.Fprintf(w, "  By operation:    %v\n", s.ByOperation)
	}
	if len(s.ByCategory) > 0 {
		fmt.Fprintf(w, "  By category:     %v\n", s.ByCategory)
	}
	if s.WithPrice > 0 {
		fmt.Fprintf(w, "  Priced listings: %d\n", s.WithPrice)
		fmt.Fprintf(w, "  Average price:   %.2f\n", s.AveragePrice)
		fmt.Fprintf(w, "  Median price:    %.2f\n", s.MedianPrice)
	}
	for i, nc := range s.TopNeighborhoods {
		if i == 0 {
			fmt.Fprintln(w, "  Top neighborhoods:")
		}
		fmt.Fprintf(w, "    %-20s %d\n", nc.Neighborhood, nc.Count)
	}
}
