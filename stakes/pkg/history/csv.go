package history

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/malbeclabs/stakes/stakes/pkg/engine"
)

// WriteCSV writes rows with one Nakamoto column per threshold and weight kind. The thresholds
// of the first row determine the columns.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)

	var thresholds []float64
	if len(rows) > 0 {
		for _, p := range rows[0].NakamotoIncluding {
			thresholds = append(thresholds, p.Threshold)
		}
	}

	header := []string{"date", "grouped", "validators", "units", "total_including", "total_excluding", "gini_including", "gini_excluding"}
	for _, t := range thresholds {
		header = append(header, "nakamoto_including_"+formatThreshold(t))
	}
	for _, t := range thresholds {
		header = append(header, "nakamoto_excluding_"+formatThreshold(t))
	}
	for _, k := range engine.ReferenceKinds {
		header = append(header, "gini_"+string(k))
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, r := range rows {
		record := []string{
			r.Date.Format(time.DateOnly),
			strconv.FormatBool(r.Grouped),
			strconv.Itoa(r.Validators),
			strconv.Itoa(r.Units),
			strconv.FormatUint(r.TotalIncluding, 10),
			strconv.FormatUint(r.TotalExcluding, 10),
			formatFloat(r.GiniIncluding),
			formatFloat(r.GiniExcluding),
		}
		for _, t := range thresholds {
			record = append(record, nakamotoCell(r.NakamotoIncluding, t))
		}
		for _, t := range thresholds {
			record = append(record, nakamotoCell(r.NakamotoExcluding, t))
		}
		for _, k := range engine.ReferenceKinds {
			g, ok := r.References[k]
			if !ok {
				record = append(record, "")
				continue
			}
			record = append(record, formatFloat(g))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func nakamotoCell(points []engine.NakamotoPoint, threshold float64) string {
	for _, p := range points {
		if p.Threshold == threshold {
			return strconv.Itoa(p.Count)
		}
	}
	return ""
}

func formatThreshold(t float64) string {
	return strconv.FormatFloat(math.Round(t*1e4)/1e2, 'f', -1, 64)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 6, 64)
}
