package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/malbeclabs/stakes/stakes/pkg/engine"
)

// WriteDistributionCSV writes the cumulative curves of res for external plotting: one row per
// population step from 0 to 1, with the measured curves followed by the reference curves.
func WriteDistributionCSV(w io.Writer, res *engine.Result) error {
	curves := []engine.Distribution{res.Including.Distribution, res.Excluding.Distribution}
	header := []string{"population", "stake_including", "stake_excluding"}
	for _, ref := range res.References {
		curves = append(curves, ref.Distribution)
		header = append(header, "stake_"+string(ref.Kind))
	}

	n := res.Including.Distribution.Len()
	if n == 0 {
		return errors.New("result has no distribution")
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for k := 0; k <= n; k++ {
		pop := float64(k) / float64(n)
		record := make([]string, 0, len(header))
		record = append(record, formatFraction(pop))
		for _, c := range curves {
			record = append(record, formatFraction(c.StakeAt(pop)))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func formatFraction(f float64) string {
	return strconv.FormatFloat(f, 'f', 6, 64)
}
