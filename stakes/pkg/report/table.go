package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/malbeclabs/stakes/stakes/pkg/engine"
	"github.com/malbeclabs/stakes/stakes/pkg/history"
)

const navaxPerAVAX = 1e9

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetHeader(header)
	return table
}

// WriteSummary renders the headline measurements of res: stake totals, GINI and the Nakamoto
// coefficient per threshold for both weight kinds, followed by the reference curves.
func WriteSummary(w io.Writer, res *engine.Result) {
	fmt.Fprintf(w, "Snapshot: %s\n", res.Date.Format(time.DateOnly))
	if res.Grouped {
		fmt.Fprintf(w, "Validators: %d, Entities: %d\n", res.Validators, res.Units)
	} else {
		fmt.Fprintf(w, "Validators: %d\n", res.Validators)
	}
	if res.Group.Degraded > 0 {
		fmt.Fprintf(w, "Validators without reward addresses: %d\n", res.Group.Degraded)
	}
	if res.MissingGeo > 0 {
		fmt.Fprintf(w, "Validators without geolocation: %d\n", res.MissingGeo)
	}

	table := newTable(w, []string{"Metric", "Including\ndelegations", "Excluding\ndelegations"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.Append([]string{"Total stake (AVAX)", FormatAVAX(res.Including.Total), FormatAVAX(res.Excluding.Total)})
	table.Append([]string{"GINI", formatGini(res.Including.Gini), formatGini(res.Excluding.Gini)})
	for _, p := range res.Including.Nakamoto {
		excl, _ := res.Excluding.NakamotoAt(p.Threshold)
		table.Append([]string{
			"Nakamoto " + formatPercent(p.Threshold, 0),
			strconv.Itoa(p.Count),
			strconv.Itoa(excl),
		})
	}
	table.Render()

	if len(res.References) == 0 {
		return
	}
	refs := newTable(w, []string{"Reference", "GINI"})
	refs.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, ref := range res.References {
		refs.Append([]string{string(ref.Kind), formatGini(ref.Gini)})
	}
	refs.Render()
}

// WriteTop renders the n largest units of res by total stake.
func WriteTop(w io.Writer, res *engine.Result, n int) {
	table := newTable(w, []string{"Rank", "Owner", "Validators", "Stake\n(AVAX)", "Own stake\n(AVAX)", "Share", "Cumulative"})
	var cumulative uint64
	for i, e := range res.Ranked {
		if i >= n {
			break
		}
		cumulative += e.TotalWeight
		table.Append([]string{
			strconv.Itoa(i + 1),
			owner(e),
			strconv.Itoa(e.ValidatorCount()),
			FormatAVAX(e.TotalWeight),
			FormatAVAX(e.Weight),
			formatShare(e.TotalWeight, res.Including.Total),
			formatShare(cumulative, res.Including.Total),
		})
	}
	table.Render()
}

// WriteConcentration renders the infrastructure breakdown of a controlling set.
func WriteConcentration(w io.Writer, threshold float64, c engine.Concentration) {
	var share float64
	var validators int
	for _, e := range c.Entities {
		share += e.Share
		validators += e.Validators
	}
	fmt.Fprintf(w, "Nakamoto %s set: %d entities control %s of stake with %d validators\n",
		formatPercent(threshold, 0), len(c.Entities), formatPercent(share, 1), validators)
	fmt.Fprintf(w, "Countries: %d, ASNs: %d, entities sharing an ASN: %d\n", len(c.Countries), len(c.ASNs), c.EntitiesSharingASN)

	table := newTable(w, []string{"Rank", "Owner", "Share", "Validators", "Countries", "ASNs", "Subnets"})
	for _, e := range c.Entities {
		table.Append([]string{
			strconv.Itoa(e.Rank),
			e.Address,
			formatPercent(e.Share, 2),
			strconv.Itoa(e.Validators),
			strings.Join(e.Countries, ", "),
			strings.Join(e.ASNs, ", "),
			strconv.Itoa(len(e.Subnets)),
		})
	}
	table.Render()

	if len(c.SharedASNs) == 0 && len(c.SharedSubnet) == 0 {
		return
	}
	shared := newTable(w, []string{"Shared", "Value", "Ranks"})
	for _, o := range c.SharedASNs {
		shared.Append([]string{"ASN", o.Value, formatRanks(o.Ranks)})
	}
	for _, o := range c.SharedSubnet {
		shared.Append([]string{"Subnet", o.Value, formatRanks(o.Ranks)})
	}
	shared.Render()
}

// DatedConcentration is the controlling set breakdown of one snapshot.
type DatedConcentration struct {
	Date          time.Time
	Concentration engine.Concentration
}

// WriteConcentrationHistory renders one overview line per snapshot for a controlling set.
func WriteConcentrationHistory(w io.Writer, threshold float64, rows []DatedConcentration) {
	n := "N" + formatPercent(threshold, 0)
	table := newTable(w, []string{"Date", n + " entities", n + " validators", "Countries", "ASNs", "Sharing an ASN", "Stake"})
	for _, r := range rows {
		var share float64
		var validators int
		for _, e := range r.Concentration.Entities {
			share += e.Share
			validators += e.Validators
		}
		table.Append([]string{
			r.Date.Format(time.DateOnly),
			strconv.Itoa(len(r.Concentration.Entities)),
			strconv.Itoa(validators),
			strconv.Itoa(len(r.Concentration.Countries)),
			strconv.Itoa(len(r.Concentration.ASNs)),
			strconv.Itoa(r.Concentration.EntitiesSharingASN),
			formatPercent(share, 1),
		})
	}
	table.Render()
}

// WriteHistory renders one line per stored snapshot.
func WriteHistory(w io.Writer, rows []history.Row) {
	var thresholds []float64
	if len(rows) > 0 {
		for _, p := range rows[0].NakamotoIncluding {
			thresholds = append(thresholds, p.Threshold)
		}
	}
	header := []string{"Date", "Validators", "Units", "GINI\nincl", "GINI\nexcl"}
	for _, t := range thresholds {
		header = append(header, "N"+formatPercent(t, 0)+"\nincl")
	}
	for _, t := range thresholds {
		header = append(header, "N"+formatPercent(t, 0)+"\nexcl")
	}

	table := newTable(w, header)
	for _, r := range rows {
		line := []string{
			r.Date.Format(time.DateOnly),
			strconv.Itoa(r.Validators),
			strconv.Itoa(r.Units),
			formatGini(r.GiniIncluding),
			formatGini(r.GiniExcluding),
		}
		for _, t := range thresholds {
			line = append(line, nakamotoCell(r.NakamotoIncluding, t))
		}
		for _, t := range thresholds {
			line = append(line, nakamotoCell(r.NakamotoExcluding, t))
		}
		table.Append(line)
	}
	table.Render()
}

// FormatAVAX renders a nAVAX amount in whole AVAX with two decimals.
func FormatAVAX(navax uint64) string {
	return strconv.FormatFloat(float64(navax)/navaxPerAVAX, 'f', 2, 64)
}

func owner(e engine.Entity) string {
	if len(e.Addresses) == 0 {
		if len(e.Members) > 0 {
			return e.Members[0].ID
		}
		return ""
	}
	if len(e.Addresses) == 1 {
		return e.Addresses[0]
	}
	return fmt.Sprintf("%s (+%d)", e.Addresses[0], len(e.Addresses)-1)
}

func nakamotoCell(points []engine.NakamotoPoint, threshold float64) string {
	for _, p := range points {
		if p.Threshold == threshold {
			return strconv.Itoa(p.Count)
		}
	}
	return "-"
}

func formatRanks(ranks []int) string {
	parts := make([]string, len(ranks))
	for i, r := range ranks {
		parts[i] = strconv.Itoa(r)
	}
	return strings.Join(parts, ", ")
}

func formatGini(g float64) string {
	return strconv.FormatFloat(g, 'f', 4, 64)
}

func formatShare(part, total uint64) string {
	if total == 0 {
		return "-"
	}
	return formatPercent(float64(part)/float64(total), 2)
}

func formatPercent(f float64, decimals int) string {
	return strconv.FormatFloat(f*100, 'f', decimals, 64) + "%"
}
