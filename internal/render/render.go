// Package render converts Result values into human-readable or machine-parseable
// output. Each format is a separate function; the top-level Render dispatcher
// selects based on the format string.
package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/derickschaefer/composite/internal/analyze"
	"github.com/derickschaefer/composite/internal/model"
	"github.com/derickschaefer/composite/internal/store"
	"github.com/derickschaefer/composite/internal/util"
)

// Format constants matching --format flag values.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
	FormatTSV   = "tsv"
	FormatMD    = "md"
)

// Render writes result to w in the specified format.
func Render(w io.Writer, result *model.Result, format string) error {
	switch format {
	case FormatJSON:
		return renderJSON(w, result)
	case FormatJSONL:
		return renderJSONL(w, result)
	case FormatCSV:
		return renderDelimited(w, result, ',')
	case FormatTSV:
		return renderDelimited(w, result, '\t')
	case FormatMD:
		return renderMarkdown(w, result)
	default:
		return renderTable(w, result)
	}
}

// RenderTo writes to stdout by default; if path is non-empty, writes to file.
func RenderTo(path string, result *model.Result, format string) error {
	if path == "" {
		return Render(os.Stdout, result, format)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()
	return Render(f, result, format)
}

// ─── JSON ─────────────────────────────────────────────────────────────────────

func renderJSON(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// ─── JSONL ────────────────────────────────────────────────────────────────────

// jsonlRow is a canonical JSONL record for series observations.
type jsonlRow struct {
	Date  string      `json:"date"`
	Value model.Value `json:"value"`
}

func renderJSONL(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	switch data := result.Data.(type) {
	case *model.Variable:
		for _, o := range data.Obs {
			if err := enc.Encode(jsonlRow{Date: util.FormatDate(o.Date), Value: o.Value}); err != nil {
				return err
			}
		}
		return nil
	case []model.Forecast:
		for _, f := range data {
			if err := enc.Encode(f); err != nil {
				return err
			}
		}
		return nil
	case []model.StationThresholds:
		for _, th := range data {
			if err := enc.Encode(th); err != nil {
				return err
			}
		}
		return nil
	default:
		return enc.Encode(result.Data)
	}
}

// ─── Table ────────────────────────────────────────────────────────────────────

func newTable(w io.Writer, header []string) *tablewriter.Table {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(header)
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAutoWrapText(false)
	return tw
}

func renderTable(w io.Writer, result *model.Result) error {
	switch data := result.Data.(type) {
	case *model.Variable:
		return renderSeriesTable(w, data)
	case []model.StationTables:
		for _, st := range data {
			for _, t := range st.Tables {
				renderContingencyTable(w, st.Station, t)
			}
		}
		return nil
	case []model.StationThresholds:
		return renderThresholdsTable(w, data)
	case []model.Forecast:
		return renderForecastTable(w, data)
	case model.PeriodReport:
		return renderFieldTable(w, [][]string{
			{"State", data.State},
			{"Stations", strconv.Itoa(data.Stations)},
			{"Common Period", data.Common.String()},
			{"Process Period", data.Process.String()},
		})
	case model.RunReport:
		return renderRunReport(w, data)
	case []store.RunSummary:
		return renderRunsTable(w, data)
	case []analyze.Report:
		return renderSummaryTable(w, data)
	case []store.BucketStats:
		tw := newTable(w, []string{"BUCKET", "ROWS", "BYTES"})
		for _, b := range data {
			tw.Append([]string{b.Name, strconv.Itoa(b.Count), strconv.FormatInt(b.Bytes, 10)})
		}
		tw.Render()
		return nil
	default:
		// Fallback: JSON
		return renderJSON(w, result)
	}
}

func renderSeriesTable(w io.Writer, v *model.Variable) error {
	tw := newTable(w, []string{"DATE", v.TypeSeries})
	tw.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})
	for _, o := range v.Obs {
		tw.Append([]string{util.FormatDate(o.Date), formatValue(o.Value)})
	}
	tw.Render()
	return nil
}

// renderContingencyTable prints counts and percentages with I categories as
// rows and D categories as columns.
func renderContingencyTable(w io.Writer, station string, t *model.Table) {
	labels := t.Categories.Labels()
	fmt.Fprintf(w, "%s  lag %d  %s  (%d pairs)\n", station, t.Lag, t.Period.Label(), t.Pairs)

	header := []string{"I \\ D"}
	for _, l := range labels {
		header = append(header, strings.ToUpper(l))
	}
	tw := newTable(w, header)
	for i, row := range t.Counts {
		cells := []string{labels[i]}
		for d, c := range row {
			cells = append(cells, fmt.Sprintf("%d (%s%%)", c, formatFloat(t.Pct[i][d])))
		}
		tw.Append(cells)
	}
	tw.Render()

	fmt.Fprintf(w, "D thresholds %s  I thresholds %s  r=%s p=%s  chi2=%s p=%s\n\n",
		joinFloats(t.DThresholds), joinFloats(t.IThresholds),
		formatValue(t.Stats.Pearson), formatValue(t.Stats.PearsonP),
		formatValue(t.Stats.ChiSquare), formatValue(t.Stats.ChiSquareP))
}

func renderThresholdsTable(w io.Writer, rows []model.StationThresholds) error {
	tw := newTable(w, []string{"STATION", "D TYPE", "D THRESHOLDS", "I TYPE", "I THRESHOLDS"})
	for _, r := range rows {
		tw.Append([]string{r.Station, r.DType, joinFloats(r.D), r.IType, joinFloats(r.I)})
	}
	tw.Render()
	return nil
}

func renderForecastTable(w io.Writer, fs []model.Forecast) error {
	n := model.ThreeCategories
	if len(fs) > 0 {
		n = fs[0].Categories
	}
	header := []string{"STATION", "LAG", "DATE", "PERIOD", "MODE"}
	for _, l := range n.Labels() {
		header = append(header, strings.ToUpper(l)+" %")
	}
	tw := newTable(w, header)
	for _, f := range fs {
		row := []string{f.Station, strconv.Itoa(f.Lag), util.FormatDate(f.Date), f.Period.Label(), f.Mode}
		for _, p := range f.Prob {
			row = append(row, formatFloat(p))
		}
		tw.Append(row)
	}
	tw.Render()
	return nil
}

func renderFieldTable(w io.Writer, rows [][]string) error {
	tw := newTable(w, []string{"FIELD", "VALUE"})
	tw.SetColWidth(80)
	for _, r := range rows {
		tw.Append(r)
	}
	tw.Render()
	return nil
}

func renderRunReport(w io.Writer, r model.RunReport) error {
	rows := [][]string{}
	if r.RunID != "" {
		rows = append(rows, []string{"Run ID", r.RunID})
	}
	rows = append(rows,
		[]string{"Name", r.Name},
		[]string{"State", r.State},
		[]string{"Process Period", r.Period.String()},
		[]string{"Analysis Interval", r.Interval},
		[]string{"Lags", joinInts(r.Lags)},
		[]string{"Stations", strconv.Itoa(r.Stations)},
		[]string{"Tables", strconv.Itoa(r.Tables)},
		[]string{"Files Written", strconv.Itoa(len(r.Files))},
	)
	if err := renderFieldTable(w, rows); err != nil {
		return err
	}
	if len(r.Forecasts) > 0 {
		fmt.Fprintln(w)
		return renderForecastTable(w, r.Forecasts)
	}
	return nil
}

func renderRunsTable(w io.Writer, runs []store.RunSummary) error {
	tw := newTable(w, []string{"ID", "NAME", "CREATED", "CATEGORIES", "INTERVAL", "PERIOD", "STATIONS"})
	for _, r := range runs {
		tw.Append([]string{
			shortID(r.ID),
			r.Name,
			r.CreatedAt.Format(time.RFC3339),
			strconv.Itoa(int(r.Categories)),
			r.Interval,
			r.Period.String(),
			strconv.Itoa(r.Stations),
		})
	}
	tw.Render()
	return nil
}

var summaryHeader = []string{"series", "type", "freq", "start", "end", "obs", "null_pct", "worst_year",
	"mean", "std", "min", "p25", "median", "p75", "max", "trend", "slope_per_year", "r2"}

func summaryRow(r analyze.Report) []string {
	s := r.Summary
	worst := ""
	if s.WorstYear != 0 {
		worst = fmt.Sprintf("%d (%s%%)", s.WorstYear, util.FormatFloat(s.WorstYearPct, 1))
	}
	row := []string{s.Label, s.Type, string(s.Frequency), s.Start, s.End, strconv.Itoa(s.Count),
		util.FormatFloat(s.NullPct, 1), worst,
		formatValue(s.Mean), formatValue(s.Std), formatValue(s.Min), formatValue(s.P25),
		formatValue(s.Median), formatValue(s.P75), formatValue(s.Max)}
	if r.Trend == nil {
		return append(row, "", "", "")
	}
	return append(row, r.Trend.Direction, formatFloat(r.Trend.SlopePerYear), formatFloat(r.Trend.R2))
}

func renderSummaryTable(w io.Writer, reports []analyze.Report) error {
	tw := newTable(w, summaryHeader)
	for _, r := range reports {
		tw.Append(summaryRow(r))
	}
	tw.Render()
	return nil
}

// ─── CSV / TSV ────────────────────────────────────────────────────────────────

func renderDelimited(w io.Writer, result *model.Result, sep rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = sep

	switch data := result.Data.(type) {
	case *model.Variable:
		_ = cw.Write([]string{"date", "value"})
		for _, o := range data.Obs {
			_ = cw.Write([]string{util.FormatDate(o.Date), formatValue(o.Value)})
		}
	case []model.StationThresholds:
		_ = cw.Write([]string{"station", "d_type", "d_thresholds", "i_type", "i_thresholds"})
		for _, r := range data {
			_ = cw.Write([]string{r.Station, r.DType, joinFloats(r.D), r.IType, joinFloats(r.I)})
		}
	case []model.Forecast:
		_ = cw.Write([]string{"station", "lag", "date", "period", "mode", "prob"})
		for _, f := range data {
			_ = cw.Write([]string{f.Station, strconv.Itoa(f.Lag), util.FormatDate(f.Date), f.Period.Label(), f.Mode, joinFloats(f.Prob)})
		}
	case []model.StationTables:
		_ = cw.Write([]string{"station", "lag", "period", "i_category", "counts", "pct"})
		for _, st := range data {
			for _, t := range st.Tables {
				for i, l := range t.Categories.Labels() {
					_ = cw.Write([]string{st.Station, strconv.Itoa(t.Lag), t.Period.Label(), l, joinInts(t.Counts[i]), joinFloats(t.Pct[i])})
				}
			}
		}
	case []analyze.Report:
		_ = cw.Write(summaryHeader)
		for _, r := range data {
			_ = cw.Write(summaryRow(r))
		}
	case []store.RunSummary:
		_ = cw.Write([]string{"id", "name", "created_at", "categories", "interval", "period", "stations"})
		for _, r := range data {
			_ = cw.Write([]string{r.ID, r.Name, r.CreatedAt.Format(time.RFC3339), strconv.Itoa(int(r.Categories)),
				r.Interval, r.Period.String(), strconv.Itoa(r.Stations)})
		}
	default:
		// Fallback: serialize as JSON on a single line
		b, _ := json.Marshal(result.Data)
		_ = cw.Write([]string{string(b)})
	}

	cw.Flush()
	return cw.Error()
}

// ─── Markdown ─────────────────────────────────────────────────────────────────

func renderMarkdown(w io.Writer, result *model.Result) error {
	switch data := result.Data.(type) {
	case []model.StationTables:
		for _, st := range data {
			for _, t := range st.Tables {
				labels := t.Categories.Labels()
				fmt.Fprintf(w, "### %s lag %d %s\n\n| I \\ D | %s |\n|%s\n",
					mdEscape(st.Station), t.Lag, t.Period.Label(),
					strings.Join(labels, " | "), strings.Repeat("----|", len(labels)+1))
				for i, row := range t.Pct {
					cells := make([]string, len(row))
					for d, p := range row {
						cells[d] = formatFloat(p)
					}
					fmt.Fprintf(w, "| %s | %s |\n", labels[i], strings.Join(cells, " | "))
				}
				fmt.Fprintln(w)
			}
		}
		return nil
	case []model.Forecast:
		fmt.Fprintf(w, "| STATION | LAG | PERIOD | MODE | PROB |\n|----|----|----|----|----|\n")
		for _, f := range data {
			fmt.Fprintf(w, "| %s | %d | %s | %s | %s |\n",
				mdEscape(f.Station), f.Lag, f.Period.Label(), f.Mode, joinFloats(f.Prob))
		}
		return nil
	default:
		return renderJSON(w, result)
	}
}

// ─── Warnings / Stats Footer ─────────────────────────────────────────────────

// PrintFooter writes warnings and stats to w when verbose mode is on.
func PrintFooter(w io.Writer, result *model.Result, verbose bool) {
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "⚠  %s\n", warn)
	}
	if verbose {
		fmt.Fprintf(w, "\n[%s • %d items • %dms]\n",
			result.GeneratedAt.Format(time.RFC3339),
			result.Stats.Items,
			result.Stats.DurationMs,
		)
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// formatValue formats a nullable value for display; missing values render
// as ".".
func formatValue(v model.Value) string {
	f, ok := v.Float()
	if !ok {
		return "."
	}
	return formatFloat(f)
}

func formatFloat(f float64) string { return util.FormatFloat(f, 4) }

func joinFloats(fs []float64) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = formatFloat(f)
	}
	return strings.Join(parts, " ")
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, " ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
