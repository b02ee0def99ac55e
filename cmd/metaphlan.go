package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type metaphlanRow struct {
	Clade     string
	TaxID     int64 // -1 when the table carries no taxid column
	Abundance float64
	Coverage  float64
	Reads     float64
}

// isRoot reports whether the row is a top-level clade (no lineage separator).
// Root-level rows partition the classified reads, so they define the RPM
// denominator without double-counting the lineage levels below them.
func (r metaphlanRow) isRoot() bool {
	return !strings.Contains(r.Clade, "|")
}

type metaphlanReport struct {
	Rows            []metaphlanRow
	TotalReads      int64 // "# N reads processed" header
	ClassifiedReads int64 // "#estimated_reads_mapped_to_known_clades:" header
}

// parseMetaphlanReport reads a MetaPhlAn relative-abundance table. Comment
// lines are skipped, but the preamble is mined for the processed/classified
// read totals. The body accepts the 5-column MetaPhlAn 4 layout (clade,
// taxid, relative abundance, coverage, estimated reads) as well as the older
// 3-column and minimal 2-column layouts.
func parseMetaphlanReport(path string) (*metaphlanReport, error) {
	in, err := openInput(path)
	if err != nil {
		return nil, &ParseError{File: path, Format: "MetaPhlAn table", Msg: err.Error()}
	}
	defer func() {
		_ = in.Close()
	}()

	report := &metaphlanReport{}
	lineNum := 0
	sawBody := false

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			parseMetaphlanHeader(line, report)
			continue
		}
		sawBody = true

		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			return nil, &ParseError{
				File:   path,
				Line:   lineNum,
				Format: "MetaPhlAn table",
				Msg:    fmt.Sprintf("expected at least 2 columns, got %d", len(fields)),
			}
		}

		row := metaphlanRow{Clade: fields[0], TaxID: -1}
		switch {
		case len(fields) >= 5:
			row.TaxID = metaphlanTaxID(fields[1])
			row.Abundance = parseFloatOrZero(fields[2])
			row.Coverage = parseFloatOrZero(fields[3])
			row.Reads = parseFloatOrZero(fields[4])
		case len(fields) >= 3:
			row.TaxID = metaphlanTaxID(fields[1])
			row.Abundance = parseFloatOrZero(fields[2])
		default:
			row.Abundance = parseFloatOrZero(fields[1])
		}
		report.Rows = append(report.Rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{File: path, Format: "MetaPhlAn table", Msg: err.Error()}
	}
	if !sawBody && report.TotalReads == 0 {
		return nil, &ParseError{File: path, Format: "MetaPhlAn table", Msg: "no abundance rows found"}
	}
	if report.ClassifiedReads > report.TotalReads {
		report.TotalReads = report.ClassifiedReads
	}
	return report, nil
}

func parseMetaphlanHeader(line string, report *metaphlanReport) {
	if strings.HasPrefix(line, "#estimated_reads_mapped_to_known_clades:") {
		value := strings.TrimSpace(strings.TrimPrefix(line, "#estimated_reads_mapped_to_known_clades:"))
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			report.ClassifiedReads = n
		}
		return
	}
	if strings.Contains(line, "reads processed") {
		fields := strings.Fields(strings.TrimLeft(line, "# "))
		for i, field := range fields {
			if i+2 < len(fields) && fields[i+1] == "reads" && strings.HasPrefix(fields[i+2], "processed") {
				if n, err := strconv.ParseInt(field, 10, 64); err == nil {
					report.TotalReads = n
				}
				return
			}
		}
	}
}

// MetaPhlAn writes the NCBI lineage as pipe-separated taxids; the last
// element identifies the row's own clade.
func metaphlanTaxID(field string) int64 {
	field = strings.TrimSpace(field)
	if idx := strings.LastIndex(field, "|"); idx >= 0 {
		field = field[idx+1:]
	}
	n, err := strconv.ParseInt(field, 10, 64)
	if err != nil {
		return -1
	}
	return n
}

func parseFloatOrZero(field string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil {
		return 0
	}
	return f
}

// metaphlanReadTotal is the RPM denominator: estimated reads summed over
// root-level clades. Tables without root rows fall back to the full sum.
func metaphlanReadTotal(rows []metaphlanRow) float64 {
	var rootTotal, fullTotal float64
	sawRoot := false
	for _, row := range rows {
		fullTotal += row.Reads
		if row.isRoot() {
			rootTotal += row.Reads
			sawRoot = true
		}
	}
	if sawRoot {
		return rootTotal
	}
	return fullTotal
}

type metaphlanTotals struct {
	Total        int64
	Classified   int64
	Unclassified int64
	Bacterial    int64
	Archaeal     int64
}

func summarizeMetaphlan(report *metaphlanReport) metaphlanTotals {
	t := metaphlanTotals{
		Total:      report.TotalReads,
		Classified: report.ClassifiedReads,
	}
	if t.Total > t.Classified {
		t.Unclassified = t.Total - t.Classified
	}
	// Root rows only: lineage rows repeat their kingdom's reads.
	for _, row := range report.Rows {
		if !row.isRoot() {
			continue
		}
		switch {
		case strings.HasPrefix(row.Clade, "k__Bacteria"):
			t.Bacterial += int64(row.Reads)
		case strings.HasPrefix(row.Clade, "k__Archaea"):
			t.Archaeal += int64(row.Reads)
		}
	}
	return t
}

var metaphlanTableColumns = []string{
	"clade_name",
	"clade_taxid",
	"estimated_number_of_reads_from_the_clade",
	"estimated_number_of_reads_from_the_clade_per_million",
	"relative_abundance",
	"coverage",
}

// writeMetaphlanTable writes the normalized abundance table in input order.
func writeMetaphlanTable(path string, report *metaphlanReport, bar *progress) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, strings.Join(metaphlanTableColumns, "\t"))

	denom := metaphlanReadTotal(report.Rows)
	for _, row := range report.Rows {
		rpm := 0.0
		if denom > 0 {
			rpm = 1e6 * row.Reads / denom
		}
		fmt.Fprintf(w, "%s\t%d\t%.0f\t%.4f\t%.5f\t%.5f\n",
			row.Clade, row.TaxID, row.Reads, rpm, row.Abundance, row.Coverage)
		bar.increment()
	}
	bar.finish()

	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
