package cmd

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Taxon IDs with a fixed meaning in Kraken2 reports.
const (
	taxidUnclassified = 0
	taxidRoot         = 1
	taxidHuman        = 9606
)

// Bacteria, Fungi, Archaea, Viruses.
var microbialTaxIDs = []int64{2, 4751, 2157, 10239}

type krakenRow struct {
	Name       string
	TaxID      int64
	Rank       string
	ReadsClade int64
	ReadsTaxon int64
	Pct        float64
}

// parseKrakenReport reads a Kraken2 report: 6 columns (pct, clade reads,
// taxon reads, rank, taxid, name) or 8 columns when the report carries
// minimizer data. Names are indented by rank depth; the indentation is
// stripped. An empty file parses to zero rows.
func parseKrakenReport(path string) ([]krakenRow, error) {
	in, err := openInput(path)
	if err != nil {
		return nil, &ParseError{File: path, Format: "Kraken2 report", Msg: err.Error()}
	}
	defer func() {
		_ = in.Close()
	}()

	var rows []krakenRow
	lineNum := 0
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		var rankIdx int
		switch len(fields) {
		case 6:
			rankIdx = 3
		case 8:
			// pct, clade, taxon, minimizers, distinct minimizers, rank, taxid, name
			rankIdx = 5
		default:
			return nil, &ParseError{
				File:   path,
				Line:   lineNum,
				Format: "Kraken2 report",
				Msg:    fmt.Sprintf("expected 6 or 8 columns, got %d", len(fields)),
			}
		}

		pct, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
		if err != nil {
			return nil, &ParseError{File: path, Line: lineNum, Format: "Kraken2 report", Msg: "bad percentage: " + fields[0]}
		}
		clade, err := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64)
		if err != nil {
			return nil, &ParseError{File: path, Line: lineNum, Format: "Kraken2 report", Msg: "bad clade read count: " + fields[1]}
		}
		taxon, err := strconv.ParseInt(strings.TrimSpace(fields[2]), 10, 64)
		if err != nil {
			return nil, &ParseError{File: path, Line: lineNum, Format: "Kraken2 report", Msg: "bad taxon read count: " + fields[2]}
		}
		taxid, err := strconv.ParseInt(strings.TrimSpace(fields[rankIdx+1]), 10, 64)
		if err != nil {
			return nil, &ParseError{File: path, Line: lineNum, Format: "Kraken2 report", Msg: "bad taxon id: " + fields[rankIdx+1]}
		}

		rows = append(rows, krakenRow{
			Name:       strings.TrimLeft(fields[rankIdx+2], " "),
			TaxID:      taxid,
			Rank:       strings.TrimSpace(fields[rankIdx]),
			ReadsClade: clade,
			ReadsTaxon: taxon,
			Pct:        pct,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{File: path, Format: "Kraken2 report", Msg: err.Error()}
	}
	return rows, nil
}

// mergeKrakenReports combines the paired and unpaired reports for one sample.
// Paired reports count fragments, so their read counts are doubled before
// merging; unpaired counts are already reads. Rows merge by (name, taxid,
// rank) and the percentage column is recomputed from the merged totals.
// At least one of the two reports must exist.
func mergeKrakenReports(pairedPath, unpairedPath string) ([]krakenRow, error) {
	type key struct {
		name  string
		taxid int64
		rank  string
	}

	merged := make(map[key]*krakenRow)
	var anyFound bool

	add := func(rows []krakenRow, factor int64) {
		for _, row := range rows {
			k := key{row.Name, row.TaxID, row.Rank}
			if cur, ok := merged[k]; ok {
				cur.ReadsClade += factor * row.ReadsClade
				cur.ReadsTaxon += factor * row.ReadsTaxon
			} else {
				merged[k] = &krakenRow{
					Name:       row.Name,
					TaxID:      row.TaxID,
					Rank:       row.Rank,
					ReadsClade: factor * row.ReadsClade,
					ReadsTaxon: factor * row.ReadsTaxon,
				}
			}
		}
	}

	if _, err := os.Stat(pairedPath); err == nil {
		rows, err := parseKrakenReport(pairedPath)
		if err != nil {
			return nil, err
		}
		add(rows, 2)
		anyFound = true
	}
	if _, err := os.Stat(unpairedPath); err == nil {
		rows, err := parseKrakenReport(unpairedPath)
		if err != nil {
			return nil, err
		}
		add(rows, 1)
		anyFound = true
	}
	if !anyFound {
		return nil, &MissingStageError{Stage: "classify", Path: pairedPath}
	}

	out := make([]krakenRow, 0, len(merged))
	for _, row := range merged {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].TaxID < out[j].TaxID
	})

	var total int64
	for _, row := range out {
		if row.TaxID == taxidUnclassified || row.TaxID == taxidRoot {
			total += row.ReadsClade
		}
	}
	for i := range out {
		if total > 0 {
			out[i].Pct = 100 * float64(out[i].ReadsClade) / float64(total)
		} else {
			out[i].Pct = 0
		}
	}
	return out, nil
}

// krakenTaxonTotal is the RPM denominator: the total classified-read count of
// the table, i.e. the sum of taxon-level raw counts over all rows.
func krakenTaxonTotal(rows []krakenRow) int64 {
	var total int64
	for _, row := range rows {
		total += row.ReadsTaxon
	}
	return total
}

type krakenTotals struct {
	Total        int64
	Classified   int64
	Unclassified int64
	Microbial    int64
	Human        int64
}

func summarizeKraken(rows []krakenRow) krakenTotals {
	var t krakenTotals
	for _, row := range rows {
		switch row.TaxID {
		case taxidUnclassified:
			t.Unclassified += row.ReadsClade
		case taxidRoot:
			t.Classified += row.ReadsClade
		case taxidHuman:
			t.Human += row.ReadsClade
		}
		for _, id := range microbialTaxIDs {
			if row.TaxID == id {
				t.Microbial += row.ReadsClade
			}
		}
	}
	t.Total = t.Classified + t.Unclassified
	return t
}

var krakenTableColumns = []string{
	"name",
	"tax_id",
	"rank",
	"reads_clade",
	"reads_taxon",
	"reads_clade_per_million",
	"reads_taxon_per_million",
	"pct_reads",
}

// writeKrakenTable writes the normalized classification table. Output is
// deterministic: rows arrive sorted from mergeKrakenReports and all numeric
// formats are fixed-width.
func writeKrakenTable(path string, rows []krakenRow, bar *progress) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, strings.Join(krakenTableColumns, "\t"))

	denom := krakenTaxonTotal(rows)
	for _, row := range rows {
		cladeRPM, taxonRPM := 0.0, 0.0
		if denom > 0 {
			cladeRPM = 1e6 * float64(row.ReadsClade) / float64(denom)
			taxonRPM = 1e6 * float64(row.ReadsTaxon) / float64(denom)
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%d\t%.4f\t%.4f\t%.2f\n",
			row.Name, row.TaxID, row.Rank, row.ReadsClade, row.ReadsTaxon, cladeRPM, taxonRPM, row.Pct)
		bar.increment()
	}
	bar.finish()

	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
