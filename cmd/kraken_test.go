package cmd

import (
	"bufio"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

const krakenPairedFixture = ` 40.00	40	40	U	0	unclassified
 60.00	60	10	R	1	root
 30.00	30	30	S	9606	    Homo sapiens
`

const krakenUnpairedFixture = ` 50.00	10	10	U	0	unclassified
 50.00	10	2	R	1	root
`

func TestParseKrakenReportSixColumns(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "s1.paired.kraken.report.txt", krakenPairedFixture)

	rows, err := parseKrakenReport(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	human := rows[2]
	if human.Name != "Homo sapiens" {
		t.Fatalf("indentation not stripped: %q", human.Name)
	}
	if human.TaxID != 9606 || human.Rank != "S" || human.ReadsClade != 30 || human.ReadsTaxon != 30 {
		t.Fatalf("got %+v", human)
	}
}

func TestParseKrakenReportEightColumns(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "r.txt",
		" 90.00\t90\t90\t120\t80\tU\t0\tunclassified\n"+
			" 10.00\t10\t3\t15\t9\tR\t1\troot\n")

	rows, err := parseKrakenReport(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[1].TaxID != 1 || rows[1].Rank != "R" || rows[1].ReadsTaxon != 3 {
		t.Fatalf("got %+v", rows[1])
	}
}

func TestParseKrakenReportBadLine(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "r.txt",
		" 40.00\t40\t40\tU\t0\tunclassified\nbroken line\n")

	_, err := parseKrakenReport(path)
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("want ParseError, got %v", err)
	}
	if perr.Line != 2 {
		t.Fatalf("ParseError.Line = %d, want 2", perr.Line)
	}
}

func TestMergeKrakenReports(t *testing.T) {
	dir := t.TempDir()
	paired := writeTestFile(t, dir, "paired.txt", krakenPairedFixture)
	unpaired := writeTestFile(t, dir, "unpaired.txt", krakenUnpairedFixture)

	rows, err := mergeKrakenReports(paired, unpaired)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}

	// Sorted by name: Homo sapiens, root, unclassified.
	if rows[0].Name != "Homo sapiens" || rows[1].Name != "root" || rows[2].Name != "unclassified" {
		t.Fatalf("unexpected order: %q %q %q", rows[0].Name, rows[1].Name, rows[2].Name)
	}

	// Paired reports count fragments and are doubled; unpaired are reads.
	if rows[2].ReadsClade != 2*40+10 {
		t.Fatalf("unclassified clade reads = %d, want 90", rows[2].ReadsClade)
	}
	if rows[1].ReadsClade != 2*60+10 || rows[1].ReadsTaxon != 2*10+2 {
		t.Fatalf("root = %+v", rows[1])
	}
	if rows[0].ReadsClade != 60 {
		t.Fatalf("human clade reads = %d, want 60", rows[0].ReadsClade)
	}

	// Percentage recomputed over unclassified + root clade reads (220).
	wantPct := 100 * 60.0 / 220.0
	if math.Abs(rows[0].Pct-wantPct) > 1e-9 {
		t.Fatalf("human pct = %f, want %f", rows[0].Pct, wantPct)
	}
}

func TestMergeKrakenReportsPairedOnly(t *testing.T) {
	dir := t.TempDir()
	paired := writeTestFile(t, dir, "paired.txt", krakenPairedFixture)

	rows, err := mergeKrakenReports(paired, filepath.Join(dir, "missing.txt"))
	if err != nil {
		t.Fatal(err)
	}
	for _, row := range rows {
		if row.TaxID == taxidUnclassified && row.ReadsClade != 80 {
			t.Fatalf("unclassified clade reads = %d, want 80", row.ReadsClade)
		}
	}
}

func TestMergeKrakenReportsBothMissing(t *testing.T) {
	dir := t.TempDir()
	_, err := mergeKrakenReports(filepath.Join(dir, "a.txt"), filepath.Join(dir, "b.txt"))
	var merr *MissingStageError
	if !errors.As(err, &merr) {
		t.Fatalf("want MissingStageError, got %v", err)
	}
}

func TestSummarizeKraken(t *testing.T) {
	rows := []krakenRow{
		{Name: "unclassified", TaxID: 0, ReadsClade: 90},
		{Name: "root", TaxID: 1, ReadsClade: 130},
		{Name: "Bacteria", TaxID: 2, ReadsClade: 50},
		{Name: "Viruses", TaxID: 10239, ReadsClade: 5},
		{Name: "Homo sapiens", TaxID: 9606, ReadsClade: 60},
	}
	totals := summarizeKraken(rows)
	if totals.Total != 220 || totals.Classified != 130 || totals.Unclassified != 90 {
		t.Fatalf("got %+v", totals)
	}
	if totals.Microbial != 55 {
		t.Fatalf("microbial = %d, want 55", totals.Microbial)
	}
	if totals.Human != 60 {
		t.Fatalf("human = %d, want 60", totals.Human)
	}
}

func TestWriteKrakenTableRPM(t *testing.T) {
	dir := t.TempDir()
	paired := writeTestFile(t, dir, "paired.txt", krakenPairedFixture)
	unpaired := writeTestFile(t, dir, "unpaired.txt", krakenUnpairedFixture)
	rows, err := mergeKrakenReports(paired, unpaired)
	if err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "s1.kraken.txt")
	if err := writeKrakenTable(out, rows, newProgress(len(rows), false)); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		t.Fatal("empty table")
	}
	if got := scanner.Text(); got != strings.Join(krakenTableColumns, "\t") {
		t.Fatalf("header = %q", got)
	}

	rpmIdx := -1
	for i, col := range krakenTableColumns {
		if col == "reads_taxon_per_million" {
			rpmIdx = i
		}
	}

	var rpmSum float64
	var n int
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) != len(krakenTableColumns) {
			t.Fatalf("row has %d columns: %q", len(fields), scanner.Text())
		}
		rpm, err := strconv.ParseFloat(fields[rpmIdx], 64)
		if err != nil {
			t.Fatal(err)
		}
		rpmSum += rpm
		n++
	}
	if n != len(rows) {
		t.Fatalf("got %d data rows, want %d", n, len(rows))
	}
	// Taxon-level RPM values partition the classified reads.
	if math.Abs(rpmSum-1e6) > 1 {
		t.Fatalf("taxon RPM sum = %f, want 1e6", rpmSum)
	}
}
