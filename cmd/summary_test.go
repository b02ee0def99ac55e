package cmd

import (
	"os"
	"strings"
	"testing"
)

// writeSummarizeFixture lays out a complete set of per-stage reports for
// sample s1 and returns the layout rooted in a fresh temp dir.
func writeSummarizeFixture(t *testing.T) layout {
	t.Helper()
	lay := newLayout(t.TempDir(), "s1")
	if err := lay.mkdirs(); err != nil {
		t.Fatal(err)
	}

	writeFixture := func(path, content string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	writeFixture(lay.inputFlagstat(),
		"1000\t0\ttotal (QC-passed reads + QC-failed reads)\n"+
			"1000\t0\tprimary\n"+
			"900\t0\tmapped\n")
	writeFixture(lay.prefilterFlagstat("unaligned"),
		"400\t0\ttotal (QC-passed reads + QC-failed reads)\n"+
			"400\t0\tprimary\n"+
			"0\t0\tmapped\n")
	writeFixture(lay.filterMetrics("unaligned"),
		"## htsjdk.samtools.metrics.StringHeader\n"+
			"# PathSeqFilterSpark\n"+
			"PRIMARY_READS\tREADS_AFTER_PREALIGNED_HOST_FILTER\tREADS_AFTER_QUALITY_AND_COMPLEXITY_FILTER\tREADS_AFTER_HOST_FILTER\tREADS_AFTER_DEDUPLICATION\tFINAL_PAIRED_READS\tFINAL_UNPAIRED_READS\tFINAL_TOTAL_READS\n"+
			"400\t380\t350\t300\t280\t260\t20\t280\n")
	writeFixture(lay.t2tFlagstat("paired", "unaln"),
		"100\t0\ttotal (QC-passed reads + QC-failed reads)\n100\t0\tprimary\n")
	writeFixture(lay.t2tFlagstat("unpaired", "unaln"),
		"20\t0\ttotal (QC-passed reads + QC-failed reads)\n20\t0\tprimary\n")

	writeFixture(lay.krakenReport("paired"), krakenPairedFixture)
	writeFixture(lay.krakenReport("unpaired"), krakenUnpairedFixture)
	writeFixture(lay.metaphlanReport(), metaphlanFixture)

	return lay
}

func readSummaryRow(t *testing.T, lay layout) (header, row []string) {
	t.Helper()
	data, err := os.ReadFile(lay.summaryTSV())
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("summary has %d lines, want header + one row", len(lines))
	}
	return strings.Split(lines[0], "\t"), strings.Split(lines[1], "\t")
}

func TestSummarizeFullFixture(t *testing.T) {
	lay := writeSummarizeFixture(t)

	if err := summarize(quietLogger(), lay, summarizeConfig{}); err != nil {
		t.Fatal(err)
	}

	header, row := readSummaryRow(t, lay)
	if strings.Join(header, "\t") != strings.Join(summaryColumns, "\t") {
		t.Fatalf("header = %v", header)
	}

	want := map[string]string{
		"sample_id":                             "s1",
		"input_reads":                           "1000",
		"prefilter_retained":                    "400",
		"prefilter_retained_pct":                "40.00",
		"qcfilter_retained":                     "280",
		"qcfilter_retained_pct":                 "28.00",
		"t2tfilter_retained":                    "120",
		"t2tfilter_retained_pct":                "12.00",
		"qc_reads_after_prealigned_host_filter": "380",
		"qc_reads_after_quality_filter":         "350",
		"qc_reads_after_host_filter":            "300",
		"qc_reads_after_deduplication":          "280",
		"qc_final_paired_reads":                 "260",
		"qc_final_unpaired_reads":               "20",
		"t2t_unaligned_paired":                  "100",
		"t2t_unaligned_unpaired":                "20",
		"kraken_total_reads":                    "220",
		"kraken_classified_reads":               "130",
		"kraken_unclassified_reads":             "90",
		"kraken_microbial_reads":                "0",
		"kraken_human_reads":                    "60",
		"metaphlan_total_reads":                 "20000",
		"metaphlan_classified_reads":            "10000",
		"metaphlan_unclassified_reads":          "10000",
		"metaphlan_bacterial_reads":             "6000",
		"metaphlan_archaeal_reads":              "4000",
	}
	for i, col := range header {
		if row[i] != want[col] {
			t.Errorf("%s = %q, want %q", col, row[i], want[col])
		}
	}

	if !fileExists(lay.krakenTable()) {
		t.Fatal("kraken table not written")
	}
	if !fileExists(lay.metaphlanTable()) {
		t.Fatal("metaphlan table not written")
	}
}

func TestSummarizeDeterministic(t *testing.T) {
	lay := writeSummarizeFixture(t)

	if err := summarize(quietLogger(), lay, summarizeConfig{}); err != nil {
		t.Fatal(err)
	}
	first, err := os.ReadFile(lay.summaryTSV())
	if err != nil {
		t.Fatal(err)
	}
	firstKraken, err := os.ReadFile(lay.krakenTable())
	if err != nil {
		t.Fatal(err)
	}

	if err := summarize(quietLogger(), lay, summarizeConfig{}); err != nil {
		t.Fatal(err)
	}
	second, err := os.ReadFile(lay.summaryTSV())
	if err != nil {
		t.Fatal(err)
	}
	secondKraken, err := os.ReadFile(lay.krakenTable())
	if err != nil {
		t.Fatal(err)
	}

	if string(first) != string(second) {
		t.Fatal("summary not byte-identical across runs")
	}
	if string(firstKraken) != string(secondKraken) {
		t.Fatal("kraken table not byte-identical across runs")
	}
}

func TestSummarizeMissingClassifyStage(t *testing.T) {
	lay := writeSummarizeFixture(t)
	for _, path := range []string{
		lay.krakenReport("paired"),
		lay.krakenReport("unpaired"),
		lay.metaphlanReport(),
	} {
		if err := os.Remove(path); err != nil {
			t.Fatal(err)
		}
	}

	if err := summarize(quietLogger(), lay, summarizeConfig{}); err != nil {
		t.Fatal(err)
	}

	header, row := readSummaryRow(t, lay)
	cells := make(map[string]string, len(header))
	for i, col := range header {
		cells[col] = row[i]
	}
	for _, col := range []string{
		"kraken_total_reads", "kraken_human_reads",
		"metaphlan_total_reads", "metaphlan_bacterial_reads",
	} {
		if cells[col] != naPlaceholder {
			t.Errorf("%s = %q, want %q", col, cells[col], naPlaceholder)
		}
	}
	if cells["input_reads"] != "1000" {
		t.Errorf("input_reads = %q, want 1000", cells["input_reads"])
	}
	if fileExists(lay.krakenTable()) || fileExists(lay.metaphlanTable()) {
		t.Fatal("classification tables written without classifier reports")
	}
}

func TestSummarizeZeroInputReads(t *testing.T) {
	lay := writeSummarizeFixture(t)
	if err := os.WriteFile(lay.inputFlagstat(),
		[]byte("0\t0\ttotal (QC-passed reads + QC-failed reads)\n0\t0\tprimary\n0\t0\tmapped\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := summarize(quietLogger(), lay, summarizeConfig{}); err != nil {
		t.Fatal(err)
	}

	header, row := readSummaryRow(t, lay)
	for i, col := range header {
		if col == "prefilter_retained_pct" && row[i] != "0.00" {
			t.Fatalf("prefilter_retained_pct = %q, want 0.00", row[i])
		}
	}
}

func TestSummarizeNothingParsable(t *testing.T) {
	lay := newLayout(t.TempDir(), "s1")
	if err := lay.mkdirs(); err != nil {
		t.Fatal(err)
	}
	if err := summarize(quietLogger(), lay, summarizeConfig{}); err == nil {
		t.Fatal("want error when no stage outputs exist")
	}
	if fileExists(lay.summaryTSV()) {
		t.Fatal("summary written despite no parsable inputs")
	}
}
