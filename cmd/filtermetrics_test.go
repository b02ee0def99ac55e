package cmd

import (
	"errors"
	"testing"
)

const filterMetricsFixture = `## htsjdk.samtools.metrics.StringHeader
# PathSeqFilterSpark --input s1.unaligned.bam --kmer-file host.hss
## METRICS CLASS	org.broadinstitute.hellbender.tools.spark.pathseq.PSFilterLogger$PSFilterMetrics
PRIMARY_READS	READS_AFTER_PREALIGNED_HOST_FILTER	READS_AFTER_QUALITY_AND_COMPLEXITY_FILTER	READS_AFTER_HOST_FILTER	READS_AFTER_DEDUPLICATION	FINAL_PAIRED_READS	FINAL_UNPAIRED_READS	FINAL_TOTAL_READS
1000	900	800	700	600	550	50	600
`

func TestParseFilterMetrics(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "s1.unaligned.filter_metrics.txt", filterMetricsFixture)

	metrics, err := parseFilterMetrics(path)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]int64{
		"PRIMARY_READS":                             1000,
		"READS_AFTER_PREALIGNED_HOST_FILTER":        900,
		"READS_AFTER_QUALITY_AND_COMPLEXITY_FILTER": 800,
		"READS_AFTER_HOST_FILTER":                   700,
		"READS_AFTER_DEDUPLICATION":                 600,
		"FINAL_PAIRED_READS":                        550,
		"FINAL_UNPAIRED_READS":                      50,
		"FINAL_TOTAL_READS":                         600,
	}
	for col, n := range want {
		if metrics[col] != n {
			t.Errorf("%s = %d, want %d", col, metrics[col], n)
		}
	}
}

func TestParseFilterMetricsNonNumericCell(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "m.txt",
		"PRIMARY_READS\tFINAL_TOTAL_READS\n100\t?\n")

	metrics, err := parseFilterMetrics(path)
	if err != nil {
		t.Fatal(err)
	}
	if metrics["PRIMARY_READS"] != 100 || metrics["FINAL_TOTAL_READS"] != 0 {
		t.Fatalf("got %v", metrics)
	}
}

func TestParseFilterMetricsMissingHeader(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "m.txt", "## comment only\nsome text\n")

	_, err := parseFilterMetrics(path)
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("want ParseError, got %v", err)
	}
}

func TestParseFilterMetricsMissingValueRow(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "m.txt",
		"PRIMARY_READS\tFINAL_TOTAL_READS\n")

	_, err := parseFilterMetrics(path)
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("want ParseError, got %v", err)
	}
}
