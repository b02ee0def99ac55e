package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// naPlaceholder marks summary fields whose upstream stage output is missing.
// A present-but-zero metric is reported as 0; NA means the file never existed.
const naPlaceholder = "NA"

// summarySchemaVersion tags the summary.tsv column layout. Schema v2 is the
// canonical layout: a header row plus one row per sample, with the
// "excluded"/"unpaired" terminology.
const summarySchemaVersion = 2

var summaryColumns = []string{
	"sample_id",
	"input_reads",
	"prefilter_retained",
	"prefilter_retained_pct",
	"qcfilter_retained",
	"qcfilter_retained_pct",
	"t2tfilter_retained",
	"t2tfilter_retained_pct",
	"qc_reads_after_prealigned_host_filter",
	"qc_reads_after_quality_filter",
	"qc_reads_after_host_filter",
	"qc_reads_after_deduplication",
	"qc_final_paired_reads",
	"qc_final_unpaired_reads",
	"t2t_unaligned_paired",
	"t2t_unaligned_unpaired",
	"kraken_total_reads",
	"kraken_classified_reads",
	"kraken_unclassified_reads",
	"kraken_microbial_reads",
	"kraken_human_reads",
	"metaphlan_total_reads",
	"metaphlan_classified_reads",
	"metaphlan_unclassified_reads",
	"metaphlan_bacterial_reads",
	"metaphlan_archaeal_reads",
}

func newSummaryCells(sample string) map[string]string {
	cells := make(map[string]string, len(summaryColumns))
	for _, col := range summaryColumns {
		cells[col] = naPlaceholder
	}
	cells["sample_id"] = sample
	return cells
}

func setCount(cells map[string]string, col string, n int64) {
	cells[col] = strconv.FormatInt(n, 10)
}

// loadFlagstat parses one flagstat report, downgrading missing files and
// parse failures to warnings so a partial pipeline still summarizes.
func loadFlagstat(log *logrus.Logger, stageName, path string, required bool) *flagstatCounts {
	if !fileExists(path) {
		if required {
			log.Warnf("summarize: %v", &MissingStageError{Stage: stageName, Path: path})
		}
		return nil
	}
	counts, err := parseFlagstat(path)
	if err != nil {
		log.Warnf("summarize: %v", err)
		return nil
	}
	return counts
}

// fillFilterStats populates the filtering columns from the filter_stats
// directory and returns how many stage files parsed.
func fillFilterStats(log *logrus.Logger, lay layout, cells map[string]string) int {
	parsed := 0

	inputReads := int64(-1)
	if counts := loadFlagstat(log, "prefilter", lay.inputFlagstat(), true); counts != nil {
		inputReads = counts.Primary
		setCount(cells, "input_reads", inputReads)
		parsed++
	}

	// Prefilter-retained: reads carried forward into qcfilter. The excluded
	// read set only exists when an exclude list was given.
	prefilterRetained := int64(-1)
	for _, kind := range []string{"unaligned", "excluded"} {
		counts := loadFlagstat(log, "prefilter", lay.prefilterFlagstat(kind), kind == "unaligned")
		if counts == nil {
			continue
		}
		if prefilterRetained < 0 {
			prefilterRetained = 0
		}
		prefilterRetained += counts.Primary
		parsed++
	}
	if prefilterRetained >= 0 {
		setCount(cells, "prefilter_retained", prefilterRetained)
	}

	var qcMetrics map[string]int64
	for _, kind := range []string{"unaligned", "excluded"} {
		path := lay.filterMetrics(kind)
		if !fileExists(path) {
			if kind == "unaligned" {
				log.Warnf("summarize: %v", &MissingStageError{Stage: "qcfilter", Path: path})
			}
			continue
		}
		metrics, err := parseFilterMetrics(path)
		if err != nil {
			log.Warnf("summarize: %v", err)
			continue
		}
		if qcMetrics == nil {
			qcMetrics = make(map[string]int64, len(filterMetricsColumns))
		}
		for _, col := range filterMetricsColumns {
			qcMetrics[col] += metrics[col]
		}
		parsed++
	}
	if qcMetrics != nil {
		setCount(cells, "qcfilter_retained", qcMetrics["FINAL_TOTAL_READS"])
		setCount(cells, "qc_reads_after_prealigned_host_filter", qcMetrics["READS_AFTER_PREALIGNED_HOST_FILTER"])
		setCount(cells, "qc_reads_after_quality_filter", qcMetrics["READS_AFTER_QUALITY_AND_COMPLEXITY_FILTER"])
		setCount(cells, "qc_reads_after_host_filter", qcMetrics["READS_AFTER_HOST_FILTER"])
		setCount(cells, "qc_reads_after_deduplication", qcMetrics["READS_AFTER_DEDUPLICATION"])
		setCount(cells, "qc_final_paired_reads", qcMetrics["FINAL_PAIRED_READS"])
		setCount(cells, "qc_final_unpaired_reads", qcMetrics["FINAL_UNPAIRED_READS"])
	}

	t2tRetained := int64(-1)
	for pairing, col := range map[string]string{
		"paired":   "t2t_unaligned_paired",
		"unpaired": "t2t_unaligned_unpaired",
	} {
		counts := loadFlagstat(log, "t2tfilter", lay.t2tFlagstat(pairing, "unaln"), true)
		if counts == nil {
			continue
		}
		setCount(cells, col, counts.Primary)
		if t2tRetained < 0 {
			t2tRetained = 0
		}
		t2tRetained += counts.Primary
		parsed++
	}
	if t2tRetained >= 0 {
		setCount(cells, "t2tfilter_retained", t2tRetained)
	}

	// Derived percentages, guarded against a missing or zero denominator.
	for countCol, pctCol := range map[string]string{
		"prefilter_retained": "prefilter_retained_pct",
		"qcfilter_retained":  "qcfilter_retained_pct",
		"t2tfilter_retained": "t2tfilter_retained_pct",
	} {
		if inputReads < 0 || cells[countCol] == naPlaceholder {
			continue
		}
		n, _ := strconv.ParseInt(cells[countCol], 10, 64)
		cells[pctCol] = formatPct(n, inputReads)
	}

	return parsed
}

func fillKrakenTotals(cells map[string]string, t krakenTotals) {
	setCount(cells, "kraken_total_reads", t.Total)
	setCount(cells, "kraken_classified_reads", t.Classified)
	setCount(cells, "kraken_unclassified_reads", t.Unclassified)
	setCount(cells, "kraken_microbial_reads", t.Microbial)
	setCount(cells, "kraken_human_reads", t.Human)
}

func fillMetaphlanTotals(cells map[string]string, t metaphlanTotals) {
	setCount(cells, "metaphlan_total_reads", t.Total)
	setCount(cells, "metaphlan_classified_reads", t.Classified)
	setCount(cells, "metaphlan_unclassified_reads", t.Unclassified)
	setCount(cells, "metaphlan_bacterial_reads", t.Bacterial)
	setCount(cells, "metaphlan_archaeal_reads", t.Archaeal)
}

// writeSummary emits the header row and the one sample row in the fixed
// schema-v2 column order.
func writeSummary(path string, cells map[string]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, strings.Join(summaryColumns, "\t"))
	values := make([]string, len(summaryColumns))
	for i, col := range summaryColumns {
		values[i] = cells[col]
	}
	fmt.Fprintln(w, strings.Join(values, "\t"))

	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
