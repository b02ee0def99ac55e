package cmd

import (
	"fmt"
	"os"
	"path/filepath"
)

// layout computes every per-sample file path used by the pipeline.
//
//	<out>/filter_stats/          flagstat TSVs and PathSeq filter metrics
//	<out>/classification_stats/  raw classifier reports
//	<out>/results/               summary and normalized tables
//	<out>/intermediate/          working BAM/FASTQ/SAM files
type layout struct {
	FilterStats        string
	ClassificationStat string
	Results            string
	Intermediate       string
	Sample             string
}

func newLayout(outDir, sample string) layout {
	return layout{
		FilterStats:        filepath.Join(outDir, "filter_stats"),
		ClassificationStat: filepath.Join(outDir, "classification_stats"),
		Results:            filepath.Join(outDir, "results"),
		Intermediate:       filepath.Join(outDir, "intermediate"),
		Sample:             sample,
	}
}

func (l layout) mkdirs() error {
	for _, dir := range []string{l.FilterStats, l.ClassificationStat, l.Results, l.Intermediate} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// filter_stats

func (l layout) inputFlagstat() string {
	return filepath.Join(l.FilterStats, l.Sample+".flagstat.tsv")
}

// kind is "unaligned" or "excluded".
func (l layout) prefilterFlagstat(kind string) string {
	return filepath.Join(l.FilterStats, l.Sample+"."+kind+".flagstat.tsv")
}

func (l layout) filterMetrics(kind string) string {
	return filepath.Join(l.FilterStats, l.Sample+"."+kind+".filter_metrics.txt")
}

// pairing is "paired" or "unpaired"; aln is "aln" or "unaln".
func (l layout) t2tFlagstat(pairing, aln string) string {
	return filepath.Join(l.FilterStats, fmt.Sprintf("%s.qcfilt_%s.t2t_%s.flagstat.tsv", l.Sample, pairing, aln))
}

// intermediate read sets

func (l layout) prefilterBAM(kind string) string {
	return filepath.Join(l.Intermediate, l.Sample+"."+kind+".bam")
}

func (l layout) qcfiltKindBAM(kind, pairing string) string {
	return filepath.Join(l.Intermediate, fmt.Sprintf("%s.%s.qcfilt_%s.bam", l.Sample, kind, pairing))
}

func (l layout) qcfiltBAM(pairing string) string {
	return filepath.Join(l.Intermediate, fmt.Sprintf("%s.qcfilt_%s.bam", l.Sample, pairing))
}

func (l layout) qcfiltFastq(pairing, mate string) string {
	if mate == "" {
		return filepath.Join(l.Intermediate, fmt.Sprintf("%s.qcfilt_%s.fastq", l.Sample, pairing))
	}
	return filepath.Join(l.Intermediate, fmt.Sprintf("%s.qcfilt_%s_%s.fastq", l.Sample, pairing, mate))
}

func (l layout) t2tSAM(pairing string) string {
	return filepath.Join(l.Intermediate, fmt.Sprintf("%s.qcfilt_%s.t2t.sam", l.Sample, pairing))
}

func (l layout) t2tBAM(pairing, aln string) string {
	return filepath.Join(l.Intermediate, fmt.Sprintf("%s.qcfilt_%s.t2t_%s.bam", l.Sample, pairing, aln))
}

func (l layout) classifyFastq(pairing, mate string) string {
	if mate == "" {
		return filepath.Join(l.Intermediate, fmt.Sprintf("%s.t2t_unaln_%s.fastq", l.Sample, pairing))
	}
	return filepath.Join(l.Intermediate, fmt.Sprintf("%s.t2t_unaln_%s_%s.fastq", l.Sample, pairing, mate))
}

func (l layout) metaphlanBowtie2Out() string {
	return filepath.Join(l.Intermediate, l.Sample+".metaphlan.bowtie2.bz2")
}

// classification_stats

func (l layout) krakenReport(pairing string) string {
	return filepath.Join(l.ClassificationStat, fmt.Sprintf("%s.%s.kraken.report.txt", l.Sample, pairing))
}

func (l layout) metaphlanReport() string {
	return filepath.Join(l.ClassificationStat, l.Sample+".metaphlan.report.txt")
}

// results

func (l layout) summaryTSV() string {
	return filepath.Join(l.Results, l.Sample+".summary.tsv")
}

func (l layout) krakenTable() string {
	return filepath.Join(l.Results, l.Sample+".kraken.txt")
}

func (l layout) metaphlanTable() string {
	return filepath.Join(l.Results, l.Sample+".metaphlan.txt")
}

func (l layout) krakenParquet() string {
	return filepath.Join(l.Results, l.Sample+".kraken.parquet")
}

func (l layout) metaphlanParquet() string {
	return filepath.Join(l.Results, l.Sample+".metaphlan.parquet")
}
