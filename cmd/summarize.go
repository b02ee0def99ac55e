package cmd

import (
	"errors"
	"flag"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

type summarizeConfig struct {
	Parquet  bool
	Progress bool
}

func runSummarize(args []string) {
	fs := flag.NewFlagSet("summarize", flag.ExitOnError)
	outDir := fs.String("output-dir", "pst2t_output", "Pipeline output directory")
	filterDir := fs.String("filter-stats-dir", "", "Directory with filtering stats (default: <output-dir>/filter_stats)")
	classifDir := fs.String("classification-stats-dir", "", "Directory with raw classifier reports (default: <output-dir>/classification_stats)")
	resultsDir := fs.String("results-dir", "", "Directory for final outputs (default: <output-dir>/results)")
	sample := fs.String("sample-id", "", "Sample ID")
	parquet := fs.Bool("parquet", false, "Also write the normalized tables as Parquet")
	progressOn := fs.Bool("progress", false, "Show progress while writing normalized tables")
	logLevel := fs.String("log-level", "info", "Log level (debug|info|warn|error)")
	if err := fs.Parse(args); err != nil {
		fatalf("parse args failed: %v", err)
	}

	if *sample == "" {
		fatalf("sample-id is required")
	}

	lay := newLayout(*outDir, *sample)
	if *filterDir != "" {
		lay.FilterStats = *filterDir
	}
	if *classifDir != "" {
		lay.ClassificationStat = *classifDir
	}
	if *resultsDir != "" {
		lay.Results = *resultsDir
	}

	for _, dir := range []string{lay.FilterStats, lay.ClassificationStat} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			fatalf("not a directory: %s", dir)
		}
	}
	if err := os.MkdirAll(lay.Results, 0o755); err != nil {
		fatalf("create results dir: %v", err)
	}

	log := newLogger(*logLevel)
	if err := summarize(log, lay, summarizeConfig{Parquet: *parquet, Progress: *progressOn}); err != nil {
		fatalf("summarize failed: %v", err)
	}
}

// summarize builds the per-sample summary row and the normalized
// classification tables. Missing stage files degrade to NA placeholders; it
// only fails when nothing at all could be parsed.
func summarize(log *logrus.Logger, lay layout, cfg summarizeConfig) error {
	cells := newSummaryCells(lay.Sample)
	parsed := fillFilterStats(log, lay, cells)

	krakenRows, err := mergeKrakenReports(lay.krakenReport("paired"), lay.krakenReport("unpaired"))
	if err != nil {
		log.Warnf("summarize: %v", err)
		krakenRows = nil
	} else {
		fillKrakenTotals(cells, summarizeKraken(krakenRows))
		parsed++
	}

	var mpa *metaphlanReport
	if fileExists(lay.metaphlanReport()) {
		mpa, err = parseMetaphlanReport(lay.metaphlanReport())
		if err != nil {
			log.Warnf("summarize: %v", err)
			mpa = nil
		} else {
			fillMetaphlanTotals(cells, summarizeMetaphlan(mpa))
			parsed++
		}
	} else {
		log.Warnf("summarize: %v", &MissingStageError{Stage: "classify", Path: lay.metaphlanReport()})
	}

	if parsed == 0 {
		return errors.New("no parsable stage outputs found in " + filepath.Dir(lay.FilterStats))
	}

	if err := writeSummary(lay.summaryTSV(), cells); err != nil {
		return err
	}
	log.Infof("summarize: wrote %s", lay.summaryTSV())

	if krakenRows != nil {
		bar := newProgress(len(krakenRows), cfg.Progress)
		if err := writeKrakenTable(lay.krakenTable(), krakenRows, bar); err != nil {
			return err
		}
		log.Infof("summarize: wrote %s", lay.krakenTable())
		if cfg.Parquet {
			if err := writeKrakenParquet(lay.krakenParquet(), krakenRows); err != nil {
				return err
			}
			log.Infof("summarize: wrote %s", lay.krakenParquet())
		}
	}

	if mpa != nil {
		bar := newProgress(len(mpa.Rows), cfg.Progress)
		if err := writeMetaphlanTable(lay.metaphlanTable(), mpa, bar); err != nil {
			return err
		}
		log.Infof("summarize: wrote %s", lay.metaphlanTable())
		if cfg.Parquet {
			if err := writeMetaphlanParquet(lay.metaphlanParquet(), mpa); err != nil {
				return err
			}
			log.Infof("summarize: wrote %s", lay.metaphlanParquet())
		}
	}

	return nil
}
