package cmd

import (
	"flag"
	"os"
	"runtime"
	"strconv"
	"strings"
)

type classifyConfig struct {
	Classifiers []string
	KrakenDB    string
	MetaphlanDB string
	Threads     int
	ExtraArgs   []string
}

func runClassify(args []string) {
	fs := flag.NewFlagSet("classify", flag.ExitOnError)
	outDir := fs.String("output-dir", "pst2t_output", "Pipeline output directory")
	sample := fs.String("sample-id", "", "Sample ID")
	classifiers := fs.String("classifier", "kraken2,metaphlan", "Comma-separated classifiers")
	krakenDB := fs.String("kraken-db", "", "Kraken2 database directory (default: $KRAKEN2_DEFAULT_DB)")
	metaphlanDB := fs.String("metaphlan-db", "", "MetaPhlAn database directory (default: $METAPHLAN_DB)")
	threads := fs.Int("threads", runtime.NumCPU(), "Classifier threads")
	dontOverwrite := fs.Bool("dont-overwrite", false, "Skip stages whose outputs already exist")
	keep := fs.Bool("keep-intermediate", false, "Keep intermediate files")
	extraArgs := fs.String("extra-args", "", "Extra classifier arguments (space-separated)")
	logLevel := fs.String("log-level", "info", "Log level (debug|info|warn|error)")
	if err := fs.Parse(args); err != nil {
		fatalf("parse args failed: %v", err)
	}

	if *sample == "" {
		fatalf("sample-id is required")
	}
	classifierList := splitList(*classifiers)
	if len(classifierList) == 0 {
		fatalf("classifier must not be empty")
	}
	for _, name := range classifierList {
		switch strings.ToLower(name) {
		case "kraken2", "metaphlan":
		default:
			fatalf("unsupported classifier %q (kraken2|metaphlan)", name)
		}
	}

	cfg := classifyConfig{
		Classifiers: classifierList,
		KrakenDB:    envOr(*krakenDB, "KRAKEN2_DEFAULT_DB"),
		MetaphlanDB: envOr(*metaphlanDB, "METAPHLAN_DB"),
		Threads:     *threads,
		ExtraArgs:   strings.Fields(*extraArgs),
	}
	if cfg.hasClassifier("kraken2") && cfg.KrakenDB == "" {
		fatalf("kraken-db is required (flag or $KRAKEN2_DEFAULT_DB)")
	}

	lay := newLayout(*outDir, *sample)
	if err := lay.mkdirs(); err != nil {
		fatalf("%v", err)
	}

	log := newLogger(*logLevel)
	r := newRunner(log, *dontOverwrite, *keep)
	stages, intermediates := classifyPlan(lay, cfg)
	if err := r.runAll(stages, intermediates); err != nil {
		fatalf("classify failed: %v", err)
	}
}

func (c classifyConfig) hasClassifier(name string) bool {
	for _, item := range c.Classifiers {
		if strings.EqualFold(item, name) {
			return true
		}
	}
	return false
}

// classifyPlan converts the T2T-unaligned read sets back to FASTQ and runs
// the selected classifiers. Kraken2 runs separately on the paired and
// unpaired sets (summarize merges the reports); MetaPhlAn takes all reads in
// one pass.
func classifyPlan(lay layout, cfg classifyConfig) ([]stage, []string) {
	threads := strconv.Itoa(cfg.Threads)

	fq1 := lay.classifyFastq("paired", "1")
	fq2 := lay.classifyFastq("paired", "2")
	fqU := lay.classifyFastq("unpaired", "")

	stages := []stage{
		{
			Name:    "classify.fastq_paired",
			Program: "samtools",
			Args: []string{"fastq", "-@", threads,
				"-1", fq1, "-2", fq2,
				"-0", os.DevNull, "-s", os.DevNull, "-n",
				lay.t2tBAM("paired", "unaln")},
			Outputs: []string{fq1, fq2},
		},
		{
			Name:       "classify.fastq_unpaired",
			Program:    "samtools",
			Args:       []string{"fastq", "-@", threads, lay.t2tBAM("unpaired", "unaln")},
			Outputs:    []string{fqU},
			StdoutFile: fqU,
		},
	}
	intermediates := []string{fq1, fq2, fqU}

	if cfg.hasClassifier("kraken2") {
		pairedArgs := []string{"--db", cfg.KrakenDB, "--threads", threads,
			"--report", lay.krakenReport("paired"), "--output", os.DevNull}
		pairedArgs = append(pairedArgs, cfg.ExtraArgs...)
		pairedArgs = append(pairedArgs, "--paired", fq1, fq2)

		unpairedArgs := []string{"--db", cfg.KrakenDB, "--threads", threads,
			"--report", lay.krakenReport("unpaired"), "--output", os.DevNull}
		unpairedArgs = append(unpairedArgs, cfg.ExtraArgs...)
		unpairedArgs = append(unpairedArgs, fqU)

		stages = append(stages,
			stage{
				Name:    "classify.kraken2_paired",
				Program: "kraken2",
				Args:    pairedArgs,
				Outputs: []string{lay.krakenReport("paired")},
			},
			stage{
				Name:    "classify.kraken2_unpaired",
				Program: "kraken2",
				Args:    unpairedArgs,
				Outputs: []string{lay.krakenReport("unpaired")},
			},
		)
	}

	if cfg.hasClassifier("metaphlan") {
		args := []string{strings.Join([]string{fq1, fq2, fqU}, ","),
			"--input-type", "fastq",
			"--nproc", threads,
			"--bowtie2out", lay.metaphlanBowtie2Out(),
			"-o", lay.metaphlanReport(),
		}
		if cfg.MetaphlanDB != "" {
			args = append(args, "--bowtie2db", cfg.MetaphlanDB)
		}
		args = append(args, cfg.ExtraArgs...)

		stages = append(stages, stage{
			Name:    "classify.metaphlan",
			Program: "metaphlan",
			Args:    args,
			Outputs: []string{lay.metaphlanReport()},
		})
		intermediates = append(intermediates, lay.metaphlanBowtie2Out())
	}

	return stages, intermediates
}
