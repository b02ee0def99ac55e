package cmd

import (
	"flag"
	"fmt"
	"runtime"
	"strings"
)

type qcfilterConfig struct {
	KmerFile  string
	BwaImage  string
	RAMGB     int
	Threads   int
	Kinds     []string
	ExtraArgs []string
}

func runQCFilter(args []string) {
	fs := flag.NewFlagSet("qcfilter", flag.ExitOnError)
	outDir := fs.String("output-dir", "pst2t_output", "Pipeline output directory")
	sample := fs.String("sample-id", "", "Sample ID")
	kmerFile := fs.String("kmer-file", "", "Host k-mer file for PathSeqFilterSpark (.hss/.bfi)")
	bwaImage := fs.String("filter-bwa-image", "", "Host BWA index image for the PathSeq host filter")
	ram := fs.Int("ram", 16, "Java heap for GATK in GB")
	threads := fs.Int("threads", runtime.NumCPU(), "Spark local cores")
	dontOverwrite := fs.Bool("dont-overwrite", false, "Skip stages whose outputs already exist")
	keep := fs.Bool("keep-intermediate", false, "Keep intermediate files")
	extraArgs := fs.String("extra-args", "", "Extra PathSeqFilterSpark arguments (space-separated)")
	logLevel := fs.String("log-level", "info", "Log level (debug|info|warn|error)")
	if err := fs.Parse(args); err != nil {
		fatalf("parse args failed: %v", err)
	}

	if *sample == "" {
		fatalf("sample-id is required")
	}
	if *kmerFile == "" {
		fatalf("kmer-file is required")
	}

	lay := newLayout(*outDir, *sample)
	if err := lay.mkdirs(); err != nil {
		fatalf("%v", err)
	}

	kinds := []string{"unaligned"}
	if fileExists(lay.prefilterBAM("excluded")) {
		kinds = append(kinds, "excluded")
	}

	cfg := qcfilterConfig{
		KmerFile:  *kmerFile,
		BwaImage:  *bwaImage,
		RAMGB:     *ram,
		Threads:   *threads,
		Kinds:     kinds,
		ExtraArgs: strings.Fields(*extraArgs),
	}

	log := newLogger(*logLevel)
	r := newRunner(log, *dontOverwrite, *keep)
	stages, intermediates := qcfilterPlan(lay, cfg)
	if err := r.runAll(stages, intermediates); err != nil {
		fatalf("qcfilter failed: %v", err)
	}
}

// qcfilterPlan runs PathSeqFilterSpark once per prefilter read set, then
// merges the per-kind paired and unpaired outputs into the read sets the
// t2tfilter stage consumes.
func qcfilterPlan(lay layout, cfg qcfilterConfig) ([]stage, []string) {
	var stages []stage
	var intermediates []string

	javaOpts := fmt.Sprintf("-Xmx%dg", cfg.RAMGB)
	for _, kind := range cfg.Kinds {
		args := []string{
			"--java-options", javaOpts,
			"PathSeqFilterSpark",
			"--input", lay.prefilterBAM(kind),
			"--paired-output", lay.qcfiltKindBAM(kind, "paired"),
			"--unpaired-output", lay.qcfiltKindBAM(kind, "unpaired"),
			"--filter-metrics", lay.filterMetrics(kind),
			"--kmer-file", cfg.KmerFile,
		}
		if cfg.BwaImage != "" {
			args = append(args, "--filter-bwa-image", cfg.BwaImage)
		}
		args = append(args, cfg.ExtraArgs...)
		args = append(args, "--", "--spark-master", fmt.Sprintf("local[%d]", cfg.Threads))

		stages = append(stages, stage{
			Name:    "qcfilter." + kind,
			Program: "gatk",
			Args:    args,
			Outputs: []string{lay.filterMetrics(kind)},
		})
		intermediates = append(intermediates,
			lay.qcfiltKindBAM(kind, "paired"),
			lay.qcfiltKindBAM(kind, "unpaired"),
		)
	}

	for _, pairing := range []string{"paired", "unpaired"} {
		args := []string{"cat", "-o", lay.qcfiltBAM(pairing)}
		for _, kind := range cfg.Kinds {
			args = append(args, lay.qcfiltKindBAM(kind, pairing))
		}
		stages = append(stages, stage{
			Name:    "qcfilter.merge_" + pairing,
			Program: "samtools",
			Args:    args,
			Outputs: []string{lay.qcfiltBAM(pairing)},
		})
	}

	return stages, intermediates
}
