package cmd

import (
	"flag"
	"runtime"
	"strings"
)

// runPipeline chains all five stages: prefilter -> qcfilter -> t2tfilter ->
// classify -> summarize. A stage failure aborts the remaining stages.
func runPipeline(args []string) {
	fs := flag.NewFlagSet("pipeline", flag.ExitOnError)
	input := fs.String("input", "", "Input BAM with host-aligned reads")
	outDir := fs.String("output-dir", "pst2t_output", "Pipeline output directory")
	sample := fs.String("sample-id", "", "Sample ID (default: input basename)")
	excludeList := fs.String("exclude-list", "", "BED file of decoy regions routed into the excluded read set")
	kmerFile := fs.String("kmer-file", "", "Host k-mer file for PathSeqFilterSpark (.hss/.bfi)")
	bwaImage := fs.String("filter-bwa-image", "", "Host BWA index image for the PathSeq host filter")
	ram := fs.Int("ram", 16, "Java heap for GATK in GB")
	aligner := fs.String("aligner", "bowtie2", "Aligner for the T2T subtraction (bowtie2|bwa)")
	index := fs.String("index", "", "T2T-CHM13 index base (default: $BOWTIE2_INDEXES)")
	classifiers := fs.String("classifier", "kraken2,metaphlan", "Comma-separated classifiers")
	krakenDB := fs.String("kraken-db", "", "Kraken2 database directory (default: $KRAKEN2_DEFAULT_DB)")
	metaphlanDB := fs.String("metaphlan-db", "", "MetaPhlAn database directory (default: $METAPHLAN_DB)")
	threads := fs.Int("threads", runtime.NumCPU(), "Threads for external tools")
	dontOverwrite := fs.Bool("dont-overwrite", false, "Skip stages whose outputs already exist")
	keep := fs.Bool("keep-intermediate", false, "Keep intermediate files")
	parquet := fs.Bool("parquet", false, "Also write the normalized tables as Parquet")
	progressOn := fs.Bool("progress", false, "Show progress while writing normalized tables")
	logLevel := fs.String("log-level", "info", "Log level (debug|info|warn|error)")
	if err := fs.Parse(args); err != nil {
		fatalf("parse args failed: %v", err)
	}

	if *input == "" {
		fatalf("input is required")
	}
	if *kmerFile == "" {
		fatalf("kmer-file is required")
	}
	switch *aligner {
	case "bowtie2", "bwa":
	default:
		fatalf("unsupported aligner %q (bowtie2|bwa)", *aligner)
	}
	idx := envOr(*index, "BOWTIE2_INDEXES")
	if idx == "" {
		fatalf("index is required (flag or $BOWTIE2_INDEXES)")
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
	if *sample == "" {
		*sample = sampleIDFromPath(*input)
	}

	classifyCfg := classifyConfig{
		Classifiers: classifierList,
		KrakenDB:    envOr(*krakenDB, "KRAKEN2_DEFAULT_DB"),
		MetaphlanDB: envOr(*metaphlanDB, "METAPHLAN_DB"),
		Threads:     *threads,
	}
	if classifyCfg.hasClassifier("kraken2") && classifyCfg.KrakenDB == "" {
		fatalf("kraken-db is required (flag or $KRAKEN2_DEFAULT_DB)")
	}

	lay := newLayout(*outDir, *sample)
	if err := lay.mkdirs(); err != nil {
		fatalf("%v", err)
	}

	kinds := []string{"unaligned"}
	if *excludeList != "" {
		kinds = append(kinds, "excluded")
	}

	log := newLogger(*logLevel)
	r := newRunner(log, *dontOverwrite, *keep)

	runPlan := func(name string, stages []stage, intermediates []string) {
		if err := r.runAll(stages, intermediates); err != nil {
			fatalf("%s failed: %v", name, err)
		}
	}

	stages, intermediates := prefilterPlan(lay, prefilterConfig{
		Input:       *input,
		ExcludeList: *excludeList,
		Threads:     *threads,
	})
	runPlan("prefilter", stages, intermediates)

	stages, intermediates = qcfilterPlan(lay, qcfilterConfig{
		KmerFile: *kmerFile,
		BwaImage: *bwaImage,
		RAMGB:    *ram,
		Threads:  *threads,
		Kinds:    kinds,
	})
	runPlan("qcfilter", stages, intermediates)

	stages, intermediates = t2tfilterPlan(lay, t2tfilterConfig{
		Aligner: *aligner,
		Index:   idx,
		Threads: *threads,
	})
	runPlan("t2tfilter", stages, intermediates)

	stages, intermediates = classifyPlan(lay, classifyCfg)
	runPlan("classify", stages, intermediates)

	if err := summarize(log, lay, summarizeConfig{Parquet: *parquet, Progress: *progressOn}); err != nil {
		fatalf("summarize failed: %v", err)
	}
}
