package cmd

import (
	"flag"
	"runtime"
	"strconv"
	"strings"
)

type prefilterConfig struct {
	Input       string
	ExcludeList string
	Threads     int
	ExtraArgs   []string
}

func runPrefilter(args []string) {
	fs := flag.NewFlagSet("prefilter", flag.ExitOnError)
	input := fs.String("input", "", "Input BAM with host-aligned reads")
	outDir := fs.String("output-dir", "pst2t_output", "Pipeline output directory")
	sample := fs.String("sample-id", "", "Sample ID (default: input basename)")
	excludeList := fs.String("exclude-list", "", "BED file of decoy regions routed into the excluded read set")
	threads := fs.Int("threads", runtime.NumCPU(), "Threads passed to samtools")
	dontOverwrite := fs.Bool("dont-overwrite", false, "Skip stages whose outputs already exist")
	keep := fs.Bool("keep-intermediate", false, "Keep intermediate files")
	extraArgs := fs.String("extra-args", "", "Extra samtools view arguments (space-separated)")
	logLevel := fs.String("log-level", "info", "Log level (debug|info|warn|error)")
	if err := fs.Parse(args); err != nil {
		fatalf("parse args failed: %v", err)
	}

	if *input == "" {
		fatalf("input is required")
	}
	if *sample == "" {
		*sample = sampleIDFromPath(*input)
	}

	lay := newLayout(*outDir, *sample)
	if err := lay.mkdirs(); err != nil {
		fatalf("%v", err)
	}

	cfg := prefilterConfig{
		Input:       *input,
		ExcludeList: *excludeList,
		Threads:     *threads,
		ExtraArgs:   strings.Fields(*extraArgs),
	}

	log := newLogger(*logLevel)
	r := newRunner(log, *dontOverwrite, *keep)
	stages, intermediates := prefilterPlan(lay, cfg)
	if err := r.runAll(stages, intermediates); err != nil {
		fatalf("prefilter failed: %v", err)
	}
}

// prefilterPlan selects the host-unaligned read set (and, with an exclude
// list, the decoy-excluded set) and records flagstats for the input and each
// retained set. The read-set BAMs feed qcfilter, so they are not
// intermediates of this subcommand.
func prefilterPlan(lay layout, cfg prefilterConfig) ([]stage, []string) {
	threads := strconv.Itoa(cfg.Threads)

	flagstat := func(name, bam, out string) stage {
		return stage{
			Name:       name,
			Program:    "samtools",
			Args:       []string{"flagstat", "-@", threads, "-O", "tsv", bam},
			Outputs:    []string{out},
			StdoutFile: out,
		}
	}

	unalignedArgs := []string{"view", "-@", threads, "-b", "-f", "4"}
	unalignedArgs = append(unalignedArgs, cfg.ExtraArgs...)
	unalignedArgs = append(unalignedArgs, "-o", lay.prefilterBAM("unaligned"), cfg.Input)

	stages := []stage{
		flagstat("prefilter.flagstat", cfg.Input, lay.inputFlagstat()),
		{
			Name:    "prefilter.unaligned",
			Program: "samtools",
			Args:    unalignedArgs,
			Outputs: []string{lay.prefilterBAM("unaligned")},
		},
		flagstat("prefilter.unaligned.flagstat", lay.prefilterBAM("unaligned"), lay.prefilterFlagstat("unaligned")),
	}

	if cfg.ExcludeList != "" {
		excludedArgs := []string{"view", "-@", threads, "-b", "-F", "4", "-L", cfg.ExcludeList}
		excludedArgs = append(excludedArgs, cfg.ExtraArgs...)
		excludedArgs = append(excludedArgs, "-o", lay.prefilterBAM("excluded"), cfg.Input)
		stages = append(stages,
			stage{
				Name:    "prefilter.excluded",
				Program: "samtools",
				Args:    excludedArgs,
				Outputs: []string{lay.prefilterBAM("excluded")},
			},
			flagstat("prefilter.excluded.flagstat", lay.prefilterBAM("excluded"), lay.prefilterFlagstat("excluded")),
		)
	}

	return stages, nil
}
