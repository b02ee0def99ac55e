package cmd

import (
	"flag"
	"os"
	"runtime"
	"strconv"
	"strings"
)

type t2tfilterConfig struct {
	Aligner   string
	Index     string
	Threads   int
	ExtraArgs []string
}

func runT2TFilter(args []string) {
	fs := flag.NewFlagSet("t2tfilter", flag.ExitOnError)
	outDir := fs.String("output-dir", "pst2t_output", "Pipeline output directory")
	sample := fs.String("sample-id", "", "Sample ID")
	aligner := fs.String("aligner", "bowtie2", "Aligner for the T2T subtraction (bowtie2|bwa)")
	index := fs.String("index", "", "T2T-CHM13 index base (default: $BOWTIE2_INDEXES)")
	threads := fs.Int("threads", runtime.NumCPU(), "Aligner and samtools threads")
	dontOverwrite := fs.Bool("dont-overwrite", false, "Skip stages whose outputs already exist")
	keep := fs.Bool("keep-intermediate", false, "Keep intermediate files")
	extraArgs := fs.String("extra-args", "", "Extra aligner arguments (space-separated)")
	logLevel := fs.String("log-level", "info", "Log level (debug|info|warn|error)")
	if err := fs.Parse(args); err != nil {
		fatalf("parse args failed: %v", err)
	}

	if *sample == "" {
		fatalf("sample-id is required")
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

	lay := newLayout(*outDir, *sample)
	if err := lay.mkdirs(); err != nil {
		fatalf("%v", err)
	}

	cfg := t2tfilterConfig{
		Aligner:   *aligner,
		Index:     idx,
		Threads:   *threads,
		ExtraArgs: strings.Fields(*extraArgs),
	}

	log := newLogger(*logLevel)
	r := newRunner(log, *dontOverwrite, *keep)
	stages, intermediates := t2tfilterPlan(lay, cfg)
	if err := r.runAll(stages, intermediates); err != nil {
		fatalf("t2tfilter failed: %v", err)
	}
}

// t2tfilterPlan aligns the qc-filtered paired and unpaired read sets against
// the T2T reference, splits aligned from unaligned, and records a flagstat
// for each split. Only the unaligned BAMs survive cleanup; they are the
// classify stage's input.
func t2tfilterPlan(lay layout, cfg t2tfilterConfig) ([]stage, []string) {
	threads := strconv.Itoa(cfg.Threads)

	var stages []stage
	var intermediates []string

	flagstat := func(name, bam, out string) stage {
		return stage{
			Name:       name,
			Program:    "samtools",
			Args:       []string{"flagstat", "-@", threads, "-O", "tsv", bam},
			Outputs:    []string{out},
			StdoutFile: out,
		}
	}

	for _, pairing := range []string{"paired", "unpaired"} {
		sam := lay.t2tSAM(pairing)
		alnBAM := lay.t2tBAM(pairing, "aln")
		unalnBAM := lay.t2tBAM(pairing, "unaln")

		var fastqs []string
		if pairing == "paired" {
			fq1 := lay.qcfiltFastq(pairing, "1")
			fq2 := lay.qcfiltFastq(pairing, "2")
			fastqs = []string{fq1, fq2}
			stages = append(stages, stage{
				Name:    "t2tfilter.fastq_paired",
				Program: "samtools",
				Args: []string{"fastq", "-@", threads,
					"-1", fq1, "-2", fq2,
					"-0", os.DevNull, "-s", os.DevNull, "-n",
					lay.qcfiltBAM(pairing)},
				Outputs: fastqs,
			})
		} else {
			fq := lay.qcfiltFastq(pairing, "")
			fastqs = []string{fq}
			stages = append(stages, stage{
				Name:       "t2tfilter.fastq_unpaired",
				Program:    "samtools",
				Args:       []string{"fastq", "-@", threads, lay.qcfiltBAM(pairing)},
				Outputs:    fastqs,
				StdoutFile: fq,
			})
		}

		stages = append(stages,
			alignStage(cfg, pairing, fastqs, sam),
			stage{
				Name:    "t2tfilter.split_aln_" + pairing,
				Program: "samtools",
				Args:    []string{"view", "-@", threads, "-b", "-F", "4", "-o", alnBAM, sam},
				Outputs: []string{alnBAM},
			},
			stage{
				Name:    "t2tfilter.split_unaln_" + pairing,
				Program: "samtools",
				Args:    []string{"view", "-@", threads, "-b", "-f", "4", "-o", unalnBAM, sam},
				Outputs: []string{unalnBAM},
			},
			flagstat("t2tfilter.flagstat_aln_"+pairing, alnBAM, lay.t2tFlagstat(pairing, "aln")),
			flagstat("t2tfilter.flagstat_unaln_"+pairing, unalnBAM, lay.t2tFlagstat(pairing, "unaln")),
		)

		intermediates = append(intermediates, fastqs...)
		intermediates = append(intermediates, sam, alnBAM)
	}

	return stages, intermediates
}

func alignStage(cfg t2tfilterConfig, pairing string, fastqs []string, sam string) stage {
	threads := strconv.Itoa(cfg.Threads)

	if cfg.Aligner == "bwa" {
		args := []string{"mem", "-t", threads}
		args = append(args, cfg.ExtraArgs...)
		args = append(args, cfg.Index)
		args = append(args, fastqs...)
		return stage{
			Name:       "t2tfilter.align_" + pairing,
			Program:    "bwa",
			Args:       args,
			Outputs:    []string{sam},
			StdoutFile: sam,
		}
	}

	args := []string{"-p", threads, "-x", cfg.Index}
	if len(fastqs) == 2 {
		args = append(args, "-1", fastqs[0], "-2", fastqs[1])
	} else {
		args = append(args, "-U", fastqs[0])
	}
	args = append(args, cfg.ExtraArgs...)
	args = append(args, "-S", sam)
	return stage{
		Name:    "t2tfilter.align_" + pairing,
		Program: "bowtie2",
		Args:    args,
		Outputs: []string{sam},
	}
}
