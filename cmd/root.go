package cmd

import (
	"fmt"
	"os"
)

func Execute(args []string) {
	if len(args) < 1 {
		printUsage()
		os.Exit(2)
	}

	switch args[0] {
	case "prefilter":
		runPrefilter(args[1:])
	case "qcfilter":
		runQCFilter(args[1:])
	case "t2tfilter":
		runT2TFilter(args[1:])
	case "classify":
		runClassify(args[1:])
	case "summarize":
		runSummarize(args[1:])
	case "pipeline":
		runPipeline(args[1:])
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown subcommand: %s\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "pst2t - PathSeq-T2T read filtering and microbial classification pipeline")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  pst2t <command> [options]")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  prefilter  Select host-unaligned (and decoy-excluded) reads from the input BAM")
	fmt.Fprintln(os.Stderr, "  qcfilter   Host k-mer subtraction and quality filtering (GATK PathSeqFilterSpark)")
	fmt.Fprintln(os.Stderr, "  t2tfilter  Subtractive alignment against the T2T-CHM13 reference")
	fmt.Fprintln(os.Stderr, "  classify   Taxonomic classification (Kraken2, MetaPhlAn)")
	fmt.Fprintln(os.Stderr, "  summarize  Aggregate per-stage statistics into summary and RPM tables")
	fmt.Fprintln(os.Stderr, "  pipeline   Full pipeline: prefilter -> qcfilter -> t2tfilter -> classify -> summarize")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Run 'pst2t <command> -h' for command-specific options.")
}
