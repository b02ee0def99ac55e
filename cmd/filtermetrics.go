package cmd

import (
	"bufio"
	"strconv"
	"strings"
)

// Columns reported by GATK PathSeqFilterSpark, in metrics-file order.
var filterMetricsColumns = []string{
	"PRIMARY_READS",
	"READS_AFTER_PREALIGNED_HOST_FILTER",
	"READS_AFTER_QUALITY_AND_COMPLEXITY_FILTER",
	"READS_AFTER_HOST_FILTER",
	"READS_AFTER_DEDUPLICATION",
	"FINAL_PAIRED_READS",
	"FINAL_UNPAIRED_READS",
	"FINAL_TOTAL_READS",
}

// parseFilterMetrics extracts the numeric row of a PathSeq filter metrics
// file, keyed by header name. GATK writes a comment preamble of varying
// length, so the header row is located by its PRIMARY_READS prefix rather
// than by position. Non-numeric cells parse as 0, matching how absent
// categories are reported.
func parseFilterMetrics(path string) (map[string]int64, error) {
	in, err := openInput(path)
	if err != nil {
		return nil, &ParseError{File: path, Format: "PathSeq filter metrics", Msg: err.Error()}
	}
	defer func() {
		_ = in.Close()
	}()

	var header []string
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if header == nil {
			if !strings.HasPrefix(line, "PRIMARY_READS") {
				continue
			}
			header = strings.Split(line, "\t")
			continue
		}

		values := strings.Split(line, "\t")
		metrics := make(map[string]int64, len(header))
		for i, name := range header {
			var n int64
			if i < len(values) {
				if v, err := strconv.ParseInt(strings.TrimSpace(values[i]), 10, 64); err == nil {
					n = v
				}
			}
			metrics[name] = n
		}
		return metrics, nil
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{File: path, Format: "PathSeq filter metrics", Msg: err.Error()}
	}
	if header == nil {
		return nil, &ParseError{File: path, Format: "PathSeq filter metrics", Msg: "PRIMARY_READS header row not found"}
	}
	return nil, &ParseError{File: path, Format: "PathSeq filter metrics", Msg: "no value row after header"}
}
