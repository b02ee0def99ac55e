package cmd

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// flagstatCounts holds the read counts extracted from an alignment-statistics
// report. Primary falls back to Total for flagstat versions that predate the
// primary counter.
type flagstatCounts struct {
	Total   int64
	Primary int64
	Mapped  int64
}

// parseFlagstat reads a samtools flagstat report in either the 3-column TSV
// form ("5995946\t0\tprimary") or the classic text form
// ("1000 + 0 in total (QC-passed reads + QC-failed reads)").
func parseFlagstat(path string) (*flagstatCounts, error) {
	in, err := openInput(path)
	if err != nil {
		return nil, &ParseError{File: path, Format: "flagstat report", Msg: err.Error()}
	}
	defer func() {
		_ = in.Close()
	}()

	var counts flagstatCounts
	var found, foundPrimary bool

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}

		var value string
		var label string
		if strings.Contains(line, "\t") {
			parts := strings.Split(line, "\t")
			if len(parts) < 3 {
				continue
			}
			value = strings.TrimSpace(parts[0])
			label = strings.TrimSpace(parts[2])
		} else {
			// "N + M label (...)"
			fields := strings.SplitN(line, " ", 4)
			if len(fields) < 4 || fields[1] != "+" {
				continue
			}
			value = fields[0]
			label = fields[3]
			if idx := strings.Index(label, " ("); idx >= 0 {
				label = label[:idx]
			}
		}

		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			// Percentage rows ("98.52%") and N/A rows carry no counts.
			continue
		}

		switch {
		case label == "primary":
			counts.Primary = n
			foundPrimary = true
			found = true
		case strings.HasPrefix(label, "primary "):
			// primary mapped, primary duplicates
		case strings.HasPrefix(label, "total") || strings.HasPrefix(label, "in total"):
			counts.Total = n
			found = true
		case label == "mapped":
			counts.Mapped = n
			found = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{File: path, Format: "flagstat report", Msg: err.Error()}
	}
	if !found {
		return nil, &ParseError{File: path, Format: "flagstat report", Msg: "no read counts found"}
	}
	if !foundPrimary {
		counts.Primary = counts.Total
	}
	return &counts, nil
}

// formatPct renders n/total*100 with two decimals, reporting 0.00 for an
// empty denominator instead of failing.
func formatPct(n, total int64) string {
	if total <= 0 {
		return "0.00"
	}
	return fmt.Sprintf("%.2f", 100*float64(n)/float64(total))
}
