package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jhaxce/subdive/pkg/core"
	"github.com/jhaxce/subdive/pkg/ip"
	"github.com/jhaxce/subdive/pkg/output"
	"github.com/jhaxce/subdive/pkg/wildcard"
	"go4.org/netipx"
)

// readLines returns args when present, otherwise the non-blank,
// non-comment lines of path ("" or "-" reads stdin)
func readLines(path string, args []string, stdin io.Reader) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}

	r := stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open input file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading input: %w", err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("no input (pass arguments, --input or stdin)")
	}
	return lines, nil
}

// parseCandidates turns "label" or "label|context" lines into candidates.
// Fully qualified names under domain are reduced to their label.
func parseCandidates(domain string, lines []string) []core.Candidate {
	candidates := make([]core.Candidate, 0, len(lines))
	for _, line := range lines {
		label, ctx, _ := strings.Cut(line, output.CSVSeparator)
		candidates = append(candidates, core.Candidate{
			Label:   wildcard.Relative(domain, label),
			Context: strings.TrimSpace(ctx),
		})
	}
	return candidates
}

// parseTargets parses address, CIDR and range arguments
func parseTargets(args []string) ([]netipx.IPRange, error) {
	ranges := make([]netipx.IPRange, 0, len(args))
	for _, arg := range args {
		r, err := ip.ParseTarget(arg)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}
