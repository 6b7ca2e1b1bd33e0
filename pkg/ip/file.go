package ip

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"go4.org/netipx"
)

// ParseInput reads targets, one per line. Supports:
// - Single IPs: 93.184.216.34, 2001:db8::1
// - CIDR notation: 93.184.216.0/24
// - IP ranges: 93.184.216.1-93.184.216.254
// - Comments (lines starting with #) and blank lines
func ParseInput(r io.Reader) ([]netipx.IPRange, error) {
	var ranges []netipx.IPRange
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		rng, err := ParseTarget(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		ranges = append(ranges, rng)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading input: %w", err)
	}

	if len(ranges) == 0 {
		return nil, fmt.Errorf("no valid IPs or ranges found in input")
	}

	return ranges, nil
}

// ParseInputFile reads targets from a file, see ParseInput
func ParseInputFile(path string) ([]netipx.IPRange, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()

	return ParseInput(file)
}
