package dataset

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nvandessel/depcorr/internal/pathutil"
)

// ReadGeneList reads one gene symbol per line. Surrounding whitespace is
// trimmed, blank lines and '#' comments are skipped, and repeated symbols
// are dropped keeping the first occurrence.
func ReadGeneList(r io.Reader) ([]string, error) {
	var genes []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if seen[line] {
			continue
		}
		seen[line] = true
		genes = append(genes, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading gene list: %w", err)
	}
	return genes, nil
}

// LoadGeneList reads a gene list file.
func LoadGeneList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening gene list %s: %w", pathutil.RedactPath(path), err)
	}
	defer f.Close()
	return ReadGeneList(f)
}
