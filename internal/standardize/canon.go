package standardize

import (
	"bufio"
	_ "embed"
	"fmt"
	"os"
	"strings"
)

//go:embed canon_universities.txt
var defaultUniversities string

//go:embed canon_programs.txt
var defaultPrograms string

// Canon holds the curated canonical name lists that standardization targets.
type Canon struct {
	institutions []string
	programs     []string
	instIndex    map[string]string // lowercase -> canonical form
	progIndex    map[string]string
}

// DefaultCanon loads the canonical lists embedded in the binary.
func DefaultCanon() *Canon {
	return newCanon(splitLines(defaultUniversities), splitLines(defaultPrograms))
}

// LoadCanon reads canonical lists from the given files, one entry per line.
// An empty path falls back to the embedded default for that list.
func LoadCanon(institutionsPath, programsPath string) (*Canon, error) {
	institutions := splitLines(defaultUniversities)
	programs := splitLines(defaultPrograms)

	if institutionsPath != "" {
		lines, err := readLines(institutionsPath)
		if err != nil {
			return nil, fmt.Errorf("load canonical institutions: %w", err)
		}
		institutions = lines
	}
	if programsPath != "" {
		lines, err := readLines(programsPath)
		if err != nil {
			return nil, fmt.Errorf("load canonical programs: %w", err)
		}
		programs = lines
	}
	return newCanon(institutions, programs), nil
}

func newCanon(institutions, programs []string) *Canon {
	c := &Canon{
		institutions: institutions,
		programs:     programs,
		instIndex:    make(map[string]string, len(institutions)),
		progIndex:    make(map[string]string, len(programs)),
	}
	for _, name := range institutions {
		c.instIndex[strings.ToLower(name)] = name
	}
	for _, name := range programs {
		c.progIndex[strings.ToLower(name)] = name
	}
	return c
}

// Entries returns the canonical list for kind.
func (c *Canon) Entries(kind Kind) []string {
	if kind == KindProgram {
		return c.programs
	}
	return c.institutions
}

// Lookup reports the canonical form for name if it matches a list entry
// (case-insensitively).
func (c *Canon) Lookup(name string, kind Kind) (string, bool) {
	index := c.instIndex
	if kind == KindProgram {
		index = c.progIndex
	}
	canonical, ok := index[strings.ToLower(strings.TrimSpace(name))]
	return canonical, ok
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func splitLines(blob string) []string {
	var lines []string
	for _, line := range strings.Split(blob, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
