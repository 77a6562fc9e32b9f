// Package sizereport parses avr-size's Berkeley-format summary line into
// integer section byte counts.
package sizereport

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"avrstack/internal/diag"
)

// Sizes holds the three section totals the solver needs.
type Sizes struct {
	Text int
	Data int
	Bss  int
}

// ParseFile opens path and parses it. Missing/malformed input is fatal
// (spec.md §4.4).
func ParseFile(path string) (Sizes, error) {
	f, err := os.Open(path)
	if err != nil {
		return Sizes{}, diag.Fatal("sizereport", fmt.Errorf("open %s: %w", path, err))
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a Berkeley `size` summary:
//
//	   text    data     bss     dec     hex filename
//	    512      12      44     568     238 program.elf
//
// The first line whose first three fields are integers is the data line.
// Every line before it that does not parse that way (a header, or any other
// non-numeric line) is skipped, not rejected. Input with no such data line
// is fatal.
func Parse(r io.Reader) (Sizes, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		text, err1 := strconv.Atoi(fields[0])
		data, err2 := strconv.Atoi(fields[1])
		bss, err3 := strconv.Atoi(fields[2])
		if err1 != nil || err2 != nil || err3 != nil {
			// Header line ("   text    data     bss ...") or other noise;
			// keep scanning for the data line.
			continue
		}
		return Sizes{Text: text, Data: data, Bss: bss}, nil
	}
	if err := scanner.Err(); err != nil {
		return Sizes{}, diag.Fatal("sizereport", fmt.Errorf("read: %w", err))
	}
	return Sizes{}, diag.Fatal("sizereport", fmt.Errorf("no data line found in size summary"))
}
