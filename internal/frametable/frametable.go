// Package frametable parses avr-gcc -fstack-usage listings into a
// name -> local frame bytes mapping.
package frametable

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"avrstack/internal/diag"
)

// Qualifier is the third field of a .su line.
type Qualifier string

const (
	QualifierStatic  Qualifier = "static"
	QualifierDynamic Qualifier = "dynamic"
	QualifierBounded Qualifier = "bounded"
)

// Entry is one function's resolved frame-size record.
type Entry struct {
	Bytes   int
	Dynamic bool
}

// Table is the canonicalized name -> Entry mapping produced by Parse.
// Duplicate names are resolved by taking the maximum byte count seen.
type Table struct {
	entries map[string]Entry
}

// Lookup returns the entry for name, if any.
func (t Table) Lookup(name string) (Entry, bool) {
	e, ok := t.entries[name]
	return e, ok
}

// Len returns the number of distinct function entries.
func (t Table) Len() int { return len(t.entries) }

// Names returns every recorded function name, sorted, for deterministic
// iteration (spec.md §5's reproducibility guarantee).
func (t Table) Names() []string {
	names := make([]string, 0, len(t.entries))
	for n := range t.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ParseFile opens path and parses it as a .su listing. A missing file is a
// Fatal-input error (spec.md §4.1).
func ParseFile(path string, mode diag.Mode, d *diag.Diags) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, diag.Fatal("frametable", fmt.Errorf("open %s: %w", path, err))
	}
	defer f.Close()
	return Parse(f, mode, d)
}

// Parse reads one or more concatenated .su listings from r. Each line has
// the shape:
//
//	<path>:<line>:<col>:<function>\t<bytes>\t<qualifier>
//
// A missing qualifier column (seen with some -flto toolchains) is treated
// as "static". Lines that don't tokenize are skipped with a recoverable
// diagnostic rather than aborting the whole file; under diag.ModeStrict the
// first such line aborts with a FatalError instead.
func Parse(r io.Reader, mode diag.Mode, d *diag.Diags) (Table, error) {
	t := Table{entries: make(map[string]Entry)}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		name, bytesVal, qual, ok := parseLine(line)
		if !ok {
			if err := diag.Recover(mode, d, "frametable", diag.KindRecoverableParse,
				"line %d: malformed .su entry %q", lineNo, line); err != nil {
				return Table{}, err
			}
			continue
		}

		entry := Entry{Bytes: bytesVal, Dynamic: qual == QualifierDynamic}
		if existing, found := t.entries[name]; found {
			if existing.Bytes > entry.Bytes {
				entry.Bytes = existing.Bytes
			}
			entry.Dynamic = entry.Dynamic || existing.Dynamic
		}
		t.entries[name] = entry
	}
	if err := scanner.Err(); err != nil {
		return Table{}, diag.Fatal("frametable", fmt.Errorf("read: %w", err))
	}

	return t, nil
}

// parseLine tokenizes one .su line. The first field is
// "<path>:<line>:<col>:<function>" — function names themselves never
// contain ':', so taking the text after the last colon isolates it even
// when the path contains colons (rare, but Windows-style paths do).
func parseLine(line string) (name string, bytes int, qual Qualifier, ok bool) {
	fields := strings.Split(line, "\t")
	if len(fields) < 2 {
		return "", 0, "", false
	}

	loc := fields[0]
	idx := strings.LastIndex(loc, ":")
	if idx < 0 || idx == len(loc)-1 {
		return "", 0, "", false
	}
	name = loc[idx+1:]
	if name == "" {
		return "", 0, "", false
	}

	bytesVal, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil {
		return "", 0, "", false
	}

	qual = QualifierStatic
	if len(fields) >= 3 {
		switch Qualifier(strings.TrimSpace(fields[2])) {
		case QualifierStatic, QualifierDynamic, QualifierBounded:
			qual = Qualifier(strings.TrimSpace(fields[2]))
		}
	}

	return name, bytesVal, qual, true
}
