// Package objdump parses avr-objdump -d style textual disassembly into a
// sequence of per-function instruction blocks.
package objdump

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"avrstack/internal/diag"
)

// Instruction is one decoded disassembly line.
type Instruction struct {
	Addr     uint64
	Mnemonic string // lowercased
	Operands []string
	Comment  string // text after "; " on the source line, verbatim
	Raw      string // original operand text, preserved verbatim
}

// Kind classifies a Function by how it is reached.
type Kind int

const (
	KindNormal Kind = iota
	KindInterruptHandler
	KindEntry
)

// Function is one symbol's disassembled instruction block.
type Function struct {
	Name  string
	Entry uint64
	Insts []Instruction
	Kind  Kind
}

// codeSectionPrefixes lists the section-name prefixes the parser scans.
// Everything else (.comment, .debug_*, .eh_frame, ...) is skipped.
var codeSectionPrefixes = []string{".text", ".init", ".vectors"}

var (
	sectionHeaderRE = regexp.MustCompile(`^Disassembly of section\s+(\S+):\s*$`)
	symbolHeaderRE  = regexp.MustCompile(`^([0-9a-fA-F]+)\s+<([^>]+)>:\s*$`)
	// "  1a2:\t0c 94 34 00 \tjmp\t0x68\t; 0x68 <main>"
	instLineRE = regexp.MustCompile(`^\s*([0-9a-fA-F]+):\t[0-9a-fA-F ]*\t(\S+)(?:\t([^;]*))?(?:;\s*(.*))?$`)
	cloneSuffixRE = regexp.MustCompile(`\.\d+$`)
)

// Parse reads an objdump -d listing and returns its functions in the order
// the symbols appear in the listing (which, for output produced directly by
// objdump, is increasing address order).
//
// A listing with no recognized symbols is a Fatal-input error. Instruction
// lines that cannot be tokenized are discarded and counted as a
// recoverable-parse diagnostic; under diag.ModeStrict the first such line
// aborts the parse with a FatalError instead.
func Parse(r io.Reader, isrPrefix string, mode diag.Mode, d *diag.Diags) ([]Function, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var funcs []Function
	var cur *Function
	inCodeSection := true // tolerate listings with no explicit section header
	lineNo := 0

	flush := func() {
		if cur != nil {
			funcs = append(funcs, *cur)
			cur = nil
		}
	}

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		if m := sectionHeaderRE.FindStringSubmatch(line); m != nil {
			flush()
			inCodeSection = isCodeSection(m[1])
			continue
		}

		if m := symbolHeaderRE.FindStringSubmatch(line); m != nil {
			flush()
			if !inCodeSection {
				continue
			}
			addr, err := strconv.ParseUint(m[1], 16, 64)
			if err != nil {
				if rerr := diag.Recover(mode, d, "objdump", diag.KindRecoverableParse,
					"line %d: bad symbol address %q", lineNo, m[1]); rerr != nil {
					return nil, rerr
				}
				continue
			}
			name := CanonicalizeName(m[2])
			kind := KindNormal
			if isrPrefix != "" && strings.HasPrefix(name, isrPrefix) {
				kind = KindInterruptHandler
			}
			if name == "main" {
				kind = KindEntry
			}
			cur = &Function{Name: name, Entry: addr, Kind: kind}
			continue
		}

		if !inCodeSection || cur == nil {
			continue
		}

		if m := instLineRE.FindStringSubmatch(line); m != nil {
			addr, err := strconv.ParseUint(m[1], 16, 64)
			if err != nil {
				if rerr := diag.Recover(mode, d, "objdump", diag.KindRecoverableParse,
					"line %d: bad instruction address %q", lineNo, m[1]); rerr != nil {
					return nil, rerr
				}
				continue
			}
			mnemonic := strings.ToLower(strings.TrimSpace(m[2]))
			operandText := strings.TrimSpace(m[3])
			var operands []string
			if operandText != "" {
				for _, op := range strings.Split(operandText, ",") {
					operands = append(operands, strings.TrimSpace(op))
				}
			}
			cur.Insts = append(cur.Insts, Instruction{
				Addr:     addr,
				Mnemonic: mnemonic,
				Operands: operands,
				Comment:  strings.TrimSpace(m[4]),
				Raw:      operandText,
			})
			continue
		}

		// Unrecognized line within a function body (e.g. a raw ".word"
		// directive or an objdump annotation we don't model): discarded,
		// counted as recoverable-parse.
		if rerr := diag.Recover(mode, d, "objdump", diag.KindRecoverableParse,
			"line %d: unrecognized instruction line %q", lineNo, line); rerr != nil {
			return nil, rerr
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, diag.Fatal("objdump", fmt.Errorf("read: %w", err))
	}
	if len(funcs) == 0 {
		return nil, diag.Fatal("objdump", fmt.Errorf("no symbols parsed from disassembly listing"))
	}
	return funcs, nil
}

func isCodeSection(name string) bool {
	for _, p := range codeSectionPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// CanonicalizeName strips objdump clone-suffix artifacts ("foo.2" ->
// "foo", repeated until none remain, since LTO can stack several) and
// leaves demangled C names untouched otherwise.
func CanonicalizeName(name string) string {
	for {
		stripped := cloneSuffixRE.ReplaceAllString(name, "")
		if stripped == name {
			return name
		}
		name = stripped
	}
}

// ByAddress indexes functions by entry address, the dual index spec.md §9
// calls for alongside by-name lookup so downstream stages never rebuild
// string-keyed maps of their own.
func ByAddress(funcs []Function) map[uint64]*Function {
	idx := make(map[uint64]*Function, len(funcs))
	for i := range funcs {
		idx[funcs[i].Entry] = &funcs[i]
	}
	return idx
}

// ByName indexes functions by canonical name.
func ByName(funcs []Function) map[string]*Function {
	idx := make(map[string]*Function, len(funcs))
	for i := range funcs {
		idx[funcs[i].Name] = &funcs[i]
	}
	return idx
}
