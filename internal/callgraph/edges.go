package callgraph

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"avrstack/internal/objdump"
)

// hexInComment pulls the leading hex address out of an objdump target
// comment, e.g. "0xa0 <adc_read>" -> "a0".
var hexInComment = regexp.MustCompile(`^0x([0-9a-fA-F]+)\b`)

// resolveDirectTarget resolves the callee of a call/rcall/jmp/rjmp
// instruction. objdump always annotates these with a "; <addr> <name>"
// comment when the target is known; fall back to the raw operand (absolute
// calls encode a literal hex address) when there's no comment.
func resolveDirectTarget(inst objdump.Instruction, byAddr map[uint64]*objdump.Function) (string, bool) {
	if inst.Comment != "" {
		if m := hexInComment.FindStringSubmatch(inst.Comment); m != nil {
			addr, err := strconv.ParseUint(m[1], 16, 64)
			if err == nil {
				if fn, ok := byAddr[addr]; ok {
					return fn.Name, true
				}
			}
		}
	}
	if len(inst.Operands) == 1 {
		op := strings.TrimPrefix(strings.TrimSpace(inst.Operands[0]), "0x")
		if addr, err := strconv.ParseUint(op, 16, 64); err == nil {
			if fn, ok := byAddr[addr]; ok {
				return fn.Name, true
			}
		}
	}
	return "", false
}

// addressTakenOperandRE extracts the symbol inside lo8()/hi8()/pm_lo8()/
// pm_hi8() wrappers, the textual form avr-gcc emits when it loads a
// function pointer into the Z register ahead of an icall/eicall.
var addressTakenOperandRE = regexp.MustCompile(`(?:pm_)?(?:lo8|hi8)\(([A-Za-z_][A-Za-z0-9_]*)\)`)

// AddressTakenSet implements spec.md §9's one-pass indirect-call resolution:
// collect every function symbol whose address is loaded into a register
// anywhere in the program (via an lo8/hi8/pm_lo8/pm_hi8-wrapped operand, or
// via a comment naming the function on an ldi into r30/r31), and treat that
// set as the universe of possible icall/eicall targets.
func AddressTakenSet(funcs []objdump.Function, byAddr map[uint64]*objdump.Function) []string {
	byName := objdump.ByName(funcs)
	seen := make(map[string]bool)

	for _, f := range funcs {
		for _, inst := range f.Insts {
			if inst.Mnemonic != "ldi" || len(inst.Operands) < 2 {
				continue
			}
			dst := strings.ToLower(inst.Operands[0])
			if dst != "r30" && dst != "r31" {
				continue
			}
			if m := addressTakenOperandRE.FindStringSubmatch(inst.Operands[1]); m != nil {
				if _, ok := byName[m[1]]; ok {
					seen[m[1]] = true
				}
				continue
			}
			if inst.Comment != "" {
				if m := hexInComment.FindStringSubmatch(inst.Comment); m != nil {
					if addr, err := strconv.ParseUint(m[1], 16, 64); err == nil {
						if fn, ok := byAddr[addr]; ok {
							seen[fn.Name] = true
						}
					}
				}
			}
		}
	}

	return lo.Keys(seen)
}
