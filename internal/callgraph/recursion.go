package callgraph

import (
	"strconv"
	"strings"

	"avrstack/internal/objdump"
)

// RecursionPattern names the argument-reduction shape a self-recursive call
// site exhibits, per spec.md §5's closed-form depth bounds.
type RecursionPattern int

const (
	PatternUnknown RecursionPattern = iota
	PatternMinusK
	PatternDivK
	PatternShiftK
)

func (p RecursionPattern) String() string {
	switch p {
	case PatternMinusK:
		return "minus_k"
	case PatternDivK:
		return "div_k"
	case PatternShiftK:
		return "shift_k"
	default:
		return "unknown"
	}
}

type candidate struct {
	pattern RecursionPattern
	k       int
}

// ClassifyRecursion inspects the instructions leading up to a self-call site
// (insts[siteIdx]) and classifies the recursion pattern:
//
//   - minus_k: a subi/sbiw with a constant immediate precedes the call.
//   - div_k: a call/rcall to a division-helper routine (libgcc's
//     __[u]div*/mod* family) precedes the call, with a constant loaded into
//     a register beforehand (the divisor).
//   - shift_k: a run of consecutive asr/lsr instructions on the same
//     register precedes the call.
//
// When more than one pattern is present, the one with the largest per-call
// depth reduction wins, as scored by patternStrength: div_k scores 2k,
// shift_k scores 2^k, minus_k scores k. On equal scores the earlier of
// minus_k, div_k, shift_k (in that order) is kept.
func ClassifyRecursion(insts []objdump.Instruction, siteIdx int) (RecursionPattern, int) {
	if siteIdx < 0 || siteIdx > len(insts) {
		return PatternUnknown, 0
	}
	window := insts[:siteIdx]

	var candidates []candidate
	if k, ok := findMinusK(window); ok {
		candidates = append(candidates, candidate{PatternMinusK, k})
	}
	if k, ok := findDivK(window); ok {
		candidates = append(candidates, candidate{PatternDivK, k})
	}
	if k, ok := findShiftK(window); ok {
		candidates = append(candidates, candidate{PatternShiftK, k})
	}
	if len(candidates) == 0 {
		return PatternUnknown, 0
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if patternStrength(c.pattern, c.k) > patternStrength(best.pattern, best.k) {
			best = c
		}
	}
	return best.pattern, best.k
}

// patternStrength gives a comparable "depth reduction per call" score so
// candidates of different families can be ranked against each other.
func patternStrength(p RecursionPattern, k int) float64 {
	switch p {
	case PatternDivK:
		return float64(k) * 2 // divisor reduces the argument multiplicatively
	case PatternShiftK:
		return float64(uint(1) << uint(k))
	case PatternMinusK:
		return float64(k)
	default:
		return 0
	}
}

func findMinusK(insts []objdump.Instruction) (int, bool) {
	for i := len(insts) - 1; i >= 0; i-- {
		in := insts[i]
		if in.Mnemonic != "subi" && in.Mnemonic != "sbiw" {
			continue
		}
		if len(in.Operands) < 2 {
			continue
		}
		if k, ok := parseImmediate(in.Operands[1]); ok {
			return k, true
		}
	}
	return 0, false
}

func findDivK(insts []objdump.Instruction) (int, bool) {
	for i := len(insts) - 1; i >= 0; i-- {
		in := insts[i]
		if in.Mnemonic != "call" && in.Mnemonic != "rcall" {
			continue
		}
		target := strings.ToLower(in.Comment)
		if !strings.Contains(target, "div") && !strings.Contains(target, "mod") {
			continue
		}
		// Divisor is loaded into a register ahead of the helper call.
		for j := i - 1; j >= 0; j-- {
			prev := insts[j]
			if prev.Mnemonic != "ldi" || len(prev.Operands) < 2 {
				continue
			}
			if k, ok := parseImmediate(prev.Operands[1]); ok {
				return k, true
			}
		}
	}
	return 0, false
}

func findShiftK(insts []objdump.Instruction) (int, bool) {
	best := 0
	run := 0
	var runReg string
	flush := func() {
		if run > best {
			best = run
		}
		run = 0
		runReg = ""
	}
	for _, in := range insts {
		if (in.Mnemonic == "asr" || in.Mnemonic == "lsr") && len(in.Operands) >= 1 {
			reg := in.Operands[0]
			if run > 0 && reg != runReg {
				flush()
			}
			runReg = reg
			run++
			continue
		}
		flush()
	}
	flush()
	if best == 0 {
		return 0, false
	}
	return best, true
}

// parseImmediate parses an AVR immediate operand: "0x1f", "31", or "$1f".
func parseImmediate(operand string) (int, bool) {
	s := strings.TrimSpace(operand)
	s = strings.TrimPrefix(s, "#")
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	var v int64
	var err error
	switch {
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		v, err = strconv.ParseInt(s[2:], 16, 64)
	case strings.HasPrefix(s, "$"):
		v, err = strconv.ParseInt(s[1:], 16, 64)
	default:
		v, err = strconv.ParseInt(s, 10, 64)
	}
	if err != nil {
		return 0, false
	}
	if neg {
		v = -v
	}
	return int(v), true
}
