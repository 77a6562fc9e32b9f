package avrstack

import (
	"strings"
	"testing"

	"avrstack/internal/diag"
	"avrstack/internal/mcuprofile"
)

func TestAnalyze_EndToEnd_LeafProgram(t *testing.T) {
	su := "main.c:3:1:main\t16\tstatic\n" +
		"main.c:10:1:led_on\t4\tstatic\n"
	disasm := `
Disassembly of section .vectors:

00000000 <__vectors>:
   0:	0c 94 20 00 	jmp	0x40	; 0x40 <main>

Disassembly of section .text:

00000040 <main>:
  40:	cf 93       	push	r28
  42:	0e 94 30 00 	call	0x60	; 0x60 <led_on>
  46:	08 95       	ret

00000060 <led_on>:
  60:	1f 93       	push	r17
  62:	08 95       	ret
`
	size := "   text    data     bss     dec     hex filename\n" +
		"    200       0       2     202      ca program.elf\n"

	cfg, _ := mcuprofile.Builtin("atmega328p")

	rep, err := Analyze(Inputs{
		FrameUsage:   strings.NewReader(su),
		Disassembly:  strings.NewReader(disasm),
		SectionSizes: strings.NewReader(size),
	}, cfg, diag.ModeBestEffort)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	want := 16 + cfg.CallOverheadBytes + 4 + cfg.CallOverheadBytes
	if rep.StackWorstCase != want {
		t.Errorf("StackWorstCase = %d, want %d", rep.StackWorstCase, want)
	}
	if rep.Overflow {
		t.Error("unexpected overflow for a tiny program")
	}
	if rep.BssBytes != 2 {
		t.Errorf("BssBytes = %d, want 2", rep.BssBytes)
	}
}

func TestAnalyze_FatalOnMissingSymbols(t *testing.T) {
	cfg, _ := mcuprofile.Builtin("atmega328p")
	_, err := Analyze(Inputs{
		FrameUsage:   strings.NewReader(""),
		Disassembly:  strings.NewReader("avr-test.elf:     file format elf32-avr\n"),
		SectionSizes: strings.NewReader("0 0 0 0 0 a.elf\n"),
	}, cfg, diag.ModeBestEffort)
	if err == nil {
		t.Fatal("expected fatal error on empty disassembly")
	}
}
