package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"avrstack/internal/callgraph"
	"avrstack/internal/diag"
	"avrstack/internal/frametable"
	"avrstack/internal/mcuprofile"
	"avrstack/internal/objdump"
	"avrstack/internal/render"
	"avrstack/internal/sizereport"
	"avrstack/internal/stackdepth"
)

type analyzeFlags struct {
	suPath       string
	disasmPath   string
	sizePath     string
	configPath   string
	mcu          string
	ram          int
	callOverhead int
	strict       bool
	graphOut     string
	jsonOut      bool
}

func newAnalyzeCmd() *cobra.Command {
	f := &analyzeFlags{}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "bound the worst-case stack depth of a firmware image",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(f)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&f.suPath, "su", "", "path to the avr-gcc -fstack-usage listing (required)")
	flags.StringVar(&f.disasmPath, "disasm", "", "path to the avr-objdump -d disassembly (required)")
	flags.StringVar(&f.sizePath, "size", "", "path to the avr-size Berkeley-format summary (required)")
	flags.StringVar(&f.configPath, "config", "", "path to a YAML profile-overrides file")
	flags.StringVar(&f.mcu, "mcu", "atmega328p", "target MCU profile name")
	flags.IntVar(&f.ram, "ram", 0, "override the profile's RAM size in bytes")
	flags.IntVar(&f.callOverhead, "call-overhead", 0, "override the profile's per-call overhead in bytes")
	flags.BoolVar(&f.strict, "strict", false, "fail on the first recoverable-parse error instead of continuing best-effort")
	flags.StringVar(&f.graphOut, "graph-out", "", "write the reconstructed call graph as Graphviz DOT to this path")
	flags.BoolVar(&f.jsonOut, "json", false, "print the report as JSON instead of text")

	cmd.MarkFlagRequired("su")
	cmd.MarkFlagRequired("disasm")
	cmd.MarkFlagRequired("size")
	return cmd
}

func runAnalyze(f *analyzeFlags) error {
	cfg, err := mcuprofile.Load(f.mcu, f.configPath)
	if err != nil {
		return err
	}
	if f.ram > 0 {
		cfg.RAMTotal = f.ram
	}
	if f.callOverhead > 0 {
		cfg.CallOverheadBytes = f.callOverhead
	}

	mode := diag.ModeBestEffort
	if f.strict {
		mode = diag.ModeStrict
	}
	d := &diag.Diags{}

	suFile, err := os.Open(f.suPath)
	if err != nil {
		return diag.Fatal("cmd", err)
	}
	defer suFile.Close()
	frames, err := frametable.Parse(suFile, mode, d)
	if err != nil {
		return err
	}

	disasmFile, err := os.Open(f.disasmPath)
	if err != nil {
		return diag.Fatal("cmd", err)
	}
	defer disasmFile.Close()
	funcs, err := objdump.Parse(disasmFile, cfg.ISRNamingPattern, mode, d)
	if err != nil {
		return err
	}

	sizes, err := sizereport.ParseFile(f.sizePath)
	if err != nil {
		return err
	}

	g := callgraph.Build(funcs)

	rep, err := stackdepth.Solve(g, frames, sizes, cfg, mode, d)
	if err != nil {
		return err
	}

	if f.graphOut != "" {
		dot := render.CallgraphDOT(g, fmt.Sprintf("%s worst-case path", cfg.MCU), render.NASA, rep.LongestPath)
		if err := os.WriteFile(f.graphOut, []byte(dot), 0o644); err != nil {
			return fmt.Errorf("write graph: %w", err)
		}
	}

	if f.jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return err
		}
	} else {
		printReport(rep)
	}

	if rep.Overflow {
		os.Exit(exitOverflow)
	}
	return nil
}

func printReport(rep stackdepth.Report) {
	fmt.Printf("mcu:                 %s\n", rep.MCU)
	fmt.Printf("ram_total:           %d\n", rep.RAMTotal)
	fmt.Printf("data_bytes:          %d\n", rep.DataBytes)
	fmt.Printf("bss_bytes:           %d\n", rep.BssBytes)
	fmt.Printf("stack_worst_case:    %d\n", rep.StackWorstCase)
	fmt.Printf("free_ram:            %d\n", rep.FreeRAM)
	fmt.Printf("overflow:            %t\n", rep.Overflow)
	fmt.Printf("bounded_by_heuristic: %t\n", rep.BoundedByHeuristic)
	fmt.Printf("unresolved_calls:    %d\n", rep.UnresolvedCalls)
	if len(rep.LongestPath) > 0 {
		fmt.Printf("longest_path:        %v\n", rep.LongestPath)
	}
	for _, w := range rep.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
}
