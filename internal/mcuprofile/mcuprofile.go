// Package mcuprofile holds per-MCU configuration: RAM size, the per-call
// frame overhead the target's call/ret encoding imposes, the default
// argument-domain bound used by the closed-form recursion-depth bounds, the
// depth cap used for unknown-pattern and mutual recursion, and the naming
// convention used to recognize interrupt handlers in a disassembly listing.
package mcuprofile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the fully resolved configuration the solver runs against.
type Config struct {
	MCU                    string `yaml:"mcu"`
	RAMTotal               int    `yaml:"ram_total"`
	CallOverheadBytes      int    `yaml:"call_overhead_bytes"`
	ArgumentDomainDefault  int    `yaml:"argument_domain_default"`
	UnknownRecursionDepthCap int  `yaml:"unknown_recursion_depth_cap"`
	ISRNamingPattern       string `yaml:"isr_naming_pattern"`
}

// Builtin returns the built-in profile for a known MCU name, or false if the
// name isn't one of the profiles shipped with avrstack.
func Builtin(mcu string) (Config, bool) {
	cfg, ok := builtins[mcu]
	return cfg, ok
}

// Names lists the built-in profile names, sorted.
func Names() []string {
	return []string{"atmega2560", "atmega328p", "attiny85"}
}

var builtins = map[string]Config{
	"atmega328p": {
		MCU:                      "atmega328p",
		RAMTotal:                 2048,
		CallOverheadBytes:        2,
		ArgumentDomainDefault:    255,
		UnknownRecursionDepthCap: 32,
		ISRNamingPattern:         "__vector_",
	},
	"atmega2560": {
		MCU:                      "atmega2560",
		RAMTotal:                 8192,
		CallOverheadBytes:        3,
		ArgumentDomainDefault:    255,
		UnknownRecursionDepthCap: 32,
		ISRNamingPattern:         "__vector_",
	},
	"attiny85": {
		MCU:                      "attiny85",
		RAMTotal:                 512,
		CallOverheadBytes:        2,
		ArgumentDomainDefault:    255,
		UnknownRecursionDepthCap: 32,
		ISRNamingPattern:         "__vector_",
	},
}

// Load resolves a Config from, in increasing precedence: the built-in
// profile for mcu (if recognized), an optional YAML overrides file, and
// zero-value overrides is left to the caller (cmd/avrstack applies explicit
// flag overrides after Load returns).
func Load(mcu string, overridesPath string) (Config, error) {
	cfg, ok := Builtin(mcu)
	if !ok {
		cfg = Config{
			MCU:                      mcu,
			ArgumentDomainDefault:    255,
			UnknownRecursionDepthCap: 32,
			ISRNamingPattern:         "__vector_",
		}
	}
	if overridesPath == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(overridesPath)
	if err != nil {
		return Config{}, fmt.Errorf("mcuprofile: read %s: %w", overridesPath, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("mcuprofile: parse %s: %w", overridesPath, err)
	}
	return cfg, nil
}
