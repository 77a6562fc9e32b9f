package main

// Exit codes per the CLI's documented contract: 0 clean, 1 stack overflow
// detected, 2 fatal-input error. Every error that reaches main.go's
// root.Execute() path is fatal-input by construction (the overflow case is
// signaled via os.Exit inside the analyze command itself, not an error).
const (
	exitOK       = 0
	exitOverflow = 1
	exitFatal    = 2
)

func exitCodeFor(err error) int {
	if err == nil {
		return exitOK
	}
	return exitFatal
}
