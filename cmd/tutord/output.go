package main

import (
	"fmt"
	"os"
)

// ANSI SGR codes for terminal output. Styling is suppressed by --no-color
// or the NO_COLOR convention.
const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
)

func styled(code, text string) string {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return text
	}
	return code + text + ansiReset
}

// stderrLine prints a tagged, styled message line to stderr. All CLI
// chrome goes to stderr so answer output on stdout stays pipeable.
func stderrLine(code, tag, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", styled(code, tag), fmt.Sprintf(format, args...))
}

func printSuccess(format string, args ...any) {
	stderrLine(ansiGreen, "ok:", format, args...)
}

func printError(format string, args ...any) {
	stderrLine(ansiRed, "error:", format, args...)
}

func printWarning(format string, args ...any) {
	stderrLine(ansiYellow, "warning:", format, args...)
}

// printStatus renders one aligned "label: value" row for status-style
// listings.
func printStatus(label, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "  %s %s\n", styled(ansiBold, fmt.Sprintf("%-13s", label+":")), fmt.Sprintf(format, args...))
}
