package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// TitleMaxLen bounds titles in human-readable listings.
const TitleMaxLen = 70

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputJSON prints v as indented JSON on stdout.
func outputJSON(v any) error {
	return writeJSON(os.Stdout, v)
}

func outputHuman(format string, args ...any) {
	fmt.Fprintf(os.Stdout, format, args...)
}

// exitWithError reports msg on stderr, as JSON unless --human is set, and
// exits with code.
func exitWithError(code int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintln(os.Stderr, "error:", msg)
	} else {
		_ = writeJSON(os.Stderr, ErrorResponse{Error: msg, Code: code})
	}
	os.Exit(code)
}

// ErrorResponse is what a failed command prints in JSON mode.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// StatusResponse wraps the stats of a finished stage.
type StatusResponse struct {
	Status string `json:"status"`
	Stage  string `json:"stage"`
	Stats  any    `json:"stats"`
}

// truncateString shortens s to at most maxLen runes, ending in "..." when
// anything was cut.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
