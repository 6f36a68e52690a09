package main

import (
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"gallery/internal/upload"
)

// palette colours status words when stdout is a terminal.
type palette struct {
	enabled bool
}

func newPalette(w io.Writer) palette {
	if os.Getenv("NO_COLOR") != "" {
		return palette{}
	}
	f, ok := w.(*os.File)
	if !ok {
		return palette{}
	}
	fd := f.Fd()
	return palette{enabled: isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)}
}

func (p palette) status(s upload.Status) string {
	label := string(s)
	if !p.enabled {
		return label
	}
	switch s {
	case upload.StatusSucceeded:
		return text.FgGreen.Sprint(label)
	case upload.StatusFailed:
		return text.FgRed.Sprint(label)
	case upload.StatusSubmitting:
		return text.FgYellow.Sprint(label)
	default:
		return text.Faint.Sprint(label)
	}
}

func valueOrDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func truncate(value string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(value) <= limit {
		return value
	}
	runes := []rune(value)
	return string(runes[:limit-1]) + "…"
}
