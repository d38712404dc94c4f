package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"screener/internal/candidates"
	"screener/internal/runstate"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const statusLabelWidth = 14

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := "[" + statusKindLabel(kind) + "]"
	if message != "" {
		statusText += " " + message
	}
	base := fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func renderSchedules(interviews []candidates.Interview, colorize bool) string {
	if len(interviews) == 0 {
		return "No interviews scheduled"
	}
	rows := make([][]string, 0, len(interviews))
	for _, iv := range interviews {
		rows = append(rows, []string{iv.CandidateID, strconv.Itoa(iv.Score), iv.InterviewTime, iv.Duration})
	}
	return renderTable(
		[]string{"Candidate", "Score", "Interview", "Duration"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft},
		colorize,
	)
}

func renderRanked(ranked []candidates.Ranked, colorize bool) string {
	rows := make([][]string, 0, len(ranked))
	for i, r := range ranked {
		rows = append(rows, []string{strconv.Itoa(i + 1), r.CandidateID, strconv.Itoa(r.Score), r.Reason})
	}
	return renderTable(
		[]string{"#", "Candidate", "Score", "Reason"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft},
		colorize,
	)
}

func renderWarnings(warnings []runstate.Warning, colorize bool) string {
	rows := make([][]string, 0, len(warnings))
	for _, w := range warnings {
		rows = append(rows, []string{string(w.Stage), w.Record, w.Detail})
	}
	return renderTable([]string{"Stage", "Record", "Detail"}, rows, nil, colorize)
}
