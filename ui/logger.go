package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"tailplane/descriptor"
)

var (
	clrDim     = color.New(color.FgHiBlack)
	clrSubtle  = color.New(color.FgWhite)
	clrAccent  = color.New(color.FgCyan, color.Bold)
	clrSuccess = color.New(color.FgGreen)
	clrError   = color.New(color.FgRed)
	clrWarning = color.New(color.FgYellow)
	clrInfo    = color.New(color.FgBlue)
)

var (
	mu  sync.Mutex
	out io.Writer = os.Stderr
)

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// LogStatus prints a timestamped line styled by category:
// success, error, warning or info.
func LogStatus(category, message string) {
	ts := clrDim.Sprint(time.Now().Format("15:04:05"))

	var icon, styled string
	switch category {
	case "success":
		icon = clrSuccess.Sprint("✔")
		styled = clrSuccess.Sprint(message)
	case "error":
		icon = clrError.Sprint("✖")
		styled = clrError.Sprint(message)
	case "warning":
		icon = clrWarning.Sprint("⚠")
		styled = clrWarning.Sprint(message)
	case "info":
		icon = clrInfo.Sprint("ℹ")
		styled = clrSubtle.Sprint(message)
	default:
		icon = clrDim.Sprint("●")
		styled = clrSubtle.Sprint(message)
	}

	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(out, "%s  %s  %s\n", ts, icon, styled)
}

// Logf formats a message and logs it under category.
func Logf(category, format string, args ...any) {
	LogStatus(category, fmt.Sprintf(format, args...))
}

// LogSection prints a section header.
func LogSection(title string) {
	pad := 50 - len(title)
	if pad < 3 {
		pad = 3
	}
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(out, "\n%s %s %s\n", clrDim.Sprint("──"), clrAccent.Sprint(title), clrDim.Sprint(strings.Repeat("─", pad)))
}

// PrintDiagnostics logs every error and warning of a validation run and a
// one-line summary.
func PrintDiagnostics(source string, res descriptor.ValidationResult) {
	for _, d := range res.Errors {
		LogStatus("error", d.Field+": "+d.Message)
	}
	for _, d := range res.Warnings {
		LogStatus("warning", d.Field+": "+d.Message)
	}

	summary := fmt.Sprintf("%s: %d error(s), %d warning(s)", source, len(res.Errors), len(res.Warnings))
	if res.OK() {
		LogStatus("success", summary)
	} else {
		LogStatus("error", summary)
	}
}
