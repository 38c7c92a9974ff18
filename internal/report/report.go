// ABOUTME: Renders upgrade results as markdown and HTML run reports
// ABOUTME: HTML conversion uses goldmark with the GFM table extension

package report

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/2389/coven-migrate/internal/upgrade"
)

// Markdown renders a run report. runErr is the error UpgradeModel returned, if any.
func Markdown(res *upgrade.Result, runErr error) string {
	var b strings.Builder

	workspace := ""
	if res != nil {
		workspace = res.Workspace
	}
	fmt.Fprintf(&b, "# Upgrade report: %s\n\n", workspace)

	if runErr != nil {
		fmt.Fprintf(&b, "**Status:** failed\n\n")
		var stepErr *upgrade.StepError
		if errors.As(runErr, &stepErr) {
			fmt.Fprintf(&b, "- Phase: `%s`\n", stepErr.Phase)
			if stepErr.Operation != "" {
				fmt.Fprintf(&b, "- Operation: `%s`\n", stepErr.Operation)
			}
			fmt.Fprintf(&b, "- Elapsed: %s\n", round(stepErr.Elapsed))
		}
		fmt.Fprintf(&b, "- Error: %s\n\n", escape(runErr.Error()))
	} else {
		fmt.Fprintf(&b, "**Status:** completed\n\n")
	}

	if res == nil {
		return b.String()
	}

	fmt.Fprintf(&b, "- Model txes: %d\n", res.Txes)
	fmt.Fprintf(&b, "- Duration: %s\n", round(res.Duration))
	fmt.Fprintf(&b, "- Live connection: %s\n", yesNo(res.Connected))
	switch {
	case res.Connected:
		// force-close went over the live connection
	case res.NotifyError != nil:
		fmt.Fprintf(&b, "- Force-close notification: failed (%s)\n", escape(res.NotifyError.Error()))
	case res.Notified:
		fmt.Fprintf(&b, "- Force-close notification: sent\n")
	default:
		fmt.Fprintf(&b, "- Force-close notification: skipped\n")
	}
	b.WriteString("\n")

	if len(res.Steps) > 0 {
		b.WriteString("## Steps\n\n")
		b.WriteString("| Phase | Operation | Elapsed |\n")
		b.WriteString("|---|---|---|\n")
		for _, s := range res.Steps {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", s.Phase, cell(s.Operation), round(s.Elapsed))
		}
		b.WriteString("\n")
	}

	if len(res.Indexes) > 0 {
		b.WriteString("## Indexes\n\n")
		b.WriteString("| Domain | Estimate | Created | Elapsed |\n")
		b.WriteString("|---|---:|---|---|\n")
		for _, d := range res.Indexes {
			fmt.Fprintf(&b, "| %s | %d | %s | %s |\n", d.Domain, d.Estimate, cell(strings.Join(d.Created, ", ")), round(d.Elapsed))
		}
		b.WriteString("\n")
	}

	writeErrors(&b, "Classification errors", res.ClassificationErrors)

	return b.String()
}

// HTML renders the markdown report as an HTML fragment
func HTML(res *upgrade.Result, runErr error) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))

	var buf bytes.Buffer
	if err := md.Convert([]byte(Markdown(res, runErr)), &buf); err != nil {
		return nil, fmt.Errorf("converting report: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile writes the report to path, as HTML for .html/.htm and markdown otherwise
func WriteFile(path string, res *upgrade.Result, runErr error) error {
	var data []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		html, err := HTML(res, runErr)
		if err != nil {
			return err
		}
		data = html
	default:
		data = []byte(Markdown(res, runErr))
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

func writeErrors(b *strings.Builder, title string, errs []error) {
	if len(errs) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", title)
	for _, err := range errs {
		fmt.Fprintf(b, "- %s\n", escape(err.Error()))
	}
	b.WriteString("\n")
}

func round(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func cell(s string) string {
	if s == "" {
		return "-"
	}
	return escape(s)
}

// escape keeps free text from breaking table cells
func escape(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
