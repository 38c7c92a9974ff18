// ABOUTME: Tests for run report rendering
// ABOUTME: Covers markdown tables, failure details and GFM HTML conversion

package report

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-migrate/internal/indexes"
	"github.com/2389/coven-migrate/internal/progress"
	"github.com/2389/coven-migrate/internal/store"
	"github.com/2389/coven-migrate/internal/upgrade"
)

func sampleResult() *upgrade.Result {
	return &upgrade.Result{
		Workspace: "acme",
		Txes:      12,
		Steps: []upgrade.StepTiming{
			{Phase: progress.PhaseLoad, Elapsed: 2 * time.Millisecond},
			{Phase: progress.PhaseMigrate, Operation: "tracker", Elapsed: 40 * time.Millisecond},
		},
		Indexes: []indexes.DomainResult{
			{Domain: store.Domain("task"), Estimate: 2500, Created: []string{"idx_task__class", "idx_task_space"}},
		},
		ClassificationErrors: []error{errors.New("class a|b has no domain")},
		Connected:            true,
		Duration:             time.Second,
	}
}

func TestMarkdown_Completed(t *testing.T) {
	md := Markdown(sampleResult(), nil)

	assert.Contains(t, md, "# Upgrade report: acme")
	assert.Contains(t, md, "**Status:** completed")
	assert.Contains(t, md, "- Model txes: 12")
	assert.Contains(t, md, "- Live connection: yes")
	assert.Contains(t, md, "| migrate | tracker | 40ms |")
	assert.Contains(t, md, "| load | - | 2ms |")
	assert.Contains(t, md, "| task | 2500 | idx_task__class, idx_task_space |")
	assert.Contains(t, md, `class a\|b has no domain`)
	assert.NotContains(t, md, "Force-close notification")
}

func TestMarkdown_Failed(t *testing.T) {
	res := sampleResult()
	res.Connected = false
	res.Notified = true
	res.NotifyError = errors.New("connection refused")

	runErr := &upgrade.StepError{
		Phase:     progress.PhaseUpgrade,
		Operation: "tracker",
		Workspace: "acme",
		Elapsed:   5 * time.Millisecond,
		Err:       errors.New("boom"),
	}

	md := Markdown(res, runErr)
	assert.Contains(t, md, "**Status:** failed")
	assert.Contains(t, md, "- Phase: `upgrade`")
	assert.Contains(t, md, "- Operation: `tracker`")
	assert.Contains(t, md, "- Force-close notification: failed (connection refused)")
}

func TestMarkdown_NilResult(t *testing.T) {
	md := Markdown(nil, errors.New("config invalid"))
	assert.Contains(t, md, "**Status:** failed")
	assert.Contains(t, md, "- Error: config invalid")
	assert.NotContains(t, md, "## Steps")
}

func TestHTML_RendersTables(t *testing.T) {
	html, err := HTML(sampleResult(), nil)
	require.NoError(t, err)

	out := string(html)
	assert.Contains(t, out, "<h1>Upgrade report: acme</h1>")
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<td>tracker</td>")
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()

	mdPath := filepath.Join(dir, "report.md")
	require.NoError(t, WriteFile(mdPath, sampleResult(), nil))
	data, err := os.ReadFile(mdPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "## Steps")

	htmlPath := filepath.Join(dir, "report.html")
	require.NoError(t, WriteFile(htmlPath, sampleResult(), nil))
	data, err = os.ReadFile(htmlPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<table>")
}
