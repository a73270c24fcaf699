package printer_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/cmdpool/internal/model"
	"github.com/slok/cmdpool/internal/printer"
	"github.com/slok/cmdpool/internal/storage"
)

func finishedFixture() model.Task {
	start := time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC)
	end := start.Add(1500 * time.Millisecond)
	return model.Task{
		ID:         7,
		RunID:      "01JRUN",
		Command:    "ls -l /tmp",
		Status:     model.TaskStatusFinished,
		StartedAt:  start,
		FinishedAt: &end,
		Output: &model.Output{
			ExitCode: 2,
			Stdout:   []byte("a\nb"),
			Stderr:   []byte("oops\n"),
		},
	}
}

func TestTablePrinterPrintTask(t *testing.T) {
	tests := map[string]struct {
		task        model.Task
		expContains []string
		expMissing  []string
	}{
		"A finished task should print its details and output.": {
			task: finishedFixture(),
			expContains: []string{
				"ID:         7\n",
				"Run:        01JRUN\n",
				"Command:    ls -l /tmp\n",
				"Status:     Finished\n",
				"Start:      2026-01-30 10:00:00 UTC\n",
				"Finish:     2026-01-30 10:00:01 UTC\n",
				"Duration:   1.5s\n",
				"Exit code:  2\n",
				"Stdout (3 B):\n  a\n  b\n",
				"Stderr (5 B):\n  oops\n",
			},
			expMissing: []string{"Truncated", "Error"},
		},
		"A queued task should not print times nor output.": {
			task: model.Task{ID: 1, Command: "echo", Status: model.TaskStatusQueued},
			expContains: []string{
				"Status:     In Queue\n",
			},
			expMissing: []string{"Start:", "Exit code:"},
		},
		"A failed task should print its error.": {
			task: model.Task{ID: 1, Command: "nope", Status: model.TaskStatusFailed, Error: "could not spawn process"},
			expContains: []string{
				"Error:      could not spawn process\n",
			},
			expMissing: []string{"Exit code:"},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			p := printer.NewTablePrinter(&buf)
			require.NoError(t, p.PrintTask(test.task))

			out := buf.String()
			for _, s := range test.expContains {
				assert.Contains(t, out, s)
			}
			for _, s := range test.expMissing {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestTablePrinterPrintTaskList(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	long := strings.Repeat("x", 80)
	err := p.PrintTaskList([]model.Task{
		finishedFixture(),
		{ID: 8, Command: long, Status: model.TaskStatusQueued},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "ls -l /tmp")
	assert.Contains(t, lines[1], "Finished")
	assert.Contains(t, lines[1], "1.5s")
	assert.Contains(t, lines[2], strings.Repeat("x", 47)+"...")
	assert.Contains(t, lines[2], "In Queue")
}

func TestTablePrinterEmptyListShouldPrintNothing(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	require.NoError(t, p.PrintTaskList(nil))
	require.NoError(t, p.PrintRunList(nil))
	assert.Empty(t, buf.String())
}

func TestTablePrinterPrintRunList(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	require.NoError(t, p.PrintRunList([]storage.Run{{ID: "01A", Tasks: 3, Finished: 2, Failed: 1}}))
	assert.Contains(t, buf.String(), "RUN")
	assert.Contains(t, buf.String(), "01A")
}

func TestTablePrinterPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	require.NoError(t, p.PrintHistory([]string{"echo a", "ls"}))
	assert.Equal(t, "    1  echo a\n    2  ls\n", buf.String())
}

func TestJSONPrinterPrintTask(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	require.NoError(t, p.PrintTask(finishedFixture()))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, float64(7), got["id"])
	assert.Equal(t, "Finished", got["status"])
	assert.Equal(t, float64(1500), got["duration_ms"])
	out := got["output"].(map[string]any)
	assert.Equal(t, float64(2), out["exit_code"])
	assert.Equal(t, "a\nb", out["stdout"])
	assert.Equal(t, "oops\n", out["stderr"])
}

func TestJSONPrinterPrintTaskListShouldOmitOutput(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	require.NoError(t, p.PrintTaskList([]model.Task{finishedFixture(), {ID: 8, Status: model.TaskStatusQueued}}))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.NotContains(t, got[0], "output")
	assert.NotContains(t, got[1], "started_at")
}

func TestJSONPrinterPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	require.NoError(t, p.PrintHistory(nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestTablePrinterPrintMessage(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintMessage("ok")
	require.NoError(t, err)
	assert.Equal(t, "ok", strings.TrimSpace(buf.String()))
}
