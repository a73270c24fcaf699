package printer

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/slok/cmdpool/internal/model"
	"github.com/slok/cmdpool/internal/storage"
)

// TablePrinter prints task information in a table format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

const maxCommandColumn = 50

// PrintTaskList prints tasks in a table format.
func (t *TablePrinter) PrintTaskList(tasks []model.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "ID\tCOMMAND\tSTATUS\tSTARTED\tDURATION\tEXIT")

	for _, task := range tasks {
		started, duration, exit := "-", "-", "-"
		if task.Status != model.TaskStatusQueued {
			started = TimeAgo(task.StartedAt)
		}
		if task.FinishedAt != nil {
			duration = FormatDuration(task.Duration())
		}
		if task.Output != nil {
			exit = strconv.Itoa(task.Output.ExitCode)
		}

		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			task.ID,
			shorten(task.Command, maxCommandColumn),
			task.Status,
			started,
			duration,
			exit,
		)
	}

	return nil
}

// PrintTask prints the details and captured output of a task.
func (t *TablePrinter) PrintTask(task model.Task) error {
	fmt.Fprintf(t.writer, "ID:         %d\n", task.ID)
	if task.RunID != "" {
		fmt.Fprintf(t.writer, "Run:        %s\n", task.RunID)
	}
	fmt.Fprintf(t.writer, "Command:    %s\n", task.Command)
	fmt.Fprintf(t.writer, "Status:     %s\n", task.Status)

	if task.Status != model.TaskStatusQueued {
		fmt.Fprintf(t.writer, "Start:      %s\n", FormatTimestamp(task.StartedAt))
	}
	if task.FinishedAt != nil {
		fmt.Fprintf(t.writer, "Finish:     %s\n", FormatTimestamp(*task.FinishedAt))
		fmt.Fprintf(t.writer, "Duration:   %s\n", FormatDuration(task.Duration()))
	}
	if task.Error != "" {
		fmt.Fprintf(t.writer, "Error:      %s\n", task.Error)
	}

	if task.Output == nil {
		return nil
	}

	fmt.Fprintf(t.writer, "Exit code:  %d\n", task.Output.ExitCode)
	if task.Output.Truncated {
		fmt.Fprintf(t.writer, "Truncated:  yes\n")
	}
	fmt.Fprintf(t.writer, "Stdout (%s):\n", FormatBytes(int64(len(task.Output.Stdout))))
	writeBlock(t.writer, task.Output.Stdout)
	fmt.Fprintf(t.writer, "Stderr (%s):\n", FormatBytes(int64(len(task.Output.Stderr))))
	writeBlock(t.writer, task.Output.Stderr)

	return nil
}

// PrintRunList prints archived runs in a table format.
func (t *TablePrinter) PrintRunList(runs []storage.Run) error {
	if len(runs) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "RUN\tTASKS\tFINISHED\tFAILED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", r.ID, r.Tasks, r.Finished, r.Failed)
	}

	return nil
}

// PrintHistory prints the command history, numbered from the oldest entry.
func (t *TablePrinter) PrintHistory(commands []string) error {
	for i, c := range commands {
		fmt.Fprintf(t.writer, "%5d  %s\n", i+1, c)
	}
	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}

func writeBlock(w io.Writer, data []byte) {
	if len(data) == 0 {
		return
	}

	s := string(data)
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	for _, line := range strings.SplitAfter(s, "\n") {
		if line == "" {
			continue
		}
		fmt.Fprintf(w, "  %s", line)
	}
}

func shorten(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
