package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/slok/cmdpool/internal/model"
	"github.com/slok/cmdpool/internal/storage"
)

// JSONPrinter prints task information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

// TaskJSON is the JSON representation of a task. It is shared with the HTTP API.
type TaskJSON struct {
	ID         uint64      `json:"id"`
	RunID      string      `json:"run_id,omitempty"`
	Command    string      `json:"command"`
	Status     string      `json:"status"`
	StartedAt  *time.Time  `json:"started_at,omitempty"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	DurationMS *int64      `json:"duration_ms,omitempty"`
	Error      string      `json:"error,omitempty"`
	Output     *OutputJSON `json:"output,omitempty"`
}

// OutputJSON is the JSON representation of a task output.
type OutputJSON struct {
	ExitCode  int    `json:"exit_code"`
	Stdout    string `json:"stdout"`
	Stderr    string `json:"stderr"`
	Truncated bool   `json:"truncated,omitempty"`
}

type runJSON struct {
	ID       string `json:"id"`
	Tasks    int    `json:"tasks"`
	Finished int    `json:"finished"`
	Failed   int    `json:"failed"`
}

type messageJSON struct {
	Message string `json:"message"`
}

// NewTaskJSON maps a task to its JSON representation. The output is only
// included when withOutput is set.
func NewTaskJSON(t model.Task, withOutput bool) TaskJSON {
	res := TaskJSON{
		ID:      uint64(t.ID),
		RunID:   t.RunID,
		Command: t.Command,
		Status:  string(t.Status),
		Error:   t.Error,
	}

	if t.Status != model.TaskStatusQueued {
		started := t.StartedAt.UTC()
		res.StartedAt = &started
	}
	if t.FinishedAt != nil {
		finished := t.FinishedAt.UTC()
		res.FinishedAt = &finished
		ms := t.Duration().Milliseconds()
		res.DurationMS = &ms
	}
	if withOutput && t.Output != nil {
		out := NewOutputJSON(*t.Output)
		res.Output = &out
	}

	return res
}

// NewOutputJSON maps a task output to its JSON representation.
func NewOutputJSON(o model.Output) OutputJSON {
	return OutputJSON{
		ExitCode:  o.ExitCode,
		Stdout:    string(o.Stdout),
		Stderr:    string(o.Stderr),
		Truncated: o.Truncated,
	}
}

// PrintTaskList prints tasks in JSON format without their output.
func (j *JSONPrinter) PrintTaskList(tasks []model.Task) error {
	items := make([]TaskJSON, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, NewTaskJSON(t, false))
	}
	return j.encode(items)
}

// PrintTask prints a task with its output in JSON format.
func (j *JSONPrinter) PrintTask(t model.Task) error {
	return j.encode(NewTaskJSON(t, true))
}

// PrintRunList prints archived runs in JSON format.
func (j *JSONPrinter) PrintRunList(runs []storage.Run) error {
	items := make([]runJSON, 0, len(runs))
	for _, r := range runs {
		items = append(items, runJSON(r))
	}
	return j.encode(items)
}

// PrintHistory prints the command history in JSON format.
func (j *JSONPrinter) PrintHistory(commands []string) error {
	if commands == nil {
		commands = []string{}
	}
	return j.encode(commands)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageJSON{Message: msg})
}

func (j *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
