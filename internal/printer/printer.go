package printer

import (
	"github.com/slok/cmdpool/internal/model"
	"github.com/slok/cmdpool/internal/storage"
)

// Printer knows how to print task information in different formats.
type Printer interface {
	PrintTaskList(tasks []model.Task) error
	PrintTask(t model.Task) error
	PrintRunList(runs []storage.Run) error
	PrintHistory(commands []string) error
	PrintMessage(msg string) error
}
