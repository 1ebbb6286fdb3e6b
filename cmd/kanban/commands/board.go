package commands

import (
	"fmt"
	"io"

	"github.com/benvon/kanban-assistant/internal/api"
	"github.com/benvon/kanban-assistant/internal/models"
	"github.com/spf13/cobra"
)

var columnTitles = map[models.TaskStatus]string{
	models.TaskStatusTodo:       "TO DO",
	models.TaskStatusInProgress: "IN PROGRESS",
	models.TaskStatusDone:       "DONE",
}

// NewBoardCmd creates the board command
func NewBoardCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Show the board",
		Long:  "Show the three board columns and the completion summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			b, err := c.Board(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load board: %w", err)
			}
			printBoard(cmd.OutOrStdout(), b)
			return nil
		},
	}
}

func printBoard(w io.Writer, b *api.BoardResponse) {
	for _, status := range models.TaskStatuses {
		tasks := b.Columns.Column(status)
		_, _ = fmt.Fprintf(w, "%s (%d)\n", columnTitles[status], len(tasks))
		for _, t := range tasks {
			printTaskLine(w, t)
		}
		_, _ = fmt.Fprintln(w)
	}
	_, _ = fmt.Fprintf(w, "%d of %d done (%d%%)\n", b.Summary.DoneCount, b.Summary.Total, b.Summary.CompletionPercent)
}

func printTaskLine(w io.Writer, t models.Task) {
	line := fmt.Sprintf("  [%s] %s", t.Priority, t.Title)
	if t.DueDate != nil {
		line += " (due " + t.DueDate.Format("2006-01-02") + ")"
	}
	_, _ = fmt.Fprintf(w, "%s  %s\n", line, t.ID)
}
