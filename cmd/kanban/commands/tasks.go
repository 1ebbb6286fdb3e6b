package commands

import (
	"fmt"
	"strings"

	"github.com/benvon/kanban-assistant/internal/models"
	"github.com/benvon/kanban-assistant/internal/validation"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewTasksCmd creates the tasks command group
func NewTasksCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task"},
		Short:   "Manage tasks",
	}

	cmd.AddCommand(newTasksListCmd(opts))
	cmd.AddCommand(newTasksAddCmd(opts))
	cmd.AddCommand(newTasksEditCmd(opts))
	cmd.AddCommand(newTasksMoveCmd(opts))
	cmd.AddCommand(newTasksRemoveCmd(opts))

	return cmd
}

func newTasksListCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all tasks in board order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			tasks, err := c.List(cmd.Context(), uuid.Nil)
			if err != nil {
				return fmt.Errorf("failed to list tasks: %w", err)
			}
			if len(tasks) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No tasks")
				return nil
			}
			for _, t := range tasks {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%-12s", t.Status)
				printTaskLine(cmd.OutOrStdout(), t)
			}
			return nil
		},
	}
}

func newTasksAddCmd(opts *Options) *cobra.Command {
	var (
		priority, status, description, due string
		tags                               []string
	)

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task := models.Task{
				Title: validation.SanitizeText(strings.Join(args, " ")),
				Tags:  validation.SanitizeTags(tags),
			}
			if task.Title == "" {
				return fmt.Errorf("title must not be empty")
			}
			var err error
			if task.Priority, err = parsePriority(priority); err != nil {
				return err
			}
			if task.Status, err = parseStatus(status); err != nil {
				return err
			}
			if description != "" {
				task.Description = &description
			}
			if due != "" {
				d, err := validation.ParseDueDate(due)
				if err != nil {
					return fmt.Errorf("invalid due date %q", due)
				}
				task.DueDate = &d
			}

			c, err := opts.client()
			if err != nil {
				return err
			}
			tasks, err := c.List(cmd.Context(), uuid.Nil)
			if err != nil {
				return fmt.Errorf("failed to load board: %w", err)
			}
			task.Position = columnLength(tasks, task.Status)

			if err := c.Create(cmd.Context(), &task); err != nil {
				return fmt.Errorf("failed to create task: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created %q  %s\n", task.Title, task.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&priority, "priority", "p", string(models.TaskPriorityMedium), "low, medium or high")
	cmd.Flags().StringVarP(&status, "status", "s", string(models.TaskStatusTodo), "todo, in_progress or done")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Task description")
	cmd.Flags().StringVar(&due, "due", "", "Due date (YYYY-MM-DD)")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "Tag (repeatable)")

	return cmd
}

func newTasksEditCmd(opts *Options) *cobra.Command {
	var (
		title, description, priority, status, due string
		tags                                      []string
	)

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}

			var patch models.TaskPatch
			flags := cmd.Flags()
			if flags.Changed("title") {
				t := validation.SanitizeText(title)
				if t == "" {
					return fmt.Errorf("title must not be empty")
				}
				patch.Title = &t
			}
			if flags.Changed("description") {
				d := validation.SanitizeText(description)
				patch.Description = &d
			}
			if flags.Changed("priority") {
				p, err := parsePriority(priority)
				if err != nil {
					return err
				}
				patch.Priority = &p
			}
			if flags.Changed("status") {
				s, err := parseStatus(status)
				if err != nil {
					return err
				}
				patch.Status = &s
			}
			if flags.Changed("due") {
				d, err := validation.ParseDueDate(due)
				if err != nil {
					return fmt.Errorf("invalid due date %q", due)
				}
				patch.DueDate = &d
			}
			if flags.Changed("tag") {
				t := validation.SanitizeTags(tags)
				patch.Tags = &t
			}
			if patch.IsEmpty() {
				return fmt.Errorf("nothing to change")
			}

			c, err := opts.client()
			if err != nil {
				return err
			}
			task, err := c.Update(cmd.Context(), uuid.Nil, id, patch)
			if err != nil {
				return fmt.Errorf("failed to update task: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Updated %q\n", task.Title)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "New description")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "low, medium or high")
	cmd.Flags().StringVarP(&status, "status", "s", "", "todo, in_progress or done")
	cmd.Flags().StringVar(&due, "due", "", "Due date (YYYY-MM-DD)")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "Replace tags (repeatable)")

	return cmd
}

func newTasksMoveCmd(opts *Options) *cobra.Command {
	var position int

	cmd := &cobra.Command{
		Use:   "move <id> <status>",
		Short: "Move a task to another column",
		Long:  "Move a task to another column. Without --position it goes to the end of the column.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			status, err := parseStatus(args[1])
			if err != nil {
				return err
			}
			var pos *int
			if cmd.Flags().Changed("position") {
				if position < 0 {
					return fmt.Errorf("position must not be negative")
				}
				pos = &position
			}

			c, err := opts.client()
			if err != nil {
				return err
			}
			task, err := c.Move(cmd.Context(), id, status, pos)
			if err != nil {
				return fmt.Errorf("failed to move task: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Moved %q to %s\n", task.Title, columnTitles[task.Status])
			return nil
		},
	}

	cmd.Flags().IntVar(&position, "position", 0, "Position within the column")

	return cmd
}

func newTasksRemoveCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			c, err := opts.client()
			if err != nil {
				return err
			}
			if err := c.Delete(cmd.Context(), uuid.Nil, id); err != nil {
				return fmt.Errorf("failed to delete task: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Deleted")
			return nil
		},
	}
}

func columnLength(tasks []models.Task, status models.TaskStatus) int {
	n := 0
	for _, t := range tasks {
		if t.Status == status {
			n++
		}
	}
	return n
}
