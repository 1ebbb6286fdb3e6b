package ai

import (
	"fmt"
	"strings"
	"time"

	"github.com/benvon/kanban-assistant/internal/models"
)

// BuildSystemPrompt renders the system instruction for one turn. The task
// listing is the only way the model can resolve a task named by the user to
// its id.
func BuildSystemPrompt(board models.BoardContext, today time.Time) string {
	var b strings.Builder

	b.WriteString("You are a task board assistant. You help the user plan and organize the tasks on their Kanban board ")
	b.WriteString("and you can create, edit and delete tasks with the provided tools.\n\n")

	fmt.Fprintf(&b, "Today's date: %s\n\n", today.Format("2006-01-02"))

	b.WriteString("Board summary:\n")
	fmt.Fprintf(&b, "- To Do: %d\n", board.TodoCount)
	fmt.Fprintf(&b, "- In Progress: %d\n", board.InProgressCount)
	fmt.Fprintf(&b, "- Done: %d\n\n", board.DoneCount)

	b.WriteString("Tasks (id | title | status | priority):\n")
	if len(board.Tasks) == 0 {
		b.WriteString("(no tasks)\n")
	}
	for _, t := range board.Tasks {
		fmt.Fprintf(&b, "%s | %s | %s | %s\n", t.ID, oneLine(t.Title), t.Status, t.Priority)
	}

	b.WriteString("\nRules:\n")
	b.WriteString("- Whenever the user asks to add, change, move, complete or remove a task, call the matching tool. ")
	b.WriteString("Never describe a change in prose without calling the tool.\n")
	b.WriteString("- Use the exact id from the task listing above for edit_task and delete_task.\n")
	b.WriteString("- Statuses are todo, in_progress and done. Priorities are low, medium and high.\n")
	b.WriteString("- Write due dates as YYYY-MM-DD.\n")
	b.WriteString("- Keep answers short and reply in the same language the user writes in.\n")

	return b.String()
}

// oneLine keeps a title from breaking the listing format
func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", "/")
}
