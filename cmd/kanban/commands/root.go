package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/benvon/kanban-assistant/internal/client"
	"github.com/benvon/kanban-assistant/internal/models"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// Options are the connection settings shared by every API command
type Options struct {
	APIURL string
	Token  string
}

// NewRootCmd creates the kanban command tree
func NewRootCmd() *cobra.Command {
	opts := &Options{}

	root := &cobra.Command{
		Use:           "kanban",
		Short:         "Command line client for the kanban board",
		Long:          "Manage tasks on your board and talk to the board assistant from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.APIURL, "api-url", envOr("KANBAN_API_URL", client.DefaultBaseURL), "API base URL")
	root.PersistentFlags().StringVar(&opts.Token, "token", os.Getenv("KANBAN_TOKEN"), "Bearer token (see `kanban token`)")

	root.AddCommand(NewBoardCmd(opts))
	root.AddCommand(NewTasksCmd(opts))
	root.AddCommand(NewChatCmd(opts))
	root.AddCommand(NewTokenCmd())

	return root
}

func (o *Options) client() (*client.Client, error) {
	if strings.TrimSpace(o.Token) == "" {
		return nil, errors.New("no token: pass --token or set KANBAN_TOKEN")
	}
	return client.New(o.APIURL, o.Token), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseTaskID(arg string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid task id %q", arg)
	}
	return id, nil
}

func parseStatus(v string) (models.TaskStatus, error) {
	status := models.TaskStatus(strings.ToLower(strings.TrimSpace(v)))
	if !status.Valid() {
		return "", fmt.Errorf("invalid status %q (want todo, in_progress or done)", v)
	}
	return status, nil
}

func parsePriority(v string) (models.TaskPriority, error) {
	priority := models.TaskPriority(strings.ToLower(strings.TrimSpace(v)))
	if !priority.Valid() {
		return "", fmt.Errorf("invalid priority %q (want low, medium or high)", v)
	}
	return priority, nil
}
