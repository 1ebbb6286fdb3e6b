package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/benvon/kanban-assistant/internal/board"
	"github.com/benvon/kanban-assistant/internal/logger"
	"github.com/benvon/kanban-assistant/internal/services/ai"
	"github.com/benvon/kanban-assistant/internal/services/executor"
	"github.com/benvon/kanban-assistant/internal/session"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewChatCmd creates the chat command. Tool calls returned by the relay are
// executed locally against the API, the same way the web client does it.
func NewChatCmd(opts *Options) *cobra.Command {
	var streaming, verbose bool

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to the board assistant",
		Long:  "Send one message, or start an interactive conversation when no message is given. Type /reset to start over and /quit to leave.",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}

			zapLogger := zap.NewNop()
			if verbose {
				if zapLogger, err = logger.NewDevelopmentLogger(false); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			me, err := c.Me(ctx)
			if err != nil {
				return fmt.Errorf("failed to identify user: %w", err)
			}
			state := board.NewState(c, me.ID)
			if err := state.Reconcile(ctx); err != nil {
				return err
			}
			sess := session.New(state, c, executor.New(c, zapLogger), session.WithLogger(zapLogger))

			chatter := &chatter{sess: sess, out: cmd.OutOrStdout(), streaming: streaming}
			if len(args) > 0 {
				return chatter.turn(ctx, strings.Join(args, " "))
			}
			return chatter.repl(ctx, cmd.InOrStdin())
		},
	}

	cmd.Flags().BoolVar(&streaming, "stream", false, "Print the reply as it is generated")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log relay and tool-call activity to stderr")

	return cmd
}

type chatter struct {
	sess      *session.Session
	out       io.Writer
	streaming bool
}

func (c *chatter) repl(ctx context.Context, in io.Reader) error {
	_, _ = fmt.Fprintf(c.out, "assistant> %s\n", session.Greeting)

	scanner := bufio.NewScanner(in)
	for {
		_, _ = fmt.Fprint(c.out, "you> ")
		if !scanner.Scan() {
			_, _ = fmt.Fprintln(c.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			if err := c.sess.Reset(); err != nil {
				return err
			}
			if err := c.sess.Reconcile(ctx); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(c.out, "assistant> %s\n", session.Greeting)
			continue
		}

		if err := c.turn(ctx, line); err != nil {
			_, _ = fmt.Fprintf(c.out, "! %s\n", turnErrorMessage(err))
			// The session refuses further turns once the quota is gone
			if errors.Is(err, ai.ErrQuotaExhausted) {
				return err
			}
		}
	}
}

func (c *chatter) turn(ctx context.Context, text string) error {
	var turn *session.Turn
	var err error
	if c.streaming {
		_, _ = fmt.Fprint(c.out, "assistant> ")
		wrote := false
		turn, err = c.sess.SendStream(ctx, text, func(delta string) error {
			wrote = true
			_, werr := fmt.Fprint(c.out, delta)
			return werr
		})
		if wrote || err != nil {
			_, _ = fmt.Fprintln(c.out)
		}
		if err != nil {
			return err
		}
		if !wrote {
			_, _ = fmt.Fprintln(c.out, turn.Reply.Content)
		}
	} else {
		turn, err = c.sess.Send(ctx, text)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(c.out, "assistant> %s\n", turn.Reply.Content)
	}

	for _, notice := range turn.Notices {
		_, _ = fmt.Fprintf(c.out, "! %s\n", notice)
	}
	if turn.Report.Mutated() {
		s := c.sess.State().Summary()
		_, _ = fmt.Fprintf(c.out, "  board: %d todo, %d in progress, %d done\n", s.TodoCount, s.InProgressCount, s.DoneCount)
	}
	return nil
}

func turnErrorMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrEmptyMessage), errors.Is(err, session.ErrTurnInFlight):
		return err.Error()
	case errors.Is(err, ai.ErrRateLimited), errors.Is(err, ai.ErrQuotaExhausted), errors.Is(err, ai.ErrUpstream):
		return ai.UserMessage(err)
	default:
		return err.Error()
	}
}
