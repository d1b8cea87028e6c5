// Package console is the interactive chat loop: it reads queries, shows
// pending approvals to the user and feeds their decisions back into the
// suspended turn.
package console

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/agent"
	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/llm"
	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/protocol"
)

// Runner is the agent surface the loop drives. *agent.Agent satisfies it.
type Runner interface {
	Run(ctx context.Context, query string, history []llm.Message) (*agent.Result, error)
	Approve(ctx context.Context, p protocol.PendingApproval) (protocol.ApprovalDecision, error)
	Resume(ctx context.Context, query string, history []llm.Message, d *agent.Deferred, decisions []protocol.ApprovalDecision) (*agent.Result, error)
}

// Loop is one interactive session. It owns the conversation history.
type Loop struct {
	runner  Runner
	scanner *bufio.Scanner
	out     io.Writer
	logger  *zap.Logger
	history []llm.Message

	prompt *color.Color
	answer *color.Color
	notice *color.Color
	failed *color.Color
}

// New creates a Loop reading from in and writing to out.
func New(r Runner, in io.Reader, out io.Writer, logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		runner:  r,
		scanner: bufio.NewScanner(in),
		out:     out,
		logger:  logger,
		prompt:  color.New(color.FgCyan, color.Bold),
		answer:  color.New(color.FgGreen),
		notice:  color.New(color.FgYellow),
		failed:  color.New(color.FgRed),
	}
}

// History returns the merged transcript so far.
func (l *Loop) History() []llm.Message { return l.history }

// Run reads queries until exit, quit, end of input or ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	defer fmt.Fprintln(l.out, "\nGoodbye!")
	for {
		if ctx.Err() != nil {
			return nil
		}
		query, ok := l.read("You: ")
		if !ok {
			return l.scanner.Err()
		}
		switch strings.ToLower(query) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		if err := l.turn(ctx, query); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			l.logger.Warn("turn failed", zap.Error(err))
			l.failed.Fprintf(l.out, "Error: %v\n", err)
		}
	}
}

// turn runs query to a final answer, asking for approval whenever the
// agent suspends. History is only extended once the turn finishes.
func (l *Loop) turn(ctx context.Context, query string) error {
	res, err := l.runner.Run(ctx, query, l.history)
	if err != nil {
		return err
	}
	for res.Deferred != nil {
		var decisions []protocol.ApprovalDecision
		for _, p := range res.Deferred.Requests {
			if !l.confirm(p) {
				l.notice.Fprintln(l.out, "Approval denied. Tool call skipped.")
				continue
			}
			dec, err := l.runner.Approve(ctx, p)
			if err != nil {
				return err
			}
			decisions = append(decisions, dec)
		}
		if res, err = l.runner.Resume(ctx, query, l.history, res.Deferred, decisions); err != nil {
			return err
		}
	}

	l.answer.Fprintf(l.out, "LLM_Response: %s\n", res.Output)
	l.history = append(l.history, res.NewMessages...)
	return nil
}

func (l *Loop) confirm(p protocol.PendingApproval) bool {
	args, err := json.Marshal(p.Request.Arguments)
	if err != nil {
		args = []byte(fmt.Sprint(p.Request.Arguments))
	}
	l.notice.Fprintf(l.out, "\nApproval required for tool: %s\n", p.Request.ToolName)
	fmt.Fprintf(l.out, "Arguments: %s\n", args)
	reply, ok := l.read("Do you approve this tool call? [y/n]: ")
	return ok && strings.HasPrefix(strings.ToLower(reply), "y")
}

func (l *Loop) read(prompt string) (string, bool) {
	l.prompt.Fprint(l.out, prompt)
	if !l.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(l.scanner.Text()), true
}
