// Package agent runs the think/act loop on the caller side of the notes
// server.
//
// A turn that hits an approval-required tool is suspended rather than
// completed: Run returns the pending requests together with a signed
// checkpoint. The caller collects a decision per request, forwards the
// approved ones with Approve, and continues the same turn with Resume.
// Denied requests are answered with a refusal so the model proceeds
// without their effect.
package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/approval"
	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/llm"
	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/protocol"
)

// DeniedMessage is the tool result recorded for a request the user denied.
const DeniedMessage = "The user denied this tool call. It was skipped and nothing was changed."

const defaultMaxIterations = 10

var (
	// ErrMaxIterations is returned when the model keeps calling tools past
	// the configured bound.
	ErrMaxIterations = errors.New("agent: too many tool iterations")
	// ErrForeignDecision is returned when a decision does not answer one of
	// the turn's pending requests.
	ErrForeignDecision = errors.New("agent: decision does not match a pending request")
	// ErrNotSuspended is returned when Resume is called without a deferred turn.
	ErrNotSuspended = errors.New("agent: no suspended turn to resume")
)

// Config tunes the model requests.
type Config struct {
	Model         string
	System        string
	MaxIterations int
	MaxTokens     int
	Temperature   *float64
}

// Agent drives one conversation against an LLM and a ToolCaller.
type Agent struct {
	llm    llm.Client
	tools  ToolCaller
	gate   *approval.Gate
	cfg    Config
	logger *zap.Logger
	newID  func() string
}

// New creates an Agent. gate seals turn checkpoints; it only needs to be
// shared between Run and Resume.
func New(client llm.Client, tools ToolCaller, gate *approval.Gate, cfg Config, logger *zap.Logger) *Agent {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		llm:    client,
		tools:  tools,
		gate:   gate,
		cfg:    cfg,
		logger: logger,
		newID:  uuid.NewString,
	}
}

// Result is the outcome of Run or Resume. Exactly one of Output and
// Deferred is meaningful.
type Result struct {
	Output   string
	Deferred *Deferred
	// NewMessages is the finished turn's transcript. The caller appends it
	// to its history before the next query. Empty while Deferred is set.
	NewMessages []llm.Message
}

// Deferred is a suspended turn.
type Deferred struct {
	TurnID string
	// Requests are the parked calls, each with CallID set to the model's
	// tool call id.
	Requests []protocol.PendingApproval
	// Completed holds results of tools that already ran in the suspended step.
	Completed []llm.ContentBlock
	// Messages is the turn transcript up to the suspended step.
	Messages   []llm.Message
	Checkpoint string
}

// Run starts a new turn for query on top of history.
func (a *Agent) Run(ctx context.Context, query string, history []llm.Message) (*Result, error) {
	return a.loop(ctx, query, history, []llm.Message{llm.NewUserMessage(query)})
}

// Approve forwards an approved request with its approval token and
// packages the server's answer as a decision.
func (a *Agent) Approve(ctx context.Context, p protocol.PendingApproval) (protocol.ApprovalDecision, error) {
	out, err := a.tools.CallTool(ctx, p.Request.ToolName, p.Request.Arguments, p.Token)
	if err != nil {
		return protocol.ApprovalDecision{}, err
	}
	return protocol.ApprovalDecision{
		ToolName: p.Request.ToolName,
		CallID:   p.Request.CallID,
		Outcome:  out,
	}, nil
}

// Resume continues the turn suspended in d. query and history must be the
// ones given to the Run that suspended it. decisions answer the approved
// requests; a pending request without a decision counts as denied.
func (a *Agent) Resume(ctx context.Context, query string, history []llm.Message, d *Deferred, decisions []protocol.ApprovalDecision) (*Result, error) {
	if d == nil || len(d.Messages) == 0 {
		return nil, ErrNotSuspended
	}
	cp, err := checkpoint(d.TurnID, query, history, d)
	if err != nil {
		return nil, err
	}
	if err := a.gate.Open(d.Checkpoint, cp); err != nil {
		return nil, fmt.Errorf("agent: resume turn %s: %w", d.TurnID, err)
	}

	answered, err := pair(d.Requests, decisions)
	if err != nil {
		return nil, err
	}

	results := make(map[string]llm.ContentBlock, len(d.Completed)+len(d.Requests))
	for _, c := range d.Completed {
		results[c.ToolUseID] = c
	}
	for _, p := range d.Requests {
		id := p.Request.CallID
		if dec, ok := answered[id]; ok {
			results[id] = llm.ToolResult(id, dec.Outcome.Message, dec.Outcome.Kind.IsError())
			continue
		}
		a.logger.Info("tool call denied", zap.String("tool", p.Request.ToolName), zap.String("call_id", id))
		results[id] = llm.ToolResult(id, DeniedMessage, false)
	}

	msgs := append([]llm.Message(nil), d.Messages...)
	last := msgs[len(msgs)-1]
	blocks := make([]llm.ContentBlock, 0, len(results))
	for _, b := range last.Blocks {
		if b.Type != llm.ContentTypeToolUse {
			continue
		}
		r, ok := results[b.ID]
		if !ok {
			r = llm.ToolResult(b.ID, "No result was recorded for this call.", true)
		}
		blocks = append(blocks, r)
	}
	msgs = append(msgs, llm.NewToolResults(blocks...))
	return a.loop(ctx, query, history, msgs)
}

func (a *Agent) loop(ctx context.Context, query string, history, turn []llm.Message) (*Result, error) {
	tools, err := a.tools.ListTools(ctx)
	if err != nil {
		return nil, err
	}

	for i := 0; i < a.cfg.MaxIterations; i++ {
		msgs := make([]llm.Message, 0, len(history)+len(turn))
		msgs = append(append(msgs, history...), turn...)
		resp, err := a.llm.CreateMessage(ctx, &llm.Request{
			Model:       a.cfg.Model,
			System:      a.cfg.System,
			Messages:    msgs,
			Tools:       tools,
			MaxTokens:   a.cfg.MaxTokens,
			Temperature: a.cfg.Temperature,
		})
		if err != nil {
			return nil, err
		}
		turn = append(turn, resp.Message())

		uses := resp.ToolUses()
		if len(uses) == 0 {
			return &Result{Output: resp.TextContent(), NewMessages: turn}, nil
		}

		var (
			results []llm.ContentBlock
			pending []protocol.PendingApproval
		)
		for _, u := range uses {
			out, err := a.tools.CallTool(ctx, u.Name, u.Input, "")
			if err != nil {
				return nil, err
			}
			a.logger.Debug("tool call", zap.String("tool", u.Name), zap.String("kind", string(out.Kind)))
			if out.Kind == protocol.KindPendingApproval && out.Pending != nil {
				p := *out.Pending
				p.Request.CallID = u.ID
				pending = append(pending, p)
				continue
			}
			results = append(results, llm.ToolResult(u.ID, out.Message, out.Kind.IsError()))
		}

		if len(pending) > 0 {
			return a.suspend(query, history, turn, results, pending)
		}
		turn = append(turn, llm.NewToolResults(results...))
	}
	return nil, ErrMaxIterations
}

func (a *Agent) suspend(query string, history, turn []llm.Message, completed []llm.ContentBlock, pending []protocol.PendingApproval) (*Result, error) {
	d := &Deferred{
		TurnID:    a.newID(),
		Requests:  pending,
		Completed: completed,
		Messages:  turn,
	}
	cp, err := checkpoint(d.TurnID, query, history, d)
	if err != nil {
		return nil, err
	}
	if d.Checkpoint, err = a.gate.Seal(cp); err != nil {
		return nil, err
	}
	a.logger.Info("turn suspended for approval",
		zap.String("turn", d.TurnID), zap.Int("pending", len(pending)))
	return &Result{Deferred: d}, nil
}

// checkpoint binds the turn to its query, the prior history and everything
// the suspended step produced.
func checkpoint(turnID, query string, history []llm.Message, d *Deferred) (approval.Checkpoint, error) {
	sum, err := approval.Digest(struct {
		History   []llm.Message              `json:"history"`
		Turn      []llm.Message              `json:"turn"`
		Completed []llm.ContentBlock         `json:"completed"`
		Requests  []protocol.PendingApproval `json:"requests"`
	}{history, d.Messages, d.Completed, d.Requests})
	if err != nil {
		return approval.Checkpoint{}, err
	}
	ids := make([]string, 0, len(d.Requests))
	for _, p := range d.Requests {
		ids = append(ids, p.Request.CallID)
	}
	return approval.Checkpoint{TurnID: turnID, Query: query, HistoryDigest: sum, CallIDs: ids}, nil
}

// pair matches decisions to pending requests by call id, or by tool name in
// order when a decision carries no call id.
func pair(pending []protocol.PendingApproval, decisions []protocol.ApprovalDecision) (map[string]protocol.ApprovalDecision, error) {
	out := make(map[string]protocol.ApprovalDecision, len(decisions))
	for _, dec := range decisions {
		id := dec.CallID
		if id == "" {
			for _, p := range pending {
				if _, taken := out[p.Request.CallID]; !taken && p.Request.ToolName == dec.ToolName {
					id = p.Request.CallID
					break
				}
			}
		}
		if !hasCall(pending, id, dec.ToolName) {
			return nil, fmt.Errorf("%w: %s %s", ErrForeignDecision, dec.ToolName, dec.CallID)
		}
		if _, dup := out[id]; dup {
			return nil, fmt.Errorf("%w: %s answered twice", ErrForeignDecision, id)
		}
		out[id] = dec
	}
	return out, nil
}

func hasCall(pending []protocol.PendingApproval, id, tool string) bool {
	for _, p := range pending {
		if id != "" && p.Request.CallID == id && p.Request.ToolName == tool {
			return true
		}
	}
	return false
}
