package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/benvon/kanban-assistant/internal/database"
	"github.com/benvon/kanban-assistant/internal/models"
	"github.com/benvon/kanban-assistant/internal/services/ai"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var (
	// ErrTaskNotFound means the target id matched no task owned by the caller
	ErrTaskNotFound = errors.New("task not found")
	// ErrInvalidArguments means the tool call failed to decode or validate
	ErrInvalidArguments = ai.ErrInvalidArguments
)

// Store is the owner-scoped mutation surface the executor writes to
type Store interface {
	Create(ctx context.Context, task *models.Task) error
	Update(ctx context.Context, userID, id uuid.UUID, patch models.TaskPatch) (*models.Task, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

// BoardView is the board snapshot a batch starts from
type BoardView interface {
	Owner() uuid.UUID
	Tasks() []models.Task
	ColumnLengths() map[models.TaskStatus]int
}

// Outcome is the result of one tool call
type Outcome struct {
	Call   ai.ToolCall
	Action *models.ActionResult
	Task   *models.Task
	Err    error
}

// Failed reports whether the call did not apply
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// Notice renders a failed call as a user-visible message
func (o Outcome) Notice() string {
	if o.Err == nil {
		return ""
	}
	verb := "run"
	switch o.Call.Name {
	case ai.ToolCreateTask:
		verb = "create"
	case ai.ToolEditTask:
		verb = "edit"
	case ai.ToolDeleteTask:
		verb = "delete"
	}
	switch {
	case errors.Is(o.Err, ErrTaskNotFound):
		return fmt.Sprintf("Could not %s the task: it does not exist on your board.", verb)
	case errors.Is(o.Err, ErrInvalidArguments), errors.Is(o.Err, ai.ErrUnknownTool):
		return fmt.Sprintf("Could not %s the task: the assistant sent invalid details.", verb)
	default:
		return fmt.Sprintf("Could not %s the task. Please try again.", verb)
	}
}

// Report collects the outcomes of one batch in execution order
type Report struct {
	Outcomes []Outcome
}

// LastAction returns the last non-nil action result of the batch
func (r Report) LastAction() *models.ActionResult {
	for i := len(r.Outcomes) - 1; i >= 0; i-- {
		if r.Outcomes[i].Action != nil {
			return r.Outcomes[i].Action
		}
	}
	return nil
}

// Mutated reports whether any call changed the store
func (r Report) Mutated() bool {
	return r.LastAction() != nil
}

// Failures returns the outcomes that did not apply
func (r Report) Failures() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if o.Failed() {
			failed = append(failed, o)
		}
	}
	return failed
}

// Confirmation renders the sentence shown when the model sent tool calls
// without prose
func Confirmation(action models.ActionResult) string {
	switch action.Type {
	case models.ActionCreate:
		return fmt.Sprintf("Created task %q.", action.TaskTitle)
	case models.ActionEdit:
		return fmt.Sprintf("Updated task %q.", action.TaskTitle)
	case models.ActionDelete:
		return fmt.Sprintf("Deleted task %q.", action.TaskTitle)
	default:
		return "Done."
	}
}

// Executor runs tool calls against the store on behalf of one owner
type Executor struct {
	store  Store
	logger *zap.Logger
	tracer trace.Tracer
}

// New creates an executor
func New(store Store, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		store:  store,
		logger: logger,
		tracer: otel.Tracer("github.com/benvon/kanban-assistant/internal/services/executor"),
	}
}

// batch carries what the executor learns while a batch runs. Positions and
// titles come from the starting snapshot plus the batch's own mutations; the
// board is not re-read until the whole batch is done.
type batch struct {
	owner   uuid.UUID
	lengths map[models.TaskStatus]int
	known   map[uuid.UUID]models.Task
}

func newBatch(view BoardView) *batch {
	b := &batch{
		owner:   view.Owner(),
		lengths: make(map[models.TaskStatus]int, len(models.TaskStatuses)),
		known:   make(map[uuid.UUID]models.Task),
	}
	for status, n := range view.ColumnLengths() {
		b.lengths[status] = n
	}
	for _, t := range view.Tasks() {
		b.known[t.ID] = t
	}
	return b
}

// Execute runs calls sequentially in the order received. A failing call is
// recorded and the rest of the batch still runs.
func (e *Executor) Execute(ctx context.Context, view BoardView, calls []ai.ToolCall) Report {
	b := newBatch(view)
	report := Report{Outcomes: make([]Outcome, 0, len(calls))}

	for _, call := range calls {
		outcome := e.executeOne(ctx, b, call)
		report.Outcomes = append(report.Outcomes, outcome)
	}

	return report
}

func (e *Executor) executeOne(ctx context.Context, b *batch, call ai.ToolCall) (outcome Outcome) {
	ctx, span := e.tracer.Start(ctx, "executor."+call.Name, trace.WithAttributes(
		attribute.String("tool.name", call.Name),
		attribute.String("tool.call_id", call.ID),
	))
	defer func() {
		if outcome.Err != nil {
			span.RecordError(outcome.Err)
			span.SetStatus(codes.Error, outcome.Err.Error())
		}
		span.End()
	}()

	outcome = Outcome{Call: call}

	action, err := ai.ParseAction(call)
	if err != nil {
		outcome.Err = err
		e.logFailure(b.owner, call, err)
		return outcome
	}

	switch a := action.(type) {
	case ai.CreateTaskAction:
		outcome.Task, outcome.Action, outcome.Err = e.create(ctx, b, a)
	case ai.EditTaskAction:
		outcome.Task, outcome.Action, outcome.Err = e.edit(ctx, b, a)
	case ai.DeleteTaskAction:
		outcome.Action, outcome.Err = e.delete(ctx, b, a)
	default:
		outcome.Err = fmt.Errorf("%w: %q", ai.ErrUnknownTool, call.Name)
	}

	if outcome.Err != nil {
		e.logFailure(b.owner, call, outcome.Err)
		return outcome
	}

	e.logger.Info("tool_call_executed",
		zap.String("tool", call.Name),
		zap.String("user_id", b.owner.String()),
		zap.String("task_title", outcome.Action.TaskTitle),
	)
	return outcome
}

func (e *Executor) logFailure(owner uuid.UUID, call ai.ToolCall, err error) {
	e.logger.Warn("tool_call_failed",
		zap.String("tool", call.Name),
		zap.String("tool_call_id", call.ID),
		zap.String("user_id", owner.String()),
		zap.Error(err),
	)
}

func (e *Executor) create(ctx context.Context, b *batch, a ai.CreateTaskAction) (*models.Task, *models.ActionResult, error) {
	task, err := a.NewTask(b.owner, b.lengths[a.Status])
	if err != nil {
		return nil, nil, err
	}

	if err := e.store.Create(ctx, &task); err != nil {
		return nil, nil, fmt.Errorf("failed to create task: %w", err)
	}

	b.lengths[task.Status]++
	b.known[task.ID] = task

	return &task, &models.ActionResult{Type: models.ActionCreate, TaskTitle: task.Title}, nil
}

func (e *Executor) edit(ctx context.Context, b *batch, a ai.EditTaskAction) (*models.Task, *models.ActionResult, error) {
	patch, err := a.Patch()
	if err != nil {
		return nil, nil, err
	}

	// a task moved to another column goes to the end of it
	if prev, ok := b.known[a.TaskID]; ok && patch.Status != nil && *patch.Status != prev.Status {
		position := b.lengths[*patch.Status]
		patch.Position = &position
	}

	task, err := e.store.Update(ctx, b.owner, a.TaskID, patch)
	if err != nil {
		return nil, nil, mapStoreError("update", a.TaskID, err)
	}

	if prev, ok := b.known[a.TaskID]; ok && prev.Status != task.Status {
		b.lengths[prev.Status]--
		b.lengths[task.Status]++
	}
	b.known[task.ID] = *task

	return task, &models.ActionResult{Type: models.ActionEdit, TaskTitle: task.Title}, nil
}

func (e *Executor) delete(ctx context.Context, b *batch, a ai.DeleteTaskAction) (*models.ActionResult, error) {
	if err := e.store.Delete(ctx, b.owner, a.TaskID); err != nil {
		return nil, mapStoreError("delete", a.TaskID, err)
	}

	title := a.TaskID.String()
	if prev, ok := b.known[a.TaskID]; ok {
		title = prev.Title
		b.lengths[prev.Status]--
		delete(b.known, a.TaskID)
	}

	return &models.ActionResult{Type: models.ActionDelete, TaskTitle: title}, nil
}

func mapStoreError(op string, id uuid.UUID, err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("failed to %s task %s: %w", op, id, ErrTaskNotFound)
	}
	return fmt.Errorf("failed to %s task %s: %w", op, id, err)
}
