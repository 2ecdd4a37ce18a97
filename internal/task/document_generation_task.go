package task

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/easybewerbung/bewerbung-api/internal/domain"
	"github.com/easybewerbung/bewerbung-api/internal/generation"
	"github.com/easybewerbung/bewerbung-api/internal/ledger"
	"github.com/easybewerbung/bewerbung-api/internal/prompt"
	"github.com/easybewerbung/bewerbung-api/internal/store"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Common errors
var (
	ErrNilDependency = errors.New("task dependency cannot be nil")
	ErrEmptyTaskID   = errors.New("domain task ID cannot be empty")
	ErrInvalidRecord = errors.New("stored task payload is invalid")
)

// Failure reasons recorded on documents and tasks. They are shown to users,
// so they never carry raw infrastructure errors.
const (
	reasonContextUnavailable  = "application data could not be loaded"
	reasonNoCV                = "no CV with text content"
	reasonMissingSnapshot     = "template snapshot missing"
	reasonEmptyOutput         = "provider returned no text"
	reasonInsufficientCredits = "insufficient credits"
	reasonRefunded            = "charge was already refunded"
	reasonBillingFailed       = "credits could not be charged"
	reasonPersistFailed       = "document could not be saved"
	reasonInterrupted         = "generation was interrupted"
)

// Charger is the part of the credit ledger the executors use.
type Charger interface {
	TryDebit(ctx context.Context, userID uuid.UUID, amount int, reference string) error
	Refund(ctx context.Context, userID uuid.UUID, amount int, debitReference string) error
}

// GenerationDeps are the collaborators of a DocumentGenerationTask.
type GenerationDeps struct {
	DB           *sql.DB
	Tasks        store.GenerationTaskStore
	Documents    store.GeneratedDocumentStore
	Applications store.ApplicationStore
	Invoker      generation.Invoker
	Credits      Charger
	// Concurrency bounds the documents of one task in flight at once.
	Concurrency int
	Logger      *slog.Logger
}

func (d GenerationDeps) validate() error {
	if d.DB == nil || d.Tasks == nil || d.Documents == nil || d.Applications == nil ||
		d.Invoker == nil || d.Credits == nil {
		return ErrNilDependency
	}
	return nil
}

type generationPayload struct {
	GenerationTaskID uuid.UUID `json:"generation_task_id"`
}

// DocumentGenerationTask runs every unfinished document of one generation
// task. Running it again after a crash only touches documents that are not
// yet done or failed.
type DocumentGenerationTask struct {
	id               uuid.UUID
	generationTaskID uuid.UUID
	deps             GenerationDeps
	logger           *slog.Logger
	status           TaskStatus

	// unsettled is set when a charge for an unsaved document could not be
	// refunded. The document stays processing so a later run either saves
	// it under the same charge or refunds it.
	unsettled atomic.Bool
}

// NewDocumentGenerationTask creates the executor for generationTaskID.
func NewDocumentGenerationTask(generationTaskID uuid.UUID, deps GenerationDeps) (*DocumentGenerationTask, error) {
	return newDocumentGenerationTask(uuid.New(), generationTaskID, deps)
}

func newDocumentGenerationTask(
	id, generationTaskID uuid.UUID,
	deps GenerationDeps,
) (*DocumentGenerationTask, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if generationTaskID == uuid.Nil {
		return nil, ErrEmptyTaskID
	}
	if deps.Concurrency <= 0 {
		deps.Concurrency = 1
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &DocumentGenerationTask{
		id:               id,
		generationTaskID: generationTaskID,
		deps:             deps,
		logger: deps.Logger.With(
			"task_type", TaskTypeDocumentGeneration,
			"generation_task_id", generationTaskID),
		status: TaskStatusPending,
	}, nil
}

// DocumentGenerationFactory rebuilds stored document generation tasks.
func DocumentGenerationFactory(deps GenerationDeps) Factory {
	return func(rec Record) (Task, error) {
		var p generationPayload
		if err := json.Unmarshal(rec.Payload, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
		return newDocumentGenerationTask(rec.ID, p.GenerationTaskID, deps)
	}
}

// ID returns the task's unique identifier
func (t *DocumentGenerationTask) ID() uuid.UUID {
	return t.id
}

// Type returns the task type identifier
func (t *DocumentGenerationTask) Type() string {
	return TaskTypeDocumentGeneration
}

// GenerationTaskID returns the domain task this executor works on.
func (t *DocumentGenerationTask) GenerationTaskID() uuid.UUID {
	return t.generationTaskID
}

// Payload returns the task data as a byte slice
func (t *DocumentGenerationTask) Payload() []byte {
	data, err := json.Marshal(generationPayload{GenerationTaskID: t.generationTaskID})
	if err != nil {
		t.logger.Error("failed to marshal task payload", "error", err)
		return []byte{}
	}
	return data
}

// Status returns the current task status
func (t *DocumentGenerationTask) Status() TaskStatus {
	return t.status
}

// Execute processes the generation task until every document is terminal
// and records the final task status.
func (t *DocumentGenerationTask) Execute(ctx context.Context) error {
	t.status = TaskStatusProcessing

	gt, err := t.deps.Tasks.Get(ctx, t.generationTaskID)
	if err != nil {
		t.status = TaskStatusFailed
		t.logger.Error("failed to load generation task", "error", err)
		return fmt.Errorf("failed to load generation task: %w", err)
	}
	if gt.Status.IsTerminal() {
		t.status = TaskStatusCompleted
		t.logger.Info("generation task already finished", "status", gt.Status)
		return nil
	}

	if err := t.deps.Tasks.UpdateStatus(ctx, gt.ID, domain.TaskStatusProcessing, ""); err != nil {
		t.status = TaskStatusFailed
		return fmt.Errorf("failed to mark generation task processing: %w", err)
	}
	t.logger.Info("starting document generation",
		"application_id", gt.ApplicationID,
		"total_docs", gt.TotalDocs,
		"completed_docs", gt.CompletedDocs)

	app, err := t.deps.Applications.GetContext(ctx, gt.UserID, gt.ApplicationID)
	if err != nil {
		t.logger.Error("failed to load application context", "error", err)
		return t.failOpenDocuments(ctx, gt, reasonContextUnavailable)
	}
	if strings.TrimSpace(app.CVText) == "" {
		t.logger.Info("application has no CV text, nothing can be generated")
		return t.failOpenDocuments(ctx, gt, reasonNoCV)
	}

	var g errgroup.Group
	g.SetLimit(t.deps.Concurrency)
	for _, doc := range gt.Documents {
		if doc.Status.IsTerminal() {
			continue
		}
		g.Go(func() error {
			return t.runDocument(ctx, gt, doc, app)
		})
	}
	if err := g.Wait(); err != nil {
		t.logger.Error("document bookkeeping failed", "error", err)
	}

	if t.unsettled.Load() {
		t.status = TaskStatusPending
		return fmt.Errorf("%w: a charge for an unsaved document is still held", ErrDeferred)
	}
	return t.finish(ctx, gt.ID, "")
}

// failOpenDocuments fails every document that has not finished yet and
// closes the task with reason.
func (t *DocumentGenerationTask) failOpenDocuments(ctx context.Context, gt *domain.GenerationTask, reason string) error {
	for _, doc := range gt.Documents {
		if !doc.Status.IsTerminal() {
			if err := t.failDocument(ctx, gt.ID, doc.DocType, reason); err != nil {
				t.logger.Error("failed to fail document", "doc_type", doc.DocType, "error", err)
			}
		}
	}
	return t.finish(ctx, gt.ID, reason)
}

// finish closes out any document left open by a bookkeeping error and
// writes the task outcome.
func (t *DocumentGenerationTask) finish(ctx context.Context, id uuid.UUID, reason string) error {
	gt, err := t.deps.Tasks.Get(ctx, id)
	if err != nil {
		t.status = TaskStatusFailed
		return fmt.Errorf("failed to reload generation task: %w", err)
	}
	for _, doc := range gt.Documents {
		if !doc.Status.IsTerminal() {
			t.failDocument(ctx, id, doc.DocType, reasonInterrupted)
		}
	}

	outcome := gt.Outcome()
	msg := ""
	if outcome == domain.TaskStatusFailed {
		msg = reason
		if msg == "" {
			msg = "no document could be generated"
		}
	}
	if err := t.deps.Tasks.UpdateStatus(ctx, id, outcome, msg); err != nil {
		t.status = TaskStatusFailed
		t.logger.Error("failed to record generation outcome", "error", err)
		return fmt.Errorf("failed to record generation outcome: %w", err)
	}

	t.status = TaskStatusCompleted
	t.logger.Info("document generation finished",
		"outcome", outcome,
		"completed_docs", gt.CompletedDocs,
		"total_docs", gt.TotalDocs)
	return nil
}

// runDocument produces one document. Failures of the document itself are
// recorded on it; only bookkeeping failures are returned.
func (t *DocumentGenerationTask) runDocument(
	ctx context.Context,
	gt *domain.GenerationTask,
	doc domain.GenerationTaskDocument,
	app *domain.ApplicationContext,
) error {
	log := t.logger.With("doc_type", doc.DocType)

	if err := t.deps.Tasks.MarkDocumentProcessing(ctx, gt.ID, doc.DocType); err != nil {
		if errors.Is(err, store.ErrDocumentTerminal) {
			return nil
		}
		return fmt.Errorf("mark %s processing: %w", doc.DocType, err)
	}

	tpl := doc.Template
	if tpl == nil {
		return t.failDocument(ctx, gt.ID, doc.DocType, reasonMissingSnapshot)
	}

	report := prompt.RenderTemplate(tpl, app)
	if err := report.Err(); err != nil {
		log.Warn("prompt rendered with missing context", "error", err)
	}

	text, err := t.deps.Invoker.Invoke(ctx, tpl.Provider, tpl.Model, report.Prompt)
	if err != nil {
		log.Warn("provider call failed", "error", err)
		return t.failDocument(ctx, gt.ID, doc.DocType, providerReason(err))
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return t.failDocument(ctx, gt.ID, doc.DocType, reasonEmptyOutput)
	}

	ref := domain.GenerationDebitReference(gt.ID, doc.DocType)
	if err := t.deps.Credits.TryDebit(ctx, gt.UserID, tpl.CreditCost, ref); err != nil {
		log.Warn("debit failed", "error", err)
		return t.failDocument(ctx, gt.ID, doc.DocType, debitReason(err))
	}

	generated, err := domain.NewGeneratedDocument(gt.ApplicationID, gt.ID, doc.DocType, text, tpl.Provider, tpl.Model)
	if err != nil {
		return t.refundAndFail(ctx, gt, doc.DocType, tpl.CreditCost, ref, err)
	}

	err = store.RunInTransaction(ctx, t.deps.DB, func(ctx context.Context, tx *sql.Tx) error {
		if err := t.deps.Documents.WithTx(tx).Create(ctx, generated); err != nil {
			return err
		}
		return t.deps.Tasks.WithTx(tx).CompleteDocument(ctx, gt.ID, doc.DocType)
	})
	if err != nil {
		if errors.Is(err, store.ErrDocumentTerminal) {
			// An earlier run already finished this document and kept the charge.
			log.Info("document finished by an earlier run")
			return nil
		}
		return t.refundAndFail(ctx, gt, doc.DocType, tpl.CreditCost, ref, err)
	}

	log.Info("document generated", "provider", tpl.Provider, "model", tpl.Model, "credits", tpl.CreditCost)
	return nil
}

func (t *DocumentGenerationTask) refundAndFail(
	ctx context.Context,
	gt *domain.GenerationTask,
	docType string,
	amount int,
	ref string,
	cause error,
) error {
	t.logger.Error("failed to persist generated document", "doc_type", docType, "error", cause)
	if err := t.deps.Credits.Refund(ctx, gt.UserID, amount, ref); err != nil {
		t.logger.Error("refund failed, leaving document for a later run",
			"doc_type", docType, "reference", ref, "error", err)
		t.unsettled.Store(true)
		return nil
	}
	return t.failDocument(ctx, gt.ID, docType, reasonPersistFailed)
}

func (t *DocumentGenerationTask) failDocument(ctx context.Context, taskID uuid.UUID, docType, reason string) error {
	err := t.deps.Tasks.MarkDocumentFailed(ctx, taskID, docType, reason)
	if err != nil && !errors.Is(err, store.ErrDocumentTerminal) {
		return fmt.Errorf("mark %s failed: %w", docType, err)
	}
	return nil
}

// providerReason turns a dispatch error into a message safe to show users.
func providerReason(err error) string {
	for _, kind := range []error{
		generation.ErrRateLimited,
		generation.ErrProviderUnavailable,
		generation.ErrInvalidModel,
		generation.ErrContentRejected,
	} {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return generation.ErrProviderUnavailable.Error()
	}
	return generation.ErrProviderFatal.Error()
}

func debitReason(err error) string {
	switch {
	case errors.Is(err, ledger.ErrInsufficientCredits):
		return reasonInsufficientCredits
	case errors.Is(err, ledger.ErrAlreadyRefunded):
		return reasonRefunded
	default:
		return reasonBillingFailed
	}
}
