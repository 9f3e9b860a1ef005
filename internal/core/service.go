package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Default session settings, used when ServiceConfig leaves them zero.
const (
	DefaultImportTimeout   = 10 * time.Minute
	DefaultResultTTL       = 30 * time.Minute
	DefaultSubmitBatchSize = 100
	sideEffectTimeout      = 10 * time.Second
)

// RunSummary describes a finished import run for the ledger and event stream.
type RunSummary struct {
	ImportID   string    `json:"importId"`
	Kind       Kind      `json:"kind"`
	FileName   string    `json:"fileName"`
	Total      int       `json:"total"`
	Success    int       `json:"success"`
	Errors     int       `json:"errors"`
	Incomplete bool      `json:"incomplete"`
	Failed     bool      `json:"failed"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// RunRecorder stores run summaries.
type RunRecorder interface {
	RecordRun(ctx context.Context, run RunSummary) error
}

// CompletionNotifier announces finished runs to other systems.
type CompletionNotifier interface {
	ImportCompleted(ctx context.Context, run RunSummary) error
}

// SubmitOutcome is the persistence API's verdict on one submitted record.
// Index is the record's position in ImportResult.Accepted.
type SubmitOutcome struct {
	Index   int    `json:"index"`
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Submitter creates records in the system of record.
type Submitter interface {
	BulkCreate(ctx context.Context, kind Kind, records []Record) ([]SubmitOutcome, error)
}

// SubmitResult aggregates the outcomes of submitting an import's records.
type SubmitResult struct {
	ImportID  string          `json:"importId"`
	Submitted int             `json:"submitted"`
	Created   int             `json:"created"`
	Failed    int             `json:"failed"`
	Outcomes  []SubmitOutcome `json:"outcomes"`
}

// ServiceConfig tunes a Service.
type ServiceConfig struct {
	Reconciler      ReconcilerConfig
	MaxConcurrent   int
	MaxWait         time.Duration
	ImportTimeout   time.Duration
	ResultTTL       time.Duration
	SubmitBatchSize int
}

// Dependencies are the Service's collaborators. Nil members disable the
// matching feature: no ledger, no events, no submission, no export.
type Dependencies struct {
	Recorder  RunRecorder
	Notifier  CompletionNotifier
	Submitter Submitter
	Fetcher   RecordFetcher
}

// Service runs import sessions in the background and serves their progress
// and results. Each session is identified by a UUID.
type Service struct {
	cfg        ServiceConfig
	deps       Dependencies
	reconciler *Reconciler
	limiter    *ImportLimiter

	mu      sync.RWMutex
	imports map[string]*importSession
}

type importSession struct {
	id        string
	kind      Kind
	fileName  string
	startedAt time.Time
	progress  *Progress
	done      chan struct{}

	mu        sync.Mutex
	state     ImportProgress
	result    *ImportResult
	err       error
	listeners []chan ImportProgress
	submitted bool
}

// NewService creates a Service.
func NewService(cfg ServiceConfig, deps Dependencies) *Service {
	if cfg.ImportTimeout <= 0 {
		cfg.ImportTimeout = DefaultImportTimeout
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = DefaultResultTTL
	}
	if cfg.SubmitBatchSize <= 0 {
		cfg.SubmitBatchSize = DefaultSubmitBatchSize
	}

	return &Service{
		cfg:        cfg,
		deps:       deps,
		reconciler: NewReconciler(cfg.Reconciler),
		limiter:    NewImportLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		imports:    make(map[string]*importSession),
	}
}

// ListSchemas returns all registered import schemas.
func (s *Service) ListSchemas() []*ImportSchema {
	return All()
}

// StartImport begins validating file in the background and returns the
// import id. Use Subscribe for progress and Result for the outcome.
//
// The unknown-kind and file-type checks run before a slot is taken, so
// those failures are reported immediately. If file has a Remove method it
// is called once the run finishes.
//
// Returns ErrTooManyImports if no slot frees up within the wait period.
func (s *Service) StartImport(ctx context.Context, file FileSource, kind Kind) (string, error) {
	if _, err := GetSchema(kind); err != nil {
		return "", err
	}
	if err := CheckFileType(file.Name(), file.ContentType()); err != nil {
		return "", err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	id := uuid.New().String()
	sess := &importSession{
		id:        id,
		kind:      kind,
		fileName:  file.Name(),
		startedAt: time.Now(),
		progress:  NewProgress(),
		done:      make(chan struct{}),
		state: ImportProgress{
			ImportID: id,
			Kind:     kind,
			FileName: file.Name(),
			Phase:    PhaseStarting,
		},
	}

	s.mu.Lock()
	s.imports[id] = sess
	s.mu.Unlock()

	runCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ImportTimeout)

	// Process in background with panic recovery to ensure limiter release
	go func() {
		defer s.limiter.Release()
		defer cancel()
		defer removeSpooled(file)
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in import",
					"import_id", id,
					"kind", kind,
					"panic", r,
				)
				s.finish(sess, nil, fmt.Errorf("internal error: %v", r))
			}
		}()
		s.run(runCtx, sess, file)
	}()

	slog.Info("import started", "import_id", id, "kind", kind, "file", file.Name(), "size", file.Size())
	return id, nil
}

func (s *Service) run(ctx context.Context, sess *importSession, file FileSource) {
	sess.update(func(p *ImportProgress) { p.Phase = PhaseValidating })

	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		for f := range sess.progress.Updates() {
			sess.update(func(p *ImportProgress) {
				if !p.Phase.Terminal() {
					p.Fraction = f
				}
			})
		}
	}()

	result, err := s.reconciler.ProcessFile(ctx, file, sess.kind, sess.progress)
	<-forwarded
	if err == nil && result.Incomplete && !sess.progress.IsCancelled() &&
		errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("import exceeded %s: %w", s.cfg.ImportTimeout, context.DeadlineExceeded)
	}
	s.finish(sess, result, err)
}

// finish publishes the outcome, releases listeners, and runs side effects.
func (s *Service) finish(sess *importSession, result *ImportResult, err error) {
	sess.mu.Lock()
	if sess.state.Phase.Terminal() {
		sess.mu.Unlock()
		return
	}
	sess.result = result
	sess.err = err
	switch {
	case err != nil:
		sess.state.Phase = PhaseFailed
		sess.state.Error = FormatUserError(err)
	case result.Incomplete:
		sess.state.Phase = PhaseCancelled
	default:
		sess.state.Phase = PhaseComplete
		sess.state.Fraction = 1
	}
	state := sess.state
	sess.mu.Unlock()

	sess.notify(state)
	sess.closeListeners()
	close(sess.done)

	summary := RunSummary{
		ImportID:   sess.id,
		Kind:       sess.kind,
		FileName:   sess.fileName,
		StartedAt:  sess.startedAt,
		FinishedAt: time.Now(),
	}
	if result != nil {
		summary.Total = result.Total
		summary.Success = result.Success
		summary.Errors = result.Errors
		summary.Incomplete = result.Incomplete
	}
	if err != nil {
		summary.Failed = true
		summary.Error = err.Error()
	}

	logger := slog.With("import_id", sess.id, "kind", sess.kind, "file", sess.fileName)
	switch {
	case IsFatal(err):
		logger.Warn("import rejected", "error", err)
	case err != nil:
		logger.Error("import failed", "error", err)
	default:
		logger.Info("import finished",
			"phase", state.Phase,
			"total", summary.Total,
			"success", summary.Success,
			"errors", summary.Errors,
			"duration", summary.FinishedAt.Sub(summary.StartedAt),
		)
	}

	s.afterRun(summary)
	s.cleanup(sess.id, s.cfg.ResultTTL)
}

// afterRun records and announces a run. Both are best-effort.
func (s *Service) afterRun(summary RunSummary) {
	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()

	if s.deps.Recorder != nil {
		if err := s.deps.Recorder.RecordRun(ctx, summary); err != nil {
			slog.Warn("failed to record import run", "import_id", summary.ImportID, "error", err)
		}
	}
	if s.deps.Notifier != nil {
		if err := s.deps.Notifier.ImportCompleted(ctx, summary); err != nil {
			slog.Warn("failed to publish import event", "import_id", summary.ImportID, "error", err)
		}
	}
}

func (s *Service) session(id string) (*importSession, error) {
	s.mu.RLock()
	sess, ok := s.imports[id]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrImportNotFound, id)
	}
	return sess, nil
}

// Subscribe returns a channel that receives progress updates. The current
// state is delivered first. The channel is closed when the import ends.
func (s *Service) Subscribe(id string) (<-chan ImportProgress, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}

	ch := make(chan ImportProgress, 10)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	ch <- sess.state
	if sess.state.Phase.Terminal() {
		close(ch)
		return ch, nil
	}
	sess.listeners = append(sess.listeners, ch)
	return ch, nil
}

// Cancel asks a running import to stop at the next row. The partial
// result stays available through Result.
func (s *Service) Cancel(id string) error {
	sess, err := s.session(id)
	if err != nil {
		return err
	}
	sess.progress.Cancel()
	slog.Info("import cancel requested", "import_id", id)
	return nil
}

// Result returns the result of an import, waiting for it to finish.
func (s *Service) Result(ctx context.Context, id string) (*ImportResult, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}

	select {
	case <-sess.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.result, sess.err
}

// Progress returns the current state without blocking.
func (s *Service) Progress(id string) (ImportProgress, error) {
	sess, err := s.session(id)
	if err != nil {
		return ImportProgress{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state, nil
}

// Submit sends the accepted records of a finished, complete import to the
// persistence API in batches. A batch that fails as a whole marks each of
// its records failed and submission continues with the next batch.
func (s *Service) Submit(ctx context.Context, id string) (*SubmitResult, error) {
	if s.deps.Submitter == nil {
		return nil, fmt.Errorf("record submission is not configured")
	}

	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	select {
	case <-sess.done:
	default:
		return nil, ErrImportNotFinished
	}

	sess.mu.Lock()
	result, runErr, already := sess.result, sess.err, sess.submitted
	if runErr == nil && result != nil && !result.Incomplete && !already {
		sess.submitted = true
	}
	sess.mu.Unlock()

	switch {
	case runErr != nil:
		return nil, runErr
	case result.Incomplete:
		return nil, ErrImportIncomplete
	case already:
		return nil, fmt.Errorf("%w: %s", ErrAlreadySubmitted, id)
	}

	out := &SubmitResult{ImportID: id, Outcomes: make([]SubmitOutcome, 0, len(result.Accepted))}
	for start := 0; start < len(result.Accepted); start += s.cfg.SubmitBatchSize {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		end := min(start+s.cfg.SubmitBatchSize, len(result.Accepted))
		batch := result.Accepted[start:end]

		outcomes, err := s.deps.Submitter.BulkCreate(ctx, sess.kind, batch)
		if err != nil {
			slog.Warn("bulk create failed", "import_id", id, "batch_start", start, "error", err)
			outcomes = make([]SubmitOutcome, len(batch))
			for i := range outcomes {
				outcomes[i] = SubmitOutcome{Index: i, Error: err.Error()}
			}
		}
		for _, o := range outcomes {
			o.Index += start
			if o.Success {
				out.Created++
			} else {
				out.Failed++
			}
			out.Outcomes = append(out.Outcomes, o)
		}
		out.Submitted += len(batch)
	}

	slog.Info("import submitted", "import_id", id, "created", out.Created, "failed", out.Failed)
	return out, nil
}

// Export renders schedules in the requested range. The range is checked
// before anything is fetched.
func (s *Service) Export(ctx context.Context, req ExportRequest) (*ExportFile, error) {
	if err := ValidateExportRequest(req); err != nil {
		return nil, err
	}
	if s.deps.Fetcher == nil {
		return nil, fmt.Errorf("export is not configured")
	}
	return NewExporter(s.deps.Fetcher).Export(ctx, req)
}

// LimiterStatus returns the import slot usage.
func (s *Service) LimiterStatus() ImportLimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until all running imports finish or ctx is done.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// update applies fn to the session state and notifies listeners.
func (sess *importSession) update(fn func(*ImportProgress)) {
	sess.mu.Lock()
	if sess.state.Phase.Terminal() {
		sess.mu.Unlock()
		return
	}
	fn(&sess.state)
	state := sess.state
	sess.mu.Unlock()

	sess.notify(state)
}

// notify sends state to all listeners without blocking.
func (sess *importSession) notify(state ImportProgress) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	for _, ch := range sess.listeners {
		select {
		case ch <- state:
		default:
			// Listener is slow, skip this update
		}
	}
}

// closeListeners closes all listener channels.
func (sess *importSession) closeListeners() {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	for _, ch := range sess.listeners {
		close(ch)
	}
	sess.listeners = nil
}

// cleanup removes the import from tracking after a delay.
func (s *Service) cleanup(id string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.imports, id)
		s.mu.Unlock()
	})
}

func removeSpooled(file FileSource) {
	r, ok := file.(interface{ Remove() error })
	if !ok {
		return
	}
	if err := r.Remove(); err != nil {
		slog.Warn("failed to remove spooled upload", "file", file.Name(), "error", err)
	}
}
