package core

// reconciler.go runs one import file through tokenizing and validation.
//
// Processing Flow:
//  1. Resolve the schema for the kind (ErrUnknownImportKind if absent)
//  2. Check file type and size, open the file, read the header
//  3. Validate each data row, either inline or on a pool of workers
//  4. Accumulate counts and rejected rows at a single point
//
// Fatal problems (unknown kind, wrong file type, unreadable file) return an
// error and no result. Row problems are recorded and never stop the run.
// Cancellation through the context or the Progress is checked before each
// row; a cancelled run returns the counts so far with Incomplete set.

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultReportEvery is the number of rows between progress reports.
const DefaultReportEvery = 100

// ReconcilerConfig tunes a Reconciler. The zero value validates inline,
// reports every DefaultReportEvery rows, and has no size or retention caps.
type ReconcilerConfig struct {
	Workers     int   // Values above 1 validate rows concurrently
	ReportEvery int   // Rows between progress reports
	MaxFileSize int64 // Bytes; 0 disables the check
	MaxRejected int   // Rejected rows kept in the result; 0 keeps all

	// Observe, if set, is called once per processed row from the
	// accumulating goroutine, in completion order.
	Observe func(ValidatedRow)
}

// Reconciler classifies the rows of import files. It holds no per-run
// state and may serve concurrent runs.
type Reconciler struct {
	cfg ReconcilerConfig
}

// NewReconciler creates a Reconciler.
func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	if cfg.ReportEvery <= 0 {
		cfg.ReportEvery = DefaultReportEvery
	}
	return &Reconciler{cfg: cfg}
}

// ProcessFile validates every data row of file against the schema for kind.
// progress may be nil; when set, ProcessFile is its writer and closes its
// update channel before returning.
func (r *Reconciler) ProcessFile(ctx context.Context, file FileSource, kind Kind, progress *Progress) (*ImportResult, error) {
	start := time.Now()
	if progress == nil {
		progress = NewProgress()
	}
	defer progress.Close()

	schema, err := GetSchema(kind)
	if err != nil {
		return nil, err
	}

	if err := CheckFileType(file.Name(), file.ContentType()); err != nil {
		return nil, err
	}
	if r.cfg.MaxFileSize > 0 && file.Size() > r.cfg.MaxFileSize {
		return nil, &InvalidFileError{Reason: "file too large", Err: errFileTooLarge}
	}

	rc, err := file.Open()
	if err != nil {
		return nil, &InvalidFileError{Reason: "unreadable file", Err: err}
	}
	defer rc.Close()

	reader, counter := WrapForStreaming(rc, file.Size(), r.cfg.MaxFileSize)
	tok, err := Tokenize(reader)
	if err != nil {
		return nil, err
	}

	run := &importRun{
		ctx:       ctx,
		tok:       tok,
		validator: NewRowValidator(schema, tok.Header()),
		progress:  progress,
		counter:   counter,
		acc:       newAccumulator(r.cfg.MaxRejected, r.cfg.Observe),
		every:     r.cfg.ReportEvery,
	}

	if r.cfg.Workers > 1 {
		err = run.parallel(r.cfg.Workers)
	} else {
		err = run.sequential()
	}
	if err != nil {
		return nil, err
	}

	result := run.acc.finish()
	result.Kind = kind
	result.FileName = file.Name()
	result.Header = tok.Header()
	result.MissingColumns = run.validator.MissingColumns()
	result.Incomplete = run.cancelled
	result.Duration = time.Since(start)

	if !result.Incomplete {
		progress.Report(1)
	}
	return result, nil
}

// importRun is the state of a single ProcessFile call.
type importRun struct {
	ctx       context.Context
	tok       *Tokenizer
	validator *RowValidator
	progress  *Progress
	counter   *CountingReader
	acc       *accumulator
	every     int
	cancelled bool
}

func (run *importRun) stopRequested() bool {
	return run.progress.IsCancelled() || run.ctx.Err() != nil
}

func (run *importRun) record(row ValidatedRow) {
	run.acc.add(row)
	if run.acc.total%run.every == 0 {
		run.progress.Report(run.counter.Fraction())
	}
}

func (run *importRun) sequential() error {
	for {
		if run.stopRequested() {
			run.cancelled = true
			return nil
		}
		if !run.tok.Next() {
			return run.tok.Err()
		}
		run.record(run.validator.Validate(run.tok.Row()))
	}
}

// parallel fans rows out to workers and funnels outcomes back to the
// calling goroutine, which is the only writer of the accumulator. Workers
// drop queued rows once a stop is requested, so nothing is validated after
// cancellation is observed.
func (run *importRun) parallel(workers int) error {
	g, gctx := errgroup.WithContext(run.ctx)
	jobs := make(chan RawRow, workers*2)
	results := make(chan ValidatedRow, workers*2)

	var stopped sync.Once
	markStopped := func() { stopped.Do(func() { run.cancelled = true }) }

	g.Go(func() error {
		defer close(jobs)
		for {
			if run.stopRequested() {
				markStopped()
				return nil
			}
			if !run.tok.Next() {
				return run.tok.Err()
			}
			select {
			case jobs <- run.tok.Row():
			case <-gctx.Done():
				markStopped()
				return nil
			}
		}
	})

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			for raw := range jobs {
				if run.stopRequested() {
					markStopped()
					continue
				}
				results <- run.validator.Validate(raw)
			}
			return nil
		})
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	for row := range results {
		run.record(row)
	}

	return g.Wait()
}

// accumulator is the single point where row outcomes are counted.
type accumulator struct {
	success     int
	errors      int
	total       int
	maxRejected int
	rejected    []ValidatedRow
	accepted    []ValidatedRow
	observe     func(ValidatedRow)
}

func newAccumulator(maxRejected int, observe func(ValidatedRow)) *accumulator {
	return &accumulator{maxRejected: maxRejected, observe: observe}
}

func (a *accumulator) add(row ValidatedRow) {
	a.total++
	if row.Accepted() {
		a.success++
		a.accepted = append(a.accepted, row)
	} else {
		a.errors++
		if a.maxRejected <= 0 || len(a.rejected) < a.maxRejected {
			a.rejected = append(a.rejected, row)
		}
	}
	if a.observe != nil {
		a.observe(row)
	}
}

// finish orders outcomes by row index so parallel runs report the same
// result as sequential ones.
func (a *accumulator) finish() *ImportResult {
	sort.Slice(a.rejected, func(i, j int) bool { return a.rejected[i].Index < a.rejected[j].Index })
	sort.Slice(a.accepted, func(i, j int) bool { return a.accepted[i].Index < a.accepted[j].Index })

	records := make([]Record, len(a.accepted))
	for i, row := range a.accepted {
		records[i] = row.Record
	}
	rejected := a.rejected
	if rejected == nil {
		rejected = []ValidatedRow{}
	}

	return &ImportResult{
		Success:  a.success,
		Errors:   a.errors,
		Total:    a.total,
		Rejected: rejected,
		Accepted: records,
	}
}
