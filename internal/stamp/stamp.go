// Package stamp increments the persisted build counter and stamps the
// generated header with the new build number and the current time.
package stamp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/foxytanuki/buildstamp/internal/counter"
	"github.com/foxytanuki/buildstamp/internal/fsutil"
	"github.com/foxytanuki/buildstamp/internal/header"
	"github.com/foxytanuki/buildstamp/internal/logger"
)

// Options configures a Stamper.
type Options struct {
	CounterPath string
	HeaderPath  string
	Markers     header.Markers

	// Atomic defers every write until both files have been read and
	// patched, then swaps both in via temp files. A header failure then
	// leaves the counter untouched.
	Atomic bool

	// DryRun computes the new values without writing anything.
	DryRun bool

	// Now defaults to time.Now.
	Now func() time.Time
}

// Result describes a successful run.
type Result struct {
	Previous    int
	BuildNumber int
	BuildDate   string
	CounterPath string
	HeaderPath  string
	DryRun      bool
}

// Current is a read-only snapshot of both artifacts.
type Current struct {
	Counter int
	Header  header.Values
}

// Stamper runs the read, increment, write, patch, write sequence.
// It is not safe for concurrent use and takes no file locks.
type Stamper struct {
	opts    Options
	store   *counter.Store
	patcher *header.Patcher
	log     *logger.Logger
}

// New creates a Stamper. Empty paths and markers fall back to the defaults.
func New(opts Options, log *logger.Logger) (*Stamper, error) {
	if opts.CounterPath == "" {
		opts.CounterPath = counter.DefaultPath
	}
	if opts.HeaderPath == "" {
		opts.HeaderPath = header.DefaultPath
	}
	if opts.Markers.Number == "" {
		opts.Markers.Number = header.DefaultNumberMacro
	}
	if opts.Markers.Date == "" {
		opts.Markers.Date = header.DefaultDateMacro
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = logger.Default()
	}

	patcher, err := header.NewPatcher(opts.Markers)
	if err != nil {
		return nil, fmt.Errorf("failed to build header patcher: %w", err)
	}

	return &Stamper{
		opts:    opts,
		store:   counter.New(opts.CounterPath),
		patcher: patcher,
		log:     log,
	}, nil
}

// UpdateBuildNumber increments the counter store and rewrites the header's
// build number and build date lines.
//
// In the default mode the two files are written independently: if the header
// step fails after the counter was saved, the counter stays incremented.
func (s *Stamper) UpdateBuildNumber(ctx context.Context) (*Result, error) {
	if s.opts.Atomic || s.opts.DryRun {
		return s.updateStaged(ctx)
	}
	return s.updateSequential(ctx)
}

func (s *Stamper) updateSequential(ctx context.Context) (*Result, error) {
	prev, next, err := s.readCounter(ctx)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.store.Save(next); err != nil {
		return nil, newError("write counter", s.opts.CounterPath, ErrCounterWrite, err)
	}
	s.log.Debug("Counter saved", "path", s.opts.CounterPath, "build_number", next)

	src, err := s.readHeader(ctx)
	if err != nil {
		return nil, err
	}

	date := s.opts.Now().Format(header.DateLayout)
	patched, err := s.patch(src, next, date)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := fsutil.WriteFile(s.opts.HeaderPath, patched); err != nil {
		return nil, newError("write header", s.opts.HeaderPath, ErrHeaderWrite, err)
	}
	s.log.Debug("Header saved", "path", s.opts.HeaderPath, "build_date", date)

	return s.result(prev, next, date), nil
}

func (s *Stamper) updateStaged(ctx context.Context) (*Result, error) {
	prev, next, err := s.readCounter(ctx)
	if err != nil {
		return nil, err
	}

	src, err := s.readHeader(ctx)
	if err != nil {
		return nil, err
	}

	date := s.opts.Now().Format(header.DateLayout)
	patched, err := s.patch(src, next, date)
	if err != nil {
		return nil, err
	}

	if s.opts.DryRun {
		s.log.Info("Dry run, nothing written", "build_number", next, "build_date", date)
		return s.result(prev, next, date), nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	counterTmp, err := fsutil.StageFile(s.opts.CounterPath, counter.Format(next))
	if err != nil {
		return nil, newError("stage counter", s.opts.CounterPath, ErrCounterWrite, err)
	}
	defer counterTmp.Discard()

	headerTmp, err := fsutil.StageFile(s.opts.HeaderPath, patched)
	if err != nil {
		return nil, newError("stage header", s.opts.HeaderPath, ErrHeaderWrite, err)
	}
	defer headerTmp.Discard()

	// Counter first: a failed header rename then skips a number instead of
	// reusing one on the next run.
	if err := counterTmp.Commit(); err != nil {
		return nil, newError("commit counter", s.opts.CounterPath, ErrCounterWrite, err)
	}
	if err := headerTmp.Commit(); err != nil {
		return nil, newError("commit header", s.opts.HeaderPath, ErrHeaderWrite, err)
	}
	s.log.Debug("Counter and header committed",
		"counter", s.opts.CounterPath,
		"header", s.opts.HeaderPath,
	)

	return s.result(prev, next, date), nil
}

// Inspect reads the current counter and header marker values without
// changing anything.
func (s *Stamper) Inspect(ctx context.Context) (*Current, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n, err := s.store.Load()
	if err != nil {
		return nil, classifyCounterLoad(s.opts.CounterPath, err)
	}

	src, err := s.readHeader(ctx)
	if err != nil {
		return nil, err
	}

	values, err := s.patcher.Inspect(src)
	if err != nil {
		return nil, s.classifyPatch(err)
	}

	return &Current{Counter: n, Header: values}, nil
}

// CounterPath returns the counter store location.
func (s *Stamper) CounterPath() string {
	return s.opts.CounterPath
}

// HeaderPath returns the header artifact location.
func (s *Stamper) HeaderPath() string {
	return s.opts.HeaderPath
}

func (s *Stamper) readCounter(ctx context.Context) (prev, next int, err error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	data, err := fsutil.ReadFile(s.opts.CounterPath)
	if err != nil {
		return 0, 0, newError("read counter", s.opts.CounterPath, ErrCounterRead, err)
	}

	prev, err = counter.Parse(data)
	if err != nil {
		return 0, 0, newError("parse counter", s.opts.CounterPath, ErrCounterParse, err)
	}

	next, err = counter.Next(prev)
	if err != nil {
		return 0, 0, newError("increment counter", s.opts.CounterPath, ErrCounterParse, err)
	}

	s.log.Debug("Counter read", "path", s.opts.CounterPath, "previous", prev, "next", next)
	return prev, next, nil
}

func (s *Stamper) readHeader(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, err := fsutil.ReadFile(s.opts.HeaderPath)
	if err != nil {
		return nil, newError("read header", s.opts.HeaderPath, ErrHeaderRead, err)
	}
	return src, nil
}

func (s *Stamper) patch(src []byte, next int, date string) ([]byte, error) {
	numbers, dates := s.patcher.Count(src)
	if numbers > 1 || dates > 1 {
		s.log.Warn("Multiple marker lines found, only the first of each is updated",
			"path", s.opts.HeaderPath,
			"number_lines", numbers,
			"date_lines", dates,
		)
	}

	patched, err := s.patcher.Patch(src, next, date)
	if err != nil {
		return nil, s.classifyPatch(err)
	}
	return patched, nil
}

func (s *Stamper) classifyPatch(err error) error {
	if errors.Is(err, header.ErrMarkerMissing) {
		return newError("patch header", s.opts.HeaderPath, ErrMarkerMissing, err)
	}
	return fmt.Errorf("patch header %s: %w", s.opts.HeaderPath, err)
}

func (s *Stamper) result(prev, next int, date string) *Result {
	return &Result{
		Previous:    prev,
		BuildNumber: next,
		BuildDate:   date,
		CounterPath: s.opts.CounterPath,
		HeaderPath:  s.opts.HeaderPath,
		DryRun:      s.opts.DryRun,
	}
}

func classifyCounterLoad(path string, err error) error {
	switch {
	case errors.Is(err, counter.ErrInvalid),
		errors.Is(err, counter.ErrNegative),
		errors.Is(err, counter.ErrOverflow):
		return newError("parse counter", path, ErrCounterParse, err)
	default:
		return newError("read counter", path, ErrCounterRead, err)
	}
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
