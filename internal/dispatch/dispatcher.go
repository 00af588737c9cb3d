// Package dispatch turns a format choice into background transfer jobs.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"github.com/lvcoi/ytdl-here/internal/classify"
	"github.com/lvcoi/ytdl-here/internal/engine"
	"github.com/lvcoi/ytdl-here/internal/progress"
)

// ErrNoEntries is reported when a collection expands to nothing.
var ErrNoEntries = errors.New("collection has no entries")

// Request asks for url to be fetched into Dir using Selector.
type Request struct {
	URL      string
	Dir      string
	Selector string
}

// Sink receives worker events. It is called from worker goroutines.
type Sink func(Event)

// Recorder persists job state transitions.
type Recorder interface {
	Record(ctx context.Context, job Job) error
}

type Option func(*Dispatcher)

func WithSink(s Sink) Option {
	return func(d *Dispatcher) { d.sink = s }
}

func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) { d.recorder = r }
}

func WithClassifier(c *classify.Classifier) Option {
	return func(d *Dispatcher) { d.classifier = c }
}

func WithLogger(l zerolog.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// Dispatcher runs one worker per in-flight network operation. There is no
// upper bound on concurrent workers.
type Dispatcher struct {
	ctx        context.Context
	engine     engine.Engine
	classifier *classify.Classifier
	sink       Sink
	recorder   Recorder
	log        zerolog.Logger

	wg     conc.WaitGroup
	failed FailedJobLog
	active atomic.Int64
	now    func() time.Time
}

// New returns a dispatcher whose workers run under ctx.
func New(ctx context.Context, eng engine.Engine, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		ctx:        ctx,
		engine:     eng,
		classifier: classify.Default(),
		sink:       func(Event) {},
		log:        zerolog.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.With().Str("component", "dispatch").Logger()
	return d
}

// Dispatch returns immediately; all I/O happens on background workers.
func (d *Dispatcher) Dispatch(req Request) {
	req.URL = strings.TrimSpace(req.URL)
	if d.classifier.Classify(req.URL) == classify.Collection {
		d.spawn(func() { d.expand(req) })
		return
	}
	job := d.newJob(req.URL, "", req, false)
	d.spawn(func() { d.run(job) })
}

// Wait blocks until every worker, including ones spawned by expansions,
// has settled.
func (d *Dispatcher) Wait() {
	if r := d.wg.WaitAndRecover(); r != nil {
		d.log.Error().Str("panic", fmt.Sprint(r.Value)).Msg("worker panicked")
	}
}

// Failed is the session's failed job log.
func (d *Dispatcher) Failed() *FailedJobLog {
	return &d.failed
}

// Active is the number of workers currently running.
func (d *Dispatcher) Active() int {
	return int(d.active.Load())
}

func (d *Dispatcher) spawn(fn func()) {
	d.active.Add(1)
	d.wg.Go(func() {
		defer d.active.Add(-1)
		fn()
	})
}

func (d *Dispatcher) newJob(source, collection string, req Request, tier bool) Job {
	now := d.now()
	return Job{
		ID:          uuid.NewString(),
		SourceURL:   source,
		Collection:  collection,
		Destination: req.Dir,
		Selector:    req.Selector,
		Expression:  Expression(req.Selector, tier),
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (d *Dispatcher) expand(req Request) {
	log := d.log.With().Str("collection", req.URL).Logger()
	defer func() {
		if r := recover(); r != nil {
			err := &engine.ExtractionError{URL: req.URL, Err: fmt.Errorf("panic: %v", r)}
			log.Error().Err(err).Msg("collection expansion panicked")
			d.failed.Append(req.URL)
			d.emit(Event{Kind: EventExpansionFailed, URL: req.URL, Err: err})
		}
	}()
	md, err := d.engine.Extract(d.ctx, req.URL, engine.ExtractOptions{EnumerateEntries: true})
	if err == nil && (md == nil || len(md.Entries) == 0) {
		err = &engine.ExtractionError{URL: req.URL, Err: ErrNoEntries}
	}
	if err != nil {
		log.Warn().Err(err).Msg("collection expansion failed")
		d.failed.Append(req.URL)
		d.emit(Event{Kind: EventExpansionFailed, URL: req.URL, Err: err})
		return
	}

	youtube := classify.IsYouTube(req.URL)
	jobs := make([]Job, 0, len(md.Entries))
	for _, e := range md.Entries {
		member := e.URL
		if youtube && e.ID != "" {
			member = classify.WatchURL(e.ID)
		}
		if member == "" {
			continue
		}
		job := d.newJob(member, req.URL, req, true)
		job.Title = e.Title
		jobs = append(jobs, job)
	}
	log.Info().Int("members", len(jobs)).Msg("collection expanded")
	d.emit(Event{Kind: EventExpanded, URL: req.URL, Count: len(jobs)})
	for _, job := range jobs {
		job := job
		d.spawn(func() { d.run(job) })
	}
}

func (d *Dispatcher) run(job Job) {
	log := d.log.With().Str("job", job.ID).Str("url", job.SourceURL).Logger()
	defer func() {
		if r := recover(); r != nil {
			d.fail(job, &engine.TransferError{URL: job.SourceURL, Err: fmt.Errorf("panic: %v", r)}, log)
		}
	}()

	job.Status = StatusRunning
	job.UpdatedAt = d.now()
	d.record(job)
	d.emit(Event{Kind: EventJobStarted, Job: job})
	log.Info().Str("format", job.Expression).Str("dir", job.Destination).Msg("transfer started")

	var mu sync.Mutex
	title := job.Title
	err := d.engine.Transfer(d.ctx, job.SourceURL, engine.TransferOptions{
		FormatExpression: job.Expression,
		OutputTemplate:   engine.OutputTemplate(job.Destination),
		Progress: func(p engine.Progress) {
			if p.Title != "" {
				mu.Lock()
				title = p.Title
				mu.Unlock()
			}
			d.emit(Event{Kind: EventJobProgress, Job: Job{ID: job.ID, SourceURL: job.SourceURL}, Sample: sampleFor(job.ID, p)})
		},
	})
	mu.Lock()
	job.Title = title
	mu.Unlock()

	if err != nil {
		d.fail(job, err, log)
		return
	}
	job.Status = StatusFinished
	job.UpdatedAt = d.now()
	d.record(job)
	log.Info().Str("title", job.Title).Msg("transfer finished")
	d.emit(Event{Kind: EventJobFinished, Job: job})
}

func (d *Dispatcher) fail(job Job, err error, log zerolog.Logger) {
	job.Status = StatusFailed
	job.Err = err
	job.UpdatedAt = d.now()
	d.failed.Append(job.SourceURL)
	d.record(job)
	log.Warn().Err(err).Str("category", string(engine.CategoryOf(err))).Msg("transfer failed")
	d.emit(Event{Kind: EventJobFailed, Job: job, Err: err})
}

func (d *Dispatcher) emit(ev Event) {
	d.sink(ev)
}

func (d *Dispatcher) record(job Job) {
	if d.recorder == nil {
		return
	}
	if err := d.recorder.Record(context.WithoutCancel(d.ctx), job); err != nil {
		d.log.Warn().Err(err).Str("job", job.ID).Msg("history record failed")
	}
}

func sampleFor(jobID string, p engine.Progress) progress.Sample {
	s := progress.Sample{JobID: jobID, BytesDone: p.BytesDone, BytesTotal: p.BytesTotal}
	if p.Phase == engine.PhaseFinalizing {
		s.Phase = progress.Finalizing
	}
	return s
}
