// Package preview keeps a rendered preview in step with an editable list of
// source PDFs.
//
// Every mutation bumps a generation and re-arms a debounce timer. When the
// timer fires a single rebuild runs on its own goroutine; mutations arriving
// meanwhile coalesce into exactly one follow-up rebuild, and a result whose
// generation is no longer current is thrown away.
package preview

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/local/pdfsplitmerge/internal/logger"
	"github.com/local/pdfsplitmerge/internal/metrics"
	"github.com/local/pdfsplitmerge/internal/tempfiles"
)

// DefaultDebounce is the quiescence window before a rebuild starts.
const DefaultDebounce = 250 * time.Millisecond

// State is the orchestrator's preview state.
type State int

const (
	Empty State = iota
	SinglePreview
	BuildingCandidate
	CandidateReady
	BuildFailed
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case SinglePreview:
		return "single"
	case BuildingCandidate:
		return "building"
	case CandidateReady:
		return "ready"
	case BuildFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Merger builds the candidate document. assembler.Assembler satisfies it.
type Merger interface {
	Merge(ctx context.Context, inputs []string, output string) (string, error)
}

// Viewer shows one document at a time. render.Renderer satisfies it.
type Viewer interface {
	Open(path string) error
	Close() error
}

// Listener receives rebuild outcomes. Calls arrive on the rebuild goroutine,
// one at a time and in rebuild order.
type Listener interface {
	// OnCandidateReady reports the document now open in the Viewer: the
	// source itself for one path, the candidate temp file for several.
	OnCandidateReady(path string)
	OnCleared()
	OnFailed(err error)
}

// Options configures an Orchestrator. Merger and Viewer are required.
type Options struct {
	Merger   Merger
	Viewer   Viewer
	Listener Listener
	Debounce time.Duration
	// TempDir holds candidate files; os.TempDir when empty.
	TempDir string
}

// Orchestrator owns one Viewer and at most one live candidate temp file.
type Orchestrator struct {
	merger   Merger
	viewer   Viewer
	listener Listener
	debounce time.Duration
	tempDir  string
	log      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	idle      *sync.Cond
	paths     []string
	gen       uint64
	timer     *time.Timer
	timerSeq  uint64
	armed     bool
	running   bool
	pending   bool
	closed    bool
	state     State
	statePath string
	candidate string
	rebuilds  int
}

// New returns an orchestrator in the Empty state.
func New(opts Options) *Orchestrator {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Listener == nil {
		opts.Listener = nopListener{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		merger:   opts.Merger,
		viewer:   opts.Viewer,
		listener: opts.Listener,
		debounce: opts.Debounce,
		tempDir:  opts.TempDir,
		log:      logger.Component("preview"),
		ctx:      ctx,
		cancel:   cancel,
	}
	o.idle = sync.NewCond(&o.mu)
	return o
}

// Update records the latest list of paths and schedules a debounced rebuild.
// It never blocks on a rebuild.
func (o *Orchestrator) Update(paths []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.paths = append([]string(nil), paths...)
	o.gen++
	o.armLocked()
}

// Clear empties the list and rebuilds immediately, deleting any candidate.
// When a rebuild is in flight the clear runs right after it.
func (o *Orchestrator) Clear() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.paths = nil
	o.gen++
	o.disarmLocked()
	if o.running {
		o.pending = true
		o.mu.Unlock()
		return
	}
	o.running = true
	o.mu.Unlock()
	o.run()
}

// Close stops scheduling, waits for an in-flight rebuild, deletes the live
// candidate and closes the Viewer. It is safe to call more than once.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.gen++
	o.disarmLocked()
	o.cancel()
	for o.running {
		o.idle.Wait()
	}
	candidate := o.candidate
	o.candidate = ""
	o.state, o.statePath = Empty, ""
	o.mu.Unlock()

	if err := o.viewer.Close(); err != nil {
		o.log.Warn().Err(err).Msg("viewer close failed")
	}
	tempfiles.Remove(candidate)
	o.log.Debug().Msg("preview closed")
}

// Wait blocks until no rebuild is scheduled or running.
func (o *Orchestrator) Wait() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for o.armed || o.running || o.pending {
		o.idle.Wait()
	}
}

// State returns the current state and the path it refers to, if any.
func (o *Orchestrator) State() (State, string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state, o.statePath
}

// Candidate returns the live candidate temp file, or "".
func (o *Orchestrator) Candidate() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.candidate
}

// Rebuilds returns how many rebuilds have run.
func (o *Orchestrator) Rebuilds() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rebuilds
}

func (o *Orchestrator) armLocked() {
	if o.timer != nil {
		o.timer.Stop()
	}
	o.timerSeq++
	seq := o.timerSeq
	o.armed = true
	o.timer = time.AfterFunc(o.debounce, func() { o.fire(seq) })
}

func (o *Orchestrator) disarmLocked() {
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	// a callback that already fired sees a stale seq and returns
	o.timerSeq++
	if o.armed {
		o.armed = false
		o.idle.Broadcast()
	}
}

func (o *Orchestrator) fire(seq uint64) {
	o.mu.Lock()
	if seq != o.timerSeq || o.closed {
		o.mu.Unlock()
		return
	}
	o.armed = false
	if o.running {
		o.pending = true
		o.mu.Unlock()
		return
	}
	o.running = true
	o.mu.Unlock()
	o.run()
}

// run performs rebuilds until no follow-up is pending. The caller has set
// o.running.
func (o *Orchestrator) run() {
	for {
		o.mu.Lock()
		if o.closed {
			o.running, o.pending = false, false
			o.idle.Broadcast()
			o.mu.Unlock()
			return
		}
		paths := append([]string(nil), o.paths...)
		gen := o.gen
		o.rebuilds++
		o.mu.Unlock()

		o.rebuild(paths, gen)

		o.mu.Lock()
		if o.pending && !o.closed {
			o.pending = false
			o.mu.Unlock()
			continue
		}
		o.running, o.pending = false, false
		o.idle.Broadcast()
		o.mu.Unlock()
		return
	}
}

func (o *Orchestrator) rebuild(paths []string, gen uint64) {
	start := time.Now()
	switch len(paths) {
	case 0:
		o.showEmpty()
		metrics.ObservePreview("empty", time.Since(start))
	case 1:
		o.showSingle(paths[0], gen)
		metrics.ObservePreview("single", time.Since(start))
	default:
		metrics.ObservePreview(o.buildCandidate(paths, gen), time.Since(start))
	}
}

func (o *Orchestrator) showEmpty() {
	if err := o.viewer.Close(); err != nil {
		o.log.Warn().Err(err).Msg("viewer close failed")
	}
	o.mu.Lock()
	old := o.candidate
	o.candidate = ""
	o.state, o.statePath = Empty, ""
	o.mu.Unlock()
	tempfiles.Remove(old)
	o.listener.OnCleared()
}

func (o *Orchestrator) showSingle(path string, gen uint64) {
	err := o.viewer.Open(path)

	o.mu.Lock()
	old := o.candidate
	o.candidate = ""
	if err != nil {
		o.state, o.statePath = BuildFailed, ""
	} else {
		o.state, o.statePath = SinglePreview, path
	}
	o.mu.Unlock()
	tempfiles.Remove(old)

	if err != nil {
		o.log.Debug().Err(err).Str("file", path).Uint64("gen", gen).Msg("single preview failed")
		o.listener.OnFailed(err)
		return
	}
	o.listener.OnCandidateReady(path)
}

// buildCandidate merges paths into a fresh temp file and swaps it in. The
// previous candidate is deleted only after the new one is open.
func (o *Orchestrator) buildCandidate(paths []string, gen uint64) string {
	o.mu.Lock()
	o.state, o.statePath = BuildingCandidate, ""
	o.mu.Unlock()

	tmp, err := tempfiles.CreatePreview(o.tempDir)
	if err != nil {
		o.fail(fmt.Errorf("create candidate: %w", err), gen)
		return "failed"
	}
	// tmp is removed on every path that does not hand it over to o.candidate
	owned := false
	defer func() {
		if !owned {
			tempfiles.Remove(tmp)
		}
	}()

	if _, err := o.merger.Merge(o.ctx, paths, tmp); err != nil {
		if o.stale(gen) {
			return "stale"
		}
		o.fail(err, gen)
		return "failed"
	}
	if o.stale(gen) {
		o.log.Debug().Uint64("gen", gen).Msg("discarding superseded candidate")
		return "stale"
	}
	if err := o.viewer.Open(tmp); err != nil {
		o.fail(err, gen)
		return "failed"
	}

	o.mu.Lock()
	old := o.candidate
	o.candidate = tmp
	owned = true
	o.state, o.statePath = CandidateReady, tmp
	o.mu.Unlock()
	tempfiles.Remove(old)

	o.log.Debug().Int("inputs", len(paths)).Str("candidate", tmp).Uint64("gen", gen).Msg("candidate ready")
	o.listener.OnCandidateReady(tmp)
	return "ready"
}

func (o *Orchestrator) fail(err error, gen uint64) {
	if cerr := o.viewer.Close(); cerr != nil {
		o.log.Warn().Err(cerr).Msg("viewer close failed")
	}
	o.mu.Lock()
	old := o.candidate
	o.candidate = ""
	o.state, o.statePath = BuildFailed, ""
	o.mu.Unlock()
	tempfiles.Remove(old)

	o.log.Debug().Err(err).Uint64("gen", gen).Msg("preview rebuild failed")
	o.listener.OnFailed(err)
}

func (o *Orchestrator) stale(gen uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return gen != o.gen
}

type nopListener struct{}

func (nopListener) OnCandidateReady(string) {}
func (nopListener) OnCleared()              {}
func (nopListener) OnFailed(error)          {}
