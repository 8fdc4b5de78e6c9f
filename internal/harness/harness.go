package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/roach88/giftswap/internal/exchange"
	"github.com/roach88/giftswap/internal/store"
	"github.com/roach88/giftswap/internal/testutil"
)

// errInjectedWrite is returned for steps marked fail_write.
var errInjectedWrite = errors.New("injected write failure")

// faultPersister forwards to the writer unless armed, in which case the next
// Persist fails without touching disk.
type faultPersister struct {
	mu    sync.Mutex
	next  exchange.Persister
	armed bool
}

func (p *faultPersister) Persist(ctx context.Context, c exchange.Commit) error {
	p.mu.Lock()
	armed, next := p.armed, p.next
	p.armed = false
	p.mu.Unlock()

	if armed {
		return errInjectedWrite
	}
	return next.Persist(ctx, c)
}

func (p *faultPersister) arm(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.armed = on
}

func (p *faultPersister) swap(next exchange.Persister) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next = next
}

// Harness is the scenario execution environment.
// It runs scenarios with a deterministic clock, tokens and shuffle order.
type Harness struct {
	files    *store.FileStore
	writer   *store.Writer
	faults   *faultPersister
	registry *exchange.Registry

	tokens   *testutil.SequenceTokens
	clock    *testutil.StepClock
	shuffler *exchange.Shuffler
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh state file in a temporary directory.
// Execution flow:
//  1. Register setup names
//  2. Execute flow steps, checking each expect clause
//  3. Drain the writer and reload the state file
//  4. Evaluate assertions against the final state and trace
//
// The returned error covers harness failures only; scenario failures are
// reported through Result.
func Run(scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "giftswap-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario dir: %w", err)
	}
	defer os.RemoveAll(dir)

	h, err := newHarness(scenario, filepath.Join(dir, "exchange.json"))
	if err != nil {
		return nil, err
	}
	defer func() { h.writer.Close() }()

	ctx := context.Background()
	result := NewResult()

	for i, name := range scenario.Setup {
		if _, err := h.registry.Register(ctx, name, ""); err != nil {
			return nil, fmt.Errorf("setup[%d] %q: %w", i, name, err)
		}
	}

	for i, step := range scenario.Flow {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("flow[%d]: %w", i, err)
		}
	}

	h.writer.Close()
	result.Commits = h.writer.Seq()
	result.Final = h.registry.Snapshot()
	if err := h.checkDurable(result); err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(scenario *Scenario, path string) (*Harness, error) {
	var rnd exchange.Rand = testutil.TopRand{}
	if len(scenario.Rand) > 0 {
		rnd = testutil.NewScriptedRand(scenario.Rand...)
	}
	shuffler, err := exchange.NewShuffler(rnd)
	if err != nil {
		return nil, fmt.Errorf("failed to create shuffler: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &Harness{
		// Load defaults missing timestamps from its own clock so restarts
		// do not shift registration times.
		files: store.NewFileStore(path,
			store.WithFileLogger(logger),
			store.WithFileClock(testutil.NewStepClock(testutil.DefaultStart, 0)),
		),
		tokens:   testutil.NewSequenceTokens(scenario.TokenPrefix),
		clock:    testutil.NewDefaultClock(),
		shuffler: shuffler,
		logger:   logger,
	}
	h.writer = h.newWriter(0)
	h.faults = &faultPersister{next: h.writer}

	if err := h.open(nil); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Harness) newWriter(startSeq int64) *store.Writer {
	return store.NewWriter(h.files,
		store.WithStartSeq(startSeq),
		store.WithWriterClock(testutil.NewStepClock(testutil.DefaultStart, 0)),
		store.WithWriterLogger(h.logger),
	)
}

func (h *Harness) open(snap *exchange.Snapshot) error {
	reg, err := exchange.NewRegistry(snap, exchange.Options{
		Tokens:    h.tokens,
		Clock:     h.clock,
		Shuffler:  h.shuffler,
		Persister: h.faults,
		Logger:    h.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create registry: %w", err)
	}
	h.registry = reg
	return nil
}

// executeStep runs one flow step and records it in the trace.
func (h *Harness) executeStep(ctx context.Context, index int, step Step, result *Result) error {
	if step.Op == OpRestart {
		if err := h.restart(); err != nil {
			return err
		}
		result.AddTrace(TraceEvent{Step: index, Op: step.Op, Outcome: OutcomeOK})
		return nil
	}

	h.faults.arm(step.FailWrite)
	defer h.faults.arm(false)

	var (
		token string
		err   error
	)
	switch step.Op {
	case OpRegister:
		token, err = h.registry.Register(ctx, step.Name, step.IP)
	case OpShuffle:
		err = h.registry.Shuffle(ctx)
	case OpReopen:
		err = h.registry.Reopen(ctx)
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}

	event := TraceEvent{Step: index, Op: step.Op, Outcome: OutcomeOK, Token: token}
	if err != nil {
		event.Outcome = string(exchange.KindOf(err))
		if event.Outcome == "" {
			return err
		}
	}
	result.AddTrace(event)

	want := ""
	if step.Expect != nil {
		want = step.Expect.Error
	}
	switch {
	case want == "" && err != nil:
		result.AddError(fmt.Sprintf("flow[%d] %s: expected success, got %v", index, step.Op, err))
	case want != "" && err == nil:
		result.AddError(fmt.Sprintf("flow[%d] %s: expected %s error, got success", index, step.Op, want))
	case want != "" && want != event.Outcome:
		result.AddError(fmt.Sprintf("flow[%d] %s: expected %s error, got %v", index, step.Op, want, err))
	}
	if step.Expect != nil && step.Expect.Token != "" && err == nil && token != step.Expect.Token {
		result.AddError(fmt.Sprintf("flow[%d] register: expected token %q, got %q", index, step.Expect.Token, token))
	}

	h.logger.Info("flow step completed", "step", index, "op", step.Op, "outcome", event.Outcome)
	return nil
}

// restart drains the writer and rebuilds the registry from the state file,
// as a process restart would.
func (h *Harness) restart() error {
	h.writer.Close()
	seq := h.writer.Seq()

	snap, err := h.files.Load()
	if err != nil {
		return fmt.Errorf("restart: %w", err)
	}
	h.writer = h.newWriter(seq)
	h.faults.swap(h.writer)
	return h.open(snap)
}

// checkDurable reloads the state file and compares it with the in-memory
// registry. A mismatch is a scenario failure.
func (h *Harness) checkDurable(result *Result) error {
	data, err := os.ReadFile(h.files.Path())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read state file: %w", err)
	}
	result.StateFile = data

	loaded, err := h.files.Load()
	if err != nil {
		return fmt.Errorf("failed to reload state file: %w", err)
	}
	persisted := exchange.Snapshot{State: exchange.DefaultEventState()}
	if loaded != nil {
		persisted = *loaded
	}

	want, err := store.Encode(result.Final)
	if err != nil {
		return err
	}
	got, err := store.Encode(persisted)
	if err != nil {
		return err
	}
	if !bytes.Equal(want, got) {
		result.AddError(fmt.Sprintf("persisted state differs from in-memory state:\nmemory:\n%s\ndisk:\n%s", want, got))
	}
	return nil
}
