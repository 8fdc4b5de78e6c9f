package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Op names the mutation that produced a commit.
type Op string

const (
	OpRegister Op = "register"
	OpShuffle  Op = "shuffle"
	OpReopen   Op = "reopen"
)

// Commit is handed to the Persister after a mutation succeeds in memory.
type Commit struct {
	Op       Op
	Snapshot Snapshot
}

// Persister durably stores a committed snapshot.
// Persist must not return until the write has completed or failed.
type Persister interface {
	Persist(ctx context.Context, c Commit) error
}

// Options configures a Registry. Zero values select production defaults.
type Options struct {
	// Tokens generates participant tokens. Defaults to RandomTokens{}.
	Tokens TokenGenerator

	// Clock stamps registrations and shuffles. Defaults to SystemClock{}.
	Clock Clock

	// Shuffler computes assignments. Defaults to a crypto-seeded shuffler.
	Shuffler *Shuffler

	// Persister stores each commit. Nil keeps state in memory only.
	Persister Persister

	// Logger receives commit and rollback events. Defaults to slog.Default().
	Logger *slog.Logger
}

// Status is the public view of the event.
type Status struct {
	EventState
	Participants int
}

// Assignment is a participant's own record plus, once assignments are ready,
// the name of the person they give to.
type Assignment struct {
	Participant Participant
	Ready       bool
	Recipient   string
}

// Registry owns the participant collection and event flags.
//
// Concurrency Model:
//   - Mutations take the write lock for their whole commit, including the
//     durable write, so they never interleave.
//   - Reads take the read lock and only see committed state.
//   - All returned data is copied.
type Registry struct {
	mu           sync.RWMutex
	participants []Participant // registration order
	index        map[string]int
	state        EventState

	tokens    TokenGenerator
	clock     Clock
	shuffler  *Shuffler
	persister Persister
	logger    *slog.Logger
}

// NewRegistry creates a registry seeded from snap. A nil snap starts an empty,
// open exchange.
func NewRegistry(snap *Snapshot, opts Options) (*Registry, error) {
	r := &Registry{
		tokens:    opts.Tokens,
		clock:     opts.Clock,
		shuffler:  opts.Shuffler,
		persister: opts.Persister,
		logger:    opts.Logger,
	}
	if r.tokens == nil {
		r.tokens = RandomTokens{}
	}
	if r.clock == nil {
		r.clock = SystemClock{}
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.shuffler == nil {
		s, err := NewShuffler(nil)
		if err != nil {
			return nil, fmt.Errorf("new registry: %w", err)
		}
		r.shuffler = s
	}

	initial := Snapshot{State: DefaultEventState()}
	if snap != nil {
		initial = *snap
	}
	r.restoreLocked(initial)
	return r, nil
}

// Register adds a participant and returns their token.
//
// Fails with a validation error for an empty or over-long name and with a
// state error when registration is closed. Any existing assignments are
// cleared in the same commit.
func (r *Registry) Register(ctx context.Context, name, ipAddress string) (string, error) {
	clean, err := NormalizeName(name)
	if err != nil {
		return "", err
	}

	var token string
	err = r.commit(ctx, OpRegister, func() error {
		if !r.state.RegistrationOpen {
			return NewError(KindState, "registration is closed")
		}
		tok, err := r.uniqueTokenLocked()
		if err != nil {
			return err
		}

		if r.state.AssignmentsReady || r.anyAssignmentLocked() {
			r.clearAssignmentsLocked()
			r.state.AssignmentsReady = false
		}

		r.index[tok] = len(r.participants)
		r.participants = append(r.participants, Participant{
			Token:        tok,
			Name:         clean,
			RegisteredAt: r.clock.Now(),
			IPAddress:    ipAddress,
		})
		token = tok
		return nil
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// Shuffle assigns every participant a recipient and closes registration.
// Fails with a state error when fewer than two participants are registered.
func (r *Registry) Shuffle(ctx context.Context) error {
	return r.commit(ctx, OpShuffle, func() error {
		tokens := make([]string, len(r.participants))
		for i, p := range r.participants {
			tokens[i] = p.Token
		}
		mapping, err := r.shuffler.Assign(tokens)
		if err != nil {
			return err
		}

		for i := range r.participants {
			r.participants[i].AssignmentToken = mapping[r.participants[i].Token]
		}
		now := r.clock.Now()
		r.state.AssignmentsReady = true
		r.state.LastShuffledAt = &now
		r.state.RegistrationOpen = false
		return nil
	})
}

// Reopen clears every assignment and opens registration.
// Reopening an already open exchange still persists.
func (r *Registry) Reopen(ctx context.Context) error {
	return r.commit(ctx, OpReopen, func() error {
		r.clearAssignmentsLocked()
		r.state.AssignmentsReady = false
		r.state.LastShuffledAt = nil
		r.state.RegistrationOpen = true
		return nil
	})
}

// Get returns the participant with the given token.
func (r *Registry) Get(token string) (Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[token]
	if !ok {
		return Participant{}, false
	}
	return r.participants[i], true
}

// Assignment looks up a participant and, when assignments are ready, the
// name of their recipient.
func (r *Registry) Assignment(token string) (Assignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[token]
	if !ok {
		return Assignment{}, NewError(KindNotFound, "participant not found")
	}
	p := r.participants[i]
	out := Assignment{Participant: p}
	if !r.state.AssignmentsReady || p.AssignmentToken == "" {
		return out, nil
	}
	j, ok := r.index[p.AssignmentToken]
	if !ok {
		return out, nil
	}
	out.Ready = true
	out.Recipient = r.participants[j].Name
	return out, nil
}

// List returns participants ordered by RegisteredAt, ties broken by
// registration order.
func (r *Registry) List() []Participant {
	r.mu.RLock()
	out := make([]Participant, len(r.participants))
	copy(out, r.participants)
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RegisteredAt.Before(out[j].RegisteredAt)
	})
	return out
}

// Size returns the number of registered participants.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.participants)
}

// State returns a copy of the event flags.
func (r *Registry) State() EventState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotStateLocked()
}

// Status returns the event flags together with the participant count.
func (r *Registry) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Status{EventState: r.snapshotStateLocked(), Participants: len(r.participants)}
}

// Snapshot captures the full registry state.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

// Restore replaces the full registry state with snap.
func (r *Registry) Restore(snap Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.restoreLocked(snap)
}

// commit runs mutate under the write lock and persists the result.
// On any failure the pre-mutation snapshot is restored.
func (r *Registry) commit(ctx context.Context, op Op, mutate func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	before := r.snapshotLocked()
	if err := mutate(); err != nil {
		r.restoreLocked(before)
		return err
	}
	if r.persister == nil {
		return nil
	}

	after := r.snapshotLocked()
	start := time.Now()
	if err := r.persister.Persist(ctx, Commit{Op: op, Snapshot: after}); err != nil {
		r.restoreLocked(before)
		r.logger.Error("persist failed, mutation rolled back",
			"op", op,
			"participants", len(before.Participants),
			"error", err,
		)
		return WrapError(KindPersistence, "failed to save exchange state", err)
	}
	r.logger.Debug("commit persisted",
		"op", op,
		"participants", len(after.Participants),
		"registration_open", after.State.RegistrationOpen,
		"assignments_ready", after.State.AssignmentsReady,
		"duration", time.Since(start),
	)
	return nil
}

func (r *Registry) uniqueTokenLocked() (string, error) {
	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		tok, err := r.tokens.Generate()
		if err != nil {
			return "", fmt.Errorf("generate token: %w", err)
		}
		if tok == "" {
			continue
		}
		if _, exists := r.index[tok]; !exists {
			return tok, nil
		}
	}
	return "", fmt.Errorf("generate token: no unique token after %d attempts", maxTokenAttempts)
}

func (r *Registry) anyAssignmentLocked() bool {
	for _, p := range r.participants {
		if p.AssignmentToken != "" {
			return true
		}
	}
	return false
}

func (r *Registry) clearAssignmentsLocked() {
	for i := range r.participants {
		r.participants[i].AssignmentToken = ""
	}
}

func (r *Registry) snapshotStateLocked() EventState {
	st := r.state
	if st.LastShuffledAt != nil {
		at := *st.LastShuffledAt
		st.LastShuffledAt = &at
	}
	return st
}

func (r *Registry) snapshotLocked() Snapshot {
	return Snapshot{Participants: r.participants, State: r.state}.Clone()
}

func (r *Registry) restoreLocked(snap Snapshot) {
	c := snap.Clone()
	r.participants = c.Participants
	r.state = c.State
	r.index = make(map[string]int, len(c.Participants))
	for i, p := range c.Participants {
		r.index[p.Token] = i
	}
}
