package harness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/giftswap/internal/exchange"
)

func boolPtr(b bool) *bool { return &b }
func intPtr(n int) *int    { return &n }

// cycleResult is Alice -> Bob -> Carol -> Alice after a shuffle.
func cycleResult() *Result {
	at := time.Date(2026, time.December, 1, 18, 3, 0, 0, time.UTC)
	r := NewResult()
	r.Final = exchange.Snapshot{
		Participants: []exchange.Participant{
			{Token: "t1", Name: "Alice", AssignmentToken: "t2", IPAddress: "10.0.0.1"},
			{Token: "t2", Name: "Bob", AssignmentToken: "t3"},
			{Token: "t3", Name: "Carol", AssignmentToken: "t1"},
		},
		State: exchange.EventState{AssignmentsReady: true, LastShuffledAt: &at},
	}
	r.Trace = []TraceEvent{
		{Step: 0, Op: OpRegister, Outcome: OutcomeOK, Token: "t1"},
		{Step: 1, Op: OpRegister, Outcome: "validation"},
		{Step: 2, Op: OpRestart, Outcome: OutcomeOK},
		{Step: 3, Op: OpShuffle, Outcome: OutcomeOK},
	}
	return r
}

func TestAssertState(t *testing.T) {
	r := cycleResult()

	assert.NoError(t, assertState(r, Assertion{RegistrationOpen: boolPtr(false), AssignmentsReady: boolPtr(true), Shuffled: boolPtr(true)}))

	err := assertState(r, Assertion{RegistrationOpen: boolPtr(true), Shuffled: boolPtr(false)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registration_open=false, shuffled=true")
	assert.Contains(t, err.Error(), "Expected: registration_open=true, shuffled=false")
}

func TestAssertParticipant(t *testing.T) {
	r := cycleResult()

	assert.NoError(t, assertParticipant(r, Assertion{Token: "t1", Name: "Alice", IP: "10.0.0.1", HasAssignment: boolPtr(true), Recipient: "Bob"}))
	assert.NoError(t, assertParticipant(r, Assertion{Token: "t3", Recipient: "Alice"}))

	err := assertParticipant(r, Assertion{Token: "t9"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")

	err = assertParticipant(r, Assertion{Token: "t1", Name: "Al", Recipient: NoRecipient})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `name "Alice", want "Al"`)
	assert.Contains(t, err.Error(), `recipient "Bob", want none`)
}

func TestAssertParticipant_HiddenUntilReady(t *testing.T) {
	r := cycleResult()
	r.Final.State.AssignmentsReady = false

	assert.NoError(t, assertParticipant(r, Assertion{Token: "t1", Recipient: NoRecipient}))
	assert.Error(t, assertParticipant(r, Assertion{Token: "t1", Recipient: "Bob"}))
}

func TestAssertSingleCycle(t *testing.T) {
	r := cycleResult()
	assert.NoError(t, assertSingleCycle(r))

	r.Final.Participants[2].AssignmentToken = ""
	err := assertSingleCycle(r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "t3->none")

	r.Final.Participants = nil
	err = assertSingleCycle(r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no participants")
}

func TestAssertParticipantCount(t *testing.T) {
	r := cycleResult()
	assert.NoError(t, assertParticipantCount(r, Assertion{Count: intPtr(3)}))
	assert.Error(t, assertParticipantCount(r, Assertion{Count: intPtr(2)}))
}

func TestAssertTraceOrder(t *testing.T) {
	r := cycleResult()

	assert.NoError(t, assertTraceOrder(r, Assertion{Ops: []string{"register", "shuffle"}}))
	assert.NoError(t, assertTraceOrder(r, Assertion{Ops: []string{"shuffle"}}))

	err := assertTraceOrder(r, Assertion{Ops: []string{"shuffle", "register"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing register")

	// Restarts and failed steps are not committed operations.
	assert.Error(t, assertTraceOrder(r, Assertion{Ops: []string{"restart"}}))
}

func TestAssertTraceCount(t *testing.T) {
	r := cycleResult()

	assert.NoError(t, assertTraceCount(r, Assertion{Op: "register", Count: intPtr(1)}))
	assert.NoError(t, assertTraceCount(r, Assertion{Op: "reopen", Count: intPtr(0)}))
	assert.Error(t, assertTraceCount(r, Assertion{Op: "register", Count: intPtr(2)}))
}

func TestEvaluateAssertions(t *testing.T) {
	r := cycleResult()

	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertSingleCycle},
		{Type: AssertParticipantCount, Count: intPtr(5)},
		{Type: "bogus"},
	})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "Assertion failed: participant_count")
	assert.Contains(t, errs[1], `unknown assertion type "bogus"`)
}

func TestAssertionError_ShowsTrace(t *testing.T) {
	err := &AssertionError{
		Type:     AssertState,
		Expected: "x",
		Actual:   "y",
		Trace:    cycleResult().Trace,
	}
	msg := err.Error()
	assert.Contains(t, msg, "[0] register -> ok (t1)")
	assert.Contains(t, msg, "[1] register -> validation\n")
}
