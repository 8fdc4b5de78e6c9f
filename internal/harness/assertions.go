package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/giftswap/internal/exchange"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s -> %s", event.Step, event.Op, event.Outcome)
		if event.Token != "" {
			fmt.Fprintf(&buf, " (%s)", event.Token)
		}
		buf.WriteString("\n")
	}

	return buf.String()
}

func assertState(result *Result, a Assertion) error {
	st := result.Final.State
	var diffs []string
	if a.RegistrationOpen != nil && *a.RegistrationOpen != st.RegistrationOpen {
		diffs = append(diffs, fmt.Sprintf("registration_open=%t", st.RegistrationOpen))
	}
	if a.AssignmentsReady != nil && *a.AssignmentsReady != st.AssignmentsReady {
		diffs = append(diffs, fmt.Sprintf("assignments_ready=%t", st.AssignmentsReady))
	}
	if a.Shuffled != nil && *a.Shuffled != (st.LastShuffledAt != nil) {
		diffs = append(diffs, fmt.Sprintf("shuffled=%t", st.LastShuffledAt != nil))
	}
	if len(diffs) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertState,
		Expected: describeState(a),
		Actual:   strings.Join(diffs, ", "),
		Trace:    result.Trace,
	}
}

func describeState(a Assertion) string {
	var parts []string
	if a.RegistrationOpen != nil {
		parts = append(parts, fmt.Sprintf("registration_open=%t", *a.RegistrationOpen))
	}
	if a.AssignmentsReady != nil {
		parts = append(parts, fmt.Sprintf("assignments_ready=%t", *a.AssignmentsReady))
	}
	if a.Shuffled != nil {
		parts = append(parts, fmt.Sprintf("shuffled=%t", *a.Shuffled))
	}
	return strings.Join(parts, ", ")
}

func assertParticipantCount(result *Result, a Assertion) error {
	got := len(result.Final.Participants)
	if got == *a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertParticipantCount,
		Expected: fmt.Sprintf("%d participants", *a.Count),
		Actual:   fmt.Sprintf("%d participants", got),
		Trace:    result.Trace,
	}
}

// assertParticipant checks the fields the assertion sets. The recipient is
// the name visible to the participant: only set once assignments are ready.
func assertParticipant(result *Result, a Assertion) error {
	byToken := make(map[string]exchange.Participant, len(result.Final.Participants))
	for _, p := range result.Final.Participants {
		byToken[p.Token] = p
	}

	p, ok := byToken[a.Token]
	if !ok {
		return &AssertionError{
			Type:     AssertParticipant,
			Expected: fmt.Sprintf("participant %s", a.Token),
			Actual:   "not registered",
			Trace:    result.Trace,
		}
	}

	recipient := ""
	if result.Final.State.AssignmentsReady && p.AssignmentToken != "" {
		recipient = byToken[p.AssignmentToken].Name
	}

	var diffs []string
	if a.Name != "" && a.Name != p.Name {
		diffs = append(diffs, fmt.Sprintf("name %q, want %q", p.Name, a.Name))
	}
	if a.IP != "" && a.IP != p.IPAddress {
		diffs = append(diffs, fmt.Sprintf("ip %q, want %q", p.IPAddress, a.IP))
	}
	if a.HasAssignment != nil && *a.HasAssignment != p.HasAssignment() {
		diffs = append(diffs, fmt.Sprintf("has_assignment %t, want %t", p.HasAssignment(), *a.HasAssignment))
	}
	switch {
	case a.Recipient == NoRecipient && recipient != "":
		diffs = append(diffs, fmt.Sprintf("recipient %q, want none", recipient))
	case a.Recipient != "" && a.Recipient != NoRecipient && a.Recipient != recipient:
		diffs = append(diffs, fmt.Sprintf("recipient %q, want %q", recipient, a.Recipient))
	}
	if len(diffs) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertParticipant,
		Expected: fmt.Sprintf("participant %s matches", a.Token),
		Actual:   strings.Join(diffs, "; "),
		Trace:    result.Trace,
	}
}

func assertSingleCycle(result *Result) error {
	if exchange.IsSingleCycle(result.Final.Participants) {
		return nil
	}
	return &AssertionError{
		Type:     AssertSingleCycle,
		Expected: "every participant assigned in one cycle",
		Actual:   describeAssignments(result.Final.Participants),
		Trace:    result.Trace,
	}
}

func describeAssignments(ps []exchange.Participant) string {
	if len(ps) == 0 {
		return "no participants"
	}
	parts := make([]string, len(ps))
	for i, p := range ps {
		to := p.AssignmentToken
		if to == "" {
			to = "none"
		}
		parts[i] = p.Token + "->" + to
	}
	return strings.Join(parts, ", ")
}

// assertTraceOrder checks that committed ops contain Ops as a subsequence.
// Intervening operations are allowed.
func assertTraceOrder(result *Result, a Assertion) error {
	committed := result.CommittedOps()
	next := 0
	for _, op := range committed {
		if next < len(a.Ops) && op == a.Ops[next] {
			next++
		}
	}
	if next == len(a.Ops) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("committed ops in order: %v", a.Ops),
		Actual:   fmt.Sprintf("committed ops: %v (missing %s)", committed, a.Ops[next]),
		Trace:    result.Trace,
	}
}

// assertTraceCount checks that op was committed exactly Count times.
func assertTraceCount(result *Result, a Assertion) error {
	count := 0
	for _, op := range result.CommittedOps() {
		if op == a.Op {
			count++
		}
	}
	if count == *a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceCount,
		Expected: fmt.Sprintf("%s committed %d times", a.Op, *a.Count),
		Actual:   fmt.Sprintf("%s committed %d times", a.Op, count),
		Trace:    result.Trace,
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns one message per failed assertion.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertState:
			err = assertState(result, assertion)
		case AssertParticipantCount:
			err = assertParticipantCount(result, assertion)
		case AssertParticipant:
			err = assertParticipant(result, assertion)
		case AssertSingleCycle:
			err = assertSingleCycle(result)
		case AssertTraceOrder:
			err = assertTraceOrder(result, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
