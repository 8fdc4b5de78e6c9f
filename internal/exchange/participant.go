package exchange

import (
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxNameLength is the maximum participant name length in characters.
const MaxNameLength = 64

// Participant is a registered member of the exchange.
//
// Token and RegisteredAt are immutable once assigned. AssignmentToken is
// empty when no assignment exists; IPAddress is informational only.
type Participant struct {
	Token           string
	Name            string
	AssignmentToken string
	RegisteredAt    time.Time
	IPAddress       string
}

// HasAssignment reports whether the participant currently gives to someone.
func (p Participant) HasAssignment() bool {
	return p.AssignmentToken != ""
}

// EventState holds the process-wide exchange flags.
type EventState struct {
	RegistrationOpen bool
	AssignmentsReady bool
	LastShuffledAt   *time.Time
}

// DefaultEventState is the state of a fresh exchange: open, nothing assigned.
func DefaultEventState() EventState {
	return EventState{RegistrationOpen: true}
}

// Snapshot is a full copy of registry state at one instant.
// Participants are in registration order.
type Snapshot struct {
	Participants []Participant
	State        EventState
}

// Clone returns a deep copy that shares no memory with s.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Participants: make([]Participant, len(s.Participants)),
		State:        s.State,
	}
	copy(out.Participants, s.Participants)
	if s.State.LastShuffledAt != nil {
		at := *s.State.LastShuffledAt
		out.State.LastShuffledAt = &at
	}
	return out
}

// NormalizeName trims and NFC-normalizes a display name and checks its length.
// Length is counted in characters, not bytes.
func NormalizeName(name string) (string, error) {
	clean := norm.NFC.String(strings.TrimSpace(name))
	if clean == "" {
		return "", NewError(KindValidation, "name is required")
	}
	if utf8.RuneCountInString(clean) > MaxNameLength {
		return "", NewError(KindValidation, "name must be at most 64 characters")
	}
	return clean, nil
}

// IsSingleCycle reports whether the assignment links of participants form
// exactly one cycle covering all of them with no fixed points.
func IsSingleCycle(participants []Participant) bool {
	n := len(participants)
	if n < 2 {
		return false
	}
	next := make(map[string]string, n)
	for _, p := range participants {
		if p.AssignmentToken == "" || p.AssignmentToken == p.Token {
			return false
		}
		next[p.Token] = p.AssignmentToken
	}
	if len(next) != n {
		return false
	}

	start := participants[0].Token
	seen := make(map[string]bool, n)
	cur := start
	for i := 0; i < n; i++ {
		if seen[cur] {
			return false
		}
		seen[cur] = true
		nxt, ok := next[cur]
		if !ok {
			return false
		}
		cur = nxt
	}
	return cur == start && len(seen) == n
}

// Sanitize repairs a snapshot restored from storage so that every registry
// invariant holds. It returns the repaired snapshot and whether anything changed.
//
// Rules, in order:
//   - Duplicate tokens keep their first occurrence.
//   - Assignments pointing at unknown tokens are cleared.
//   - If AssignmentsReady is set but assignments do not form a single cycle,
//     all assignments are cleared and AssignmentsReady becomes false.
//   - If AssignmentsReady is false, stale assignments are cleared.
//   - A valid ready state closes registration.
func Sanitize(s Snapshot) (Snapshot, bool) {
	out := s.Clone()
	changed := false

	seen := make(map[string]bool, len(out.Participants))
	kept := out.Participants[:0]
	for _, p := range out.Participants {
		if seen[p.Token] {
			changed = true
			continue
		}
		seen[p.Token] = true
		kept = append(kept, p)
	}
	out.Participants = kept

	for i := range out.Participants {
		at := out.Participants[i].AssignmentToken
		if at != "" && !seen[at] {
			out.Participants[i].AssignmentToken = ""
			changed = true
		}
	}

	if out.State.AssignmentsReady && !IsSingleCycle(out.Participants) {
		out.State.AssignmentsReady = false
		changed = true
	}
	if !out.State.AssignmentsReady {
		for i := range out.Participants {
			if out.Participants[i].AssignmentToken != "" {
				out.Participants[i].AssignmentToken = ""
				changed = true
			}
		}
	}
	if out.State.AssignmentsReady && out.State.RegistrationOpen {
		out.State.RegistrationOpen = false
		changed = true
	}
	return out, changed
}
