package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/giftswap/internal/exchange"
)

// TimeLayout is the ISO-8601 form written to the state file (UTC, milliseconds).
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// participantRecord is one entry of the "participants" array.
// Pointer fields distinguish absent/null from empty.
type participantRecord struct {
	Token           string  `json:"token"`
	Name            string  `json:"name"`
	AssignmentToken *string `json:"assignmentToken"`
	RegisteredAt    *string `json:"registeredAt"`
	IPAddress       *string `json:"ipAddress"`
}

// stateFile is the on-disk layout written by Encode.
type stateFile struct {
	Participants     []participantRecord `json:"participants"`
	AssignmentsReady bool                `json:"assignmentsReady"`
	LastShuffledAt   *string             `json:"lastShuffledAt"`
	RegistrationOpen bool                `json:"registrationOpen"`
}

// rawStateFile is the lenient decode target: participants are decoded one by
// one so a malformed record can be dropped without failing the whole file.
type rawStateFile struct {
	Participants     []json.RawMessage `json:"participants"`
	AssignmentsReady *bool             `json:"assignmentsReady"`
	LastShuffledAt   *string           `json:"lastShuffledAt"`
	RegistrationOpen *bool             `json:"registrationOpen"`
}

// DecodeReport describes what lenient decoding discarded or defaulted.
type DecodeReport struct {
	Dropped            int
	DefaultedTimestamp int
}

// Encode renders snap as indented JSON with a trailing newline.
func Encode(snap exchange.Snapshot) ([]byte, error) {
	out := stateFile{
		Participants:     make([]participantRecord, len(snap.Participants)),
		AssignmentsReady: snap.State.AssignmentsReady,
		RegistrationOpen: snap.State.RegistrationOpen,
	}
	if snap.State.LastShuffledAt != nil {
		s := formatTime(*snap.State.LastShuffledAt)
		out.LastShuffledAt = &s
	}
	for i, p := range snap.Participants {
		registered := formatTime(p.RegisteredAt)
		out.Participants[i] = participantRecord{
			Token:           p.Token,
			Name:            p.Name,
			AssignmentToken: optional(p.AssignmentToken),
			RegisteredAt:    &registered,
			IPAddress:       optional(p.IPAddress),
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a state file.
//
// A document that is not valid JSON of the expected shape is an error. Inside
// a valid document each participant is validated on its own: records without
// a non-empty token or name are dropped, missing optional fields are defaulted
// (registeredAt to now), and flags default to registrationOpen=true,
// assignmentsReady=false, lastShuffledAt=null.
func Decode(data []byte, now time.Time) (exchange.Snapshot, DecodeReport, error) {
	var raw rawStateFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return exchange.Snapshot{}, DecodeReport{}, fmt.Errorf("decode state: %w", err)
	}

	var report DecodeReport
	snap := exchange.Snapshot{
		Participants: make([]exchange.Participant, 0, len(raw.Participants)),
		State:        exchange.DefaultEventState(),
	}
	if raw.RegistrationOpen != nil {
		snap.State.RegistrationOpen = *raw.RegistrationOpen
	}
	if raw.AssignmentsReady != nil {
		snap.State.AssignmentsReady = *raw.AssignmentsReady
	}
	if raw.LastShuffledAt != nil {
		if t, ok := parseTime(*raw.LastShuffledAt); ok {
			snap.State.LastShuffledAt = &t
		}
	}

	for _, msg := range raw.Participants {
		var rec participantRecord
		if err := json.Unmarshal(msg, &rec); err != nil {
			report.Dropped++
			continue
		}
		if strings.TrimSpace(rec.Token) == "" || strings.TrimSpace(rec.Name) == "" {
			report.Dropped++
			continue
		}

		p := exchange.Participant{
			Token: rec.Token,
			Name:  rec.Name,
		}
		if rec.AssignmentToken != nil {
			p.AssignmentToken = *rec.AssignmentToken
		}
		if rec.IPAddress != nil {
			p.IPAddress = *rec.IPAddress
		}
		registered, ok := time.Time{}, false
		if rec.RegisteredAt != nil {
			registered, ok = parseTime(*rec.RegisteredAt)
		}
		if !ok {
			registered = now
			report.DefaultedTimestamp++
		}
		p.RegisteredAt = registered
		snap.Participants = append(snap.Participants, p)
	}

	return snap, report, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func parseTime(s string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
