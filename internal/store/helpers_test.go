package store

import (
	"io"
	"log/slog"
	"time"

	"github.com/roach88/giftswap/internal/exchange"
	"github.com/roach88/giftswap/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ts(minutes int) time.Time {
	return testutil.DefaultStart.Add(time.Duration(minutes) * time.Minute)
}

// shuffledPair is Alice and Bob after a shuffle.
func shuffledPair() exchange.Snapshot {
	at := ts(2)
	return exchange.Snapshot{
		Participants: []exchange.Participant{
			{Token: "tok-001", Name: "Alice", AssignmentToken: "tok-002", RegisteredAt: ts(0), IPAddress: "10.0.0.1"},
			{Token: "tok-002", Name: "Bob", AssignmentToken: "tok-001", RegisteredAt: ts(1)},
		},
		State: exchange.EventState{AssignmentsReady: true, LastShuffledAt: &at},
	}
}
