// Package harness runs gift exchange scenarios end to end.
//
// A scenario drives a real Registry backed by a FileStore and Writer in a
// temporary directory, checks each step's outcome, evaluates assertions on
// the final state and captures the persisted state file for golden
// comparison.
//
// # Scenario Format
//
//	name: shuffle_three
//	description: "Three participants form one cycle"
//	rand: [0, 1]          # optional scripted shuffle picks
//	setup:                # names registered before the flow; must succeed
//	  - Alice
//	flow:
//	  - op: register
//	    name: Bob
//	    ip: 10.0.0.2
//	    expect: { token: tok-002 }
//	  - op: shuffle
//	  - op: register
//	    name: Carol
//	    expect: { error: state }
//	  - op: reopen
//	    fail_write: true
//	    expect: { error: persistence }
//	  - op: restart
//	assertions:
//	  - type: state
//	    registration_open: false
//	    assignments_ready: true
//	  - type: participant
//	    token: tok-001
//	    recipient: Bob
//	  - type: single_cycle
//
// # Steps
//
//   - register: registers name (optionally from ip)
//   - shuffle, reopen: admin operations
//   - restart: drains the writer and rebuilds the registry from the state file
//
// fail_write makes the next durable write of that step fail, exercising
// rollback.
//
// # Assertion Types
//
//   - state: event flags (registration_open, assignments_ready, shuffled)
//   - participant_count: number of registered participants
//   - participant: one participant's name, ip, assignment and recipient
//   - single_cycle: every participant is assigned and the mapping is one cycle
//   - trace_order: committed operations appear in order
//   - trace_count: a committed operation appears exactly N times
//
// # Deterministic Testing
//
// Tokens come from testutil.SequenceTokens ("tok-001", ...), timestamps from
// testutil.StepClock starting at 2026-12-01T18:00:00Z and advancing one minute
// per use, and shuffles from testutil.TopRand unless rand is given. The same
// scenario therefore always produces a byte-identical state file.
//
// After the flow the state file is reloaded and compared with the in-memory
// registry; any difference fails the scenario.
package harness
