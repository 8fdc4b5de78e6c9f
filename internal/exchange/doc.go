// Package exchange implements the secret gift exchange core.
//
// The package owns four pieces:
//   - Token generation: opaque participant identifiers from a secure source.
//   - Registry: the authoritative participant collection and event flags.
//   - Shuffle: a randomized single-cycle derangement over participants.
//   - Admin gate: authorization for listing, shuffling and reopening.
//
// # Commit Model
//
// Every mutation (register, shuffle, reopen) runs inside one exclusive
// critical section:
//
//  1. Capture the pre-mutation snapshot
//  2. Validate against current state
//  3. Mutate in memory
//  4. Capture the post-mutation snapshot and hand it to the Persister
//  5. On persistence failure, restore the pre-mutation snapshot
//
// The lock is held until the Persister acknowledges the write, so readers
// only ever observe state that has reached durable storage and a rollback
// can never discard a later mutation.
//
// # Invariants
//
//   - Tokens are unique across all participants.
//   - When AssignmentsReady is true, assignments form exactly one cycle
//     covering every participant (no fixed points).
//   - RegistrationOpen and AssignmentsReady are never both true.
//   - A registration clears any existing assignments in the same commit.
package exchange
