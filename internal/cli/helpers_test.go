package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const pairScenario = `name: pair
description: two participants swap gifts
flow:
  - op: register
    name: Alice
  - op: register
    name: Bob
  - op: shuffle
assertions:
  - type: single_cycle
`

const pairGolden = `{
  "participants": [
    {
      "token": "tok-001",
      "name": "Alice",
      "assignmentToken": "tok-002",
      "registeredAt": "2026-12-01T18:00:00.000Z",
      "ipAddress": null
    },
    {
      "token": "tok-002",
      "name": "Bob",
      "assignmentToken": "tok-001",
      "registeredAt": "2026-12-01T18:01:00.000Z",
      "ipAddress": null
    }
  ],
  "assignmentsReady": true,
  "lastShuffledAt": "2026-12-01T18:02:00.000Z",
  "registrationOpen": false
}
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// unsetEnv removes keys for the duration of the test.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}
