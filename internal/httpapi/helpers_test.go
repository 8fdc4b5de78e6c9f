package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/giftswap/internal/exchange"
	"github.com/roach88/giftswap/internal/testutil"
)

const testSecret = "let-me-in"

// switchPersister succeeds until fail is set.
type switchPersister struct {
	mu   sync.Mutex
	fail error
}

func (p *switchPersister) Persist(context.Context, exchange.Commit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fail
}

func (p *switchPersister) setFail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = err
}

type testEnv struct {
	handler   http.Handler
	registry  *exchange.Registry
	persister *switchPersister
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	shuffler, err := exchange.NewShuffler(testutil.TopRand{})
	require.NoError(t, err)
	p := &switchPersister{}
	reg, err := exchange.NewRegistry(nil, exchange.Options{
		Tokens:    testutil.NewSequenceTokens("tok"),
		Clock:     testutil.NewDefaultClock(),
		Shuffler:  shuffler,
		Persister: p,
		Logger:    logger,
	})
	require.NoError(t, err)

	gate, err := exchange.NewGate(testSecret)
	require.NoError(t, err)

	srv := NewServer(reg, exchange.NewAdmin(gate, reg), logger)
	return &testEnv{handler: srv.Handler(), registry: reg, persister: p}
}

func (e *testEnv) do(method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) admin(method, path string) *httptest.ResponseRecorder {
	return e.do(method, path, "", map[string]string{AdminSecretHeader: testSecret})
}

func (e *testEnv) register(t *testing.T, name string) string {
	t.Helper()
	rec := e.do(http.MethodPost, "/api/register", `{"name":"`+name+`"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out registerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out.Token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

var errDiskFull = errors.New("disk full")
