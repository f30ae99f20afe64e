package pipeline

import (
	"context"
	"dotori/app/service/knowledge"
	"dotori/app/service/lookup"
	"dotori/app/service/reply"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type generatorCall struct {
	message string
	convCtx *reply.Context
}

type fakeGenerator struct {
	mu    sync.Mutex
	calls []generatorCall
	text  string
	err   error
}

func (g *fakeGenerator) Generate(_ context.Context, userMessage string, convCtx *reply.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, generatorCall{message: userMessage, convCtx: convCtx})

	if g.err != nil {
		return "", g.err
	}

	return g.text, nil
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.calls)
}

func (g *fakeGenerator) lastCall(t *testing.T) generatorCall {
	t.Helper()

	g.mu.Lock()
	defer g.mu.Unlock()

	require.NotEmpty(t, g.calls)
	return g.calls[len(g.calls)-1]
}

type countingFetcher struct {
	mu       sync.Mutex
	rows     map[string][][]string
	err      error
	attempts int
}

func (f *countingFetcher) FetchRange(_ context.Context, rangeName string) ([][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if strings.HasPrefix(rangeName, "Kpop") {
		f.attempts++
	}

	if f.err != nil {
		return nil, f.err
	}

	return f.rows[rangeName], nil
}

func (f *countingFetcher) loadAttempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.attempts
}

func productRows() map[string][][]string {
	return map[string][][]string{
		"Kpop!A2:G": {
			{"ABC123", "Blackpink Album", "2024-03-01", "2024-03-15", "CD+포토북", "포토카드"},
		},
	}
}

func newPipeline(fetcher knowledge.Fetcher, gen Generator) (*Service, *knowledge.Service) {
	store := knowledge.NewService(fetcher)
	return NewService(store, lookup.NewService(store), gen), store
}

func TestEmptyMessageShortCircuits(t *testing.T) {
	gen := &fakeGenerator{text: "reply"}
	svc, _ := newPipeline(&countingFetcher{rows: productRows()}, gen)

	assert.Equal(t, reply.MsgCannotUnderstand, svc.Process(context.Background(), "   "))
	assert.Zero(t, gen.callCount(), "generator must not run for an empty message")
}

func TestGreetingSkipsLookups(t *testing.T) {
	for _, greeting := range []string{"안녕하세요", "Hi there", "HELLO", "ㅎㅇ"} {
		gen := &fakeGenerator{text: "환영합니다!"}
		fetcher := &countingFetcher{rows: productRows()}
		svc, store := newPipeline(fetcher, gen)
		require.NoError(t, store.Load(context.Background()))

		result := svc.Process(context.Background(), greeting)

		assert.Equal(t, "환영합니다!", result)
		call := gen.lastCall(t)
		assert.Nil(t, call.convCtx, "greeting %q must reach the generator without context", greeting)
	}
}

func TestEmptyStoreTriggersSingleReload(t *testing.T) {
	gen := &fakeGenerator{text: "reply"}
	fetcher := &countingFetcher{rows: productRows()}
	svc, store := newPipeline(fetcher, gen)

	require.True(t, store.Empty())

	svc.Process(context.Background(), "abc123 가격")

	assert.Equal(t, 1, fetcher.loadAttempts(), "exactly one reload before lookups proceed")
	assert.False(t, store.Empty())

	call := gen.lastCall(t)
	require.NotNil(t, call.convCtx, "lookups run against the freshly loaded tables")
	require.NotNil(t, call.convCtx.Product)
	assert.Equal(t, "ABC123", call.convCtx.Product.Code)
}

func TestReloadFailureDegradesToNoContext(t *testing.T) {
	gen := &fakeGenerator{text: "reply"}
	fetcher := &countingFetcher{err: errors.New("sheet unreachable")}
	svc, _ := newPipeline(fetcher, gen)

	// Cancelled context keeps the reload's retry loop from sleeping
	// through its backoff, the load fails after the first attempt.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := svc.Process(ctx, "abc123 가격")

	assert.Equal(t, "reply", result, "a failed reload must not abort processing")
	assert.Nil(t, gen.lastCall(t).convCtx)
}

func TestProductMatchAssemblesContext(t *testing.T) {
	gen := &fakeGenerator{text: "상품 안내드립니다"}
	fetcher := &countingFetcher{rows: productRows()}
	svc, store := newPipeline(fetcher, gen)
	require.NoError(t, store.Load(context.Background()))

	result := svc.Process(context.Background(), "abc123 가격")

	assert.Equal(t, "상품 안내드립니다", result)
	call := gen.lastCall(t)
	require.NotNil(t, call.convCtx)
	require.NotNil(t, call.convCtx.Product)
	assert.Nil(t, call.convCtx.Size)
	assert.Nil(t, call.convCtx.Faq)
}

func TestNoMatchYieldsNilContext(t *testing.T) {
	gen := &fakeGenerator{text: "reply"}
	fetcher := &countingFetcher{rows: productRows()}
	svc, store := newPipeline(fetcher, gen)
	require.NoError(t, store.Load(context.Background()))

	svc.Process(context.Background(), "전혀관련없는문의")

	assert.Nil(t, gen.lastCall(t).convCtx)
}

func TestGeneratorFailureReturnsApology(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("completion timeout")}
	fetcher := &countingFetcher{rows: productRows()}
	svc, store := newPipeline(fetcher, gen)
	require.NoError(t, store.Load(context.Background()))

	assert.Equal(t, reply.MsgTemporaryError, svc.Process(context.Background(), "abc123"))
}
