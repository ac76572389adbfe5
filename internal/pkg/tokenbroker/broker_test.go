package tokenbroker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExchanger struct {
	calls   atomic.Int32
	ttl     time.Duration
	delay   time.Duration
	release chan struct{}
	err     error

	cancelled atomic.Bool
}

func (f *fakeExchanger) Exchange(ctx context.Context, creds Credentials) (Token, error) {
	n := f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	if ctx.Err() != nil {
		f.cancelled.Store(true)
		return Token{}, ctx.Err()
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return Token{}, f.err
	}
	return Token{Value: fmt.Sprintf("%s-token-%d", creds.ClientID, n), ExpiresIn: f.ttl}, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var testCreds = Credentials{ClientID: "client", ClientSecret: "secret", Username: "user@example.com", Password: "pw"}

func TestAccessTokenCachedInsideValidityWindow(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	ex := &fakeExchanger{ttl: time.Hour}
	broker := New(ex, WithClock(clock.Now))
	ctx := context.Background()

	first, err := broker.AccessToken(ctx, testCreds)
	require.NoError(t, err)

	clock.Advance(58 * time.Minute)
	second, err := broker.AccessToken(ctx, testCreds)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), ex.calls.Load())
}

func TestAccessTokenRefreshesAfterSafetyMargin(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	ex := &fakeExchanger{ttl: time.Hour}
	broker := New(ex, WithClock(clock.Now))
	ctx := context.Background()

	first, err := broker.AccessToken(ctx, testCreds)
	require.NoError(t, err)

	// now == expiry - 60s is already stale
	clock.Advance(59 * time.Minute)
	second, err := broker.AccessToken(ctx, testCreds)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, int32(2), ex.calls.Load())
}

func TestAccessTokenKeyedByCredentials(t *testing.T) {
	ex := &fakeExchanger{ttl: time.Hour}
	broker := New(ex)
	ctx := context.Background()

	a, err := broker.AccessToken(ctx, testCreds)
	require.NoError(t, err)

	other := testCreds
	other.ClientID = "other"
	b, err := broker.AccessToken(ctx, other)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Equal(t, int32(2), ex.calls.Load())
}

func TestConcurrentMissesShareOneExchange(t *testing.T) {
	ex := &fakeExchanger{ttl: time.Hour, release: make(chan struct{})}
	broker := New(ex)

	const callers = 10
	var wg sync.WaitGroup
	results := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = broker.AccessToken(context.Background(), testCreds)
		}(i)
	}

	require.Eventually(t, func() bool { return ex.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(ex.release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
	assert.Equal(t, int32(1), ex.calls.Load())
}

func TestCancelledCallerDoesNotFailSharedExchange(t *testing.T) {
	ex := &fakeExchanger{ttl: time.Hour, release: make(chan struct{})}
	broker := New(ex)

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := broker.AccessToken(leaderCtx, testCreds)
		leaderErr <- err
	}()
	require.Eventually(t, func() bool { return ex.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	waiterTok := make(chan string, 1)
	waiterErr := make(chan error, 1)
	go func() {
		tok, err := broker.AccessToken(context.Background(), testCreds)
		waiterTok <- tok
		waiterErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	select {
	case err := <-leaderErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(ex.release)
	require.NoError(t, <-waiterErr)
	tok := <-waiterTok
	assert.Equal(t, "client-token-1", tok)
	assert.False(t, ex.cancelled.Load())

	cached, err := broker.AccessToken(context.Background(), testCreds)
	require.NoError(t, err)
	assert.Equal(t, tok, cached)
	assert.Equal(t, int32(1), ex.calls.Load())
}

func TestExchangeErrorIsNotCached(t *testing.T) {
	ex := &fakeExchanger{ttl: time.Hour, err: errors.New("401 invalid_grant")}
	broker := New(ex)

	_, err := broker.AccessToken(context.Background(), testCreds)
	require.Error(t, err)

	ex.err = nil
	tok, err := broker.AccessToken(context.Background(), testCreds)
	require.NoError(t, err)
	assert.NotEmpty(t, tok)
	assert.Equal(t, int32(2), ex.calls.Load())
}

func TestInvalidateForcesExchange(t *testing.T) {
	ex := &fakeExchanger{ttl: time.Hour}
	broker := New(ex)
	ctx := context.Background()

	_, err := broker.AccessToken(ctx, testCreds)
	require.NoError(t, err)
	broker.Invalidate(testCreds)
	_, err = broker.AccessToken(ctx, testCreds)
	require.NoError(t, err)

	assert.Equal(t, int32(2), ex.calls.Load())
}
