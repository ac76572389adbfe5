package tokenbroker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/sync/singleflight"
)

// DefaultSafetyMargin is subtracted from the provider's stated lifetime.
const DefaultSafetyMargin = 60 * time.Second

// Credentials is a password-grant credential set.
type Credentials struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
}

// Fingerprint identifies the credential set without exposing it.
func (c Credentials) Fingerprint() string {
	h := sha256.New()
	for _, part := range []string{c.ClientID, c.ClientSecret, c.Username, c.Password} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Token is what an exchange yields.
type Token struct {
	Value     string
	ExpiresIn time.Duration
}

// Exchanger performs the password-grant exchange against the provider.
type Exchanger interface {
	Exchange(ctx context.Context, creds Credentials) (Token, error)
}

type cachedToken struct {
	value     string
	expiresAt time.Time
}

// Broker caches access tokens per credential fingerprint. Concurrent misses
// for the same fingerprint share one exchange.
type Broker struct {
	exchanger Exchanger
	margin    time.Duration
	now       func() time.Time

	mu    sync.Mutex
	cache map[string]cachedToken
	group singleflight.Group
}

type Option func(*Broker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Broker) { b.now = now }
}

func WithSafetyMargin(margin time.Duration) Option {
	return func(b *Broker) { b.margin = margin }
}

func New(exchanger Exchanger, opts ...Option) *Broker {
	b := &Broker{
		exchanger: exchanger,
		margin:    DefaultSafetyMargin,
		now:       time.Now,
		cache:     make(map[string]cachedToken),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// AccessToken returns a cached token while it is valid, otherwise exchanges
// the credentials for a new one.
func (b *Broker) AccessToken(ctx context.Context, creds Credentials) (string, error) {
	key := creds.Fingerprint()
	if tok, ok := b.lookup(key); ok {
		return tok, nil
	}

	// The exchange outlives the caller that started it so that waiters
	// sharing the flight are not failed by one caller's cancellation.
	exchangeCtx := context.WithoutCancel(ctx)
	ch := b.group.DoChan(key, func() (interface{}, error) {
		// A flight that finished just before this one may have filled the slot.
		if tok, ok := b.lookup(key); ok {
			return tok, nil
		}

		issued, err := b.exchanger.Exchange(exchangeCtx, creds)
		if err != nil {
			return "", err
		}
		if issued.Value == "" {
			return "", errors.New("token exchange returned an empty access token")
		}

		b.mu.Lock()
		b.cache[key] = cachedToken{
			value:     issued.Value,
			expiresAt: b.now().Add(issued.ExpiresIn - b.margin),
		}
		b.mu.Unlock()

		log.Infof("[TokenBroker] Issued token for %s, expires in %s", key[:8], issued.ExpiresIn)
		return issued.Value, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			log.Debugf("[TokenBroker] Shared in-flight exchange for %s", key[:8])
		}
		return res.Val.(string), nil
	}
}

// Invalidate drops the cached token for creds.
func (b *Broker) Invalidate(creds Credentials) {
	b.mu.Lock()
	delete(b.cache, creds.Fingerprint())
	b.mu.Unlock()
}

func (b *Broker) lookup(key string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	tok, ok := b.cache[key]
	if !ok || !b.now().Before(tok.expiresAt) {
		return "", false
	}
	return tok.value, true
}
