package secrets

import (
	"context"
	"fmt"
	"strings"

	"github.com/tricket/tricket-integrations/internal/pkg/apperror"
)

// Source looks up a single named secret.
type Source interface {
	Lookup(ctx context.Context, name string) (string, bool, error)
}

// Store retrieves credentials and fails closed: a caller either gets every
// requested value or none of them.
type Store struct {
	source Source
}

func NewStore(source Source) *Store {
	return &Store{source: source}
}

// GetRequired returns name→value for every requested name. If any value is
// missing or blank the result is a configuration error naming all of them.
func (s *Store) GetRequired(ctx context.Context, names ...string) (map[string]string, error) {
	values := make(map[string]string, len(names))
	var missing []string

	for _, name := range names {
		if _, seen := values[name]; seen {
			continue
		}
		value, ok, err := s.source.Lookup(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read secret %s: %w", name, err)
		}
		if !ok || strings.TrimSpace(value) == "" {
			missing = append(missing, name)
			continue
		}
		values[name] = value
	}

	if len(missing) > 0 {
		return nil, apperror.Configuration(missing...)
	}
	return values, nil
}

// Chain consults each source in order; the first one holding the key wins.
type Chain []Source

func (c Chain) Lookup(ctx context.Context, name string) (string, bool, error) {
	for _, src := range c {
		value, ok, err := src.Lookup(ctx, name)
		if err != nil {
			return "", false, err
		}
		if ok && value != "" {
			return value, true, nil
		}
	}
	return "", false, nil
}

// MapSource serves secrets from a fixed map.
type MapSource map[string]string

func (m MapSource) Lookup(_ context.Context, name string) (string, bool, error) {
	v, ok := m[name]
	return v, ok, nil
}
