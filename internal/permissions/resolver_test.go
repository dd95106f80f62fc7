package permissions

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_HeaderMode(t *testing.T) {
	tests := []struct {
		name     string
		headers  http.Header
		expected []string
	}{
		{
			name:     "comma separated list with whitespace and empty tokens",
			headers:  http.Header{"X-Toolsets": []string{" core, ext,,  extra "}},
			expected: []string{"core", "ext", "extra"},
		},
		{
			name:     "case-insensitive header lookup",
			headers:  http.Header{"x-toolsets": []string{"core"}},
			expected: []string{"core"},
		},
		{
			name:     "missing header yields empty list",
			headers:  http.Header{"Other": []string{"core"}},
			expected: []string{},
		},
		{
			name:     "nil headers yield empty list",
			headers:  nil,
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(Config{Source: SourceHeaders, HeaderName: "X-Toolsets"})
			result := r.Resolve("c1", tt.headers)
			require.NotNil(t, result)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestResolver_ConfigMode_StaticMapAndDefaults(t *testing.T) {
	r := NewResolver(Config{
		Source:             SourceConfig,
		StaticMap:          map[string][]string{"c1": {"a", "b"}},
		DefaultPermissions: []string{"pub"},
	})

	assert.Equal(t, []string{"a", "b"}, r.Resolve("c1", nil))
	assert.Equal(t, []string{"pub"}, r.Resolve("unknown", nil))
}

func TestResolver_ConfigMode_ResolverFunction(t *testing.T) {
	r := NewResolver(Config{
		Source: SourceConfig,
		Resolver: func(clientID string) ([]string, error) {
			return []string{"from-resolver", ""}, nil
		},
		StaticMap: map[string][]string{"c1": {"from-map"}},
	})

	// Resolver wins over the static map; empty entries are dropped.
	assert.Equal(t, []string{"from-resolver"}, r.Resolve("c1", nil))
}

func TestResolver_ConfigMode_ResolverEmptyListIsAuthoritative(t *testing.T) {
	r := NewResolver(Config{
		Source: SourceConfig,
		Resolver: func(clientID string) ([]string, error) {
			return []string{}, nil
		},
		StaticMap:          map[string][]string{"c1": {"from-map"}},
		DefaultPermissions: []string{"pub"},
	})

	// A successful resolver answer is used even when empty; the fallback
	// chain only runs on failure.
	assert.Equal(t, []string{}, r.Resolve("c1", nil))
}

func TestResolver_ConfigMode_FallbackOnResolverFailure(t *testing.T) {
	tests := []struct {
		name     string
		resolver ResolverFunc
	}{
		{
			name: "resolver returns error",
			resolver: func(clientID string) ([]string, error) {
				return nil, errors.New("backend down")
			},
		},
		{
			name: "resolver panics",
			resolver: func(clientID string) ([]string, error) {
				panic("resolver bug")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(Config{
				Source:             SourceConfig,
				Resolver:           tt.resolver,
				StaticMap:          map[string][]string{"c1": {"a", "b"}},
				DefaultPermissions: []string{"pub"},
			})

			assert.Equal(t, []string{"a", "b"}, r.Resolve("c1", nil))
			assert.Equal(t, []string{"pub"}, r.Resolve("unknown", nil))
		})
	}
}

func TestResolver_Memoization(t *testing.T) {
	calls := 0
	r := NewResolver(Config{
		Source: SourceConfig,
		Resolver: func(clientID string) ([]string, error) {
			calls++
			return []string{"a"}, nil
		},
	})

	for i := 0; i < 5; i++ {
		assert.Equal(t, []string{"a"}, r.Resolve("c1", nil))
	}
	assert.Equal(t, 1, calls, "repeated calls for the same client must hit the cache")

	r.Resolve("c2", nil)
	assert.Equal(t, 2, calls)

	r.InvalidateCache("c1")
	r.Resolve("c1", nil)
	assert.Equal(t, 3, calls)
	r.Resolve("c2", nil)
	assert.Equal(t, 3, calls, "invalidate must only affect the named client")

	r.ClearCache()
	r.Resolve("c1", nil)
	r.Resolve("c2", nil)
	assert.Equal(t, 5, calls)
}

func TestResolver_NeverReturnsNil(t *testing.T) {
	r := NewResolver(Config{Source: Source("bogus")})
	result := r.Resolve("c1", nil)
	require.NotNil(t, result)
	assert.Empty(t, result)
}

func TestResolver_ResultIsACopy(t *testing.T) {
	r := NewResolver(Config{
		Source:    SourceConfig,
		StaticMap: map[string][]string{"c1": {"a", "b"}},
	})

	first := r.Resolve("c1", nil)
	first[0] = "mutated"

	assert.Equal(t, []string{"a", "b"}, r.Resolve("c1", nil))
}
