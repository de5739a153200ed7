package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryHashes(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.HSet(ctx, "h", map[string]string{"a": "1", "b": "2"}))
	require.NoError(t, m.HSet(ctx, "h", map[string]string{"b": "3"}))

	v, err := m.HGet(ctx, "h", "b")
	require.NoError(t, err)
	assert.Equal(t, "3", v)

	v, err = m.HGet(ctx, "h", "missing")
	require.NoError(t, err)
	assert.Empty(t, v)

	all, err := m.HGetAll(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "3"}, all)
}

func TestMemorySets(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.SAdd(ctx, "s", "b", "a", "b"))
	members, err := m.SMembers(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, members)

	ok, err := m.SIsMember(ctx, "s", "a")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, m.SRem(ctx, "s", "a"))
	ok, err = m.SIsMember(ctx, "s", "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemorySortedSets(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.ZAdd(ctx, "z", "u1", 4))
	require.NoError(t, m.ZAdd(ctx, "z", "u2", 4))
	require.NoError(t, m.ZAdd(ctx, "z", "u3", 2))

	score, found, err := m.ZScore(ctx, "z", "u1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 4.0, score)

	_, found, err = m.ZScore(ctx, "z", "nobody")
	require.NoError(t, err)
	assert.False(t, found)

	count, err := m.ZCount(ctx, "z", 4, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	require.NoError(t, m.ZRem(ctx, "z", "u2"))
	count, err = m.ZCount(ctx, "z", 4, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMemoryKeysGlob(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.SAdd(ctx, "zindex:california", "p1"))
	require.NoError(t, m.SAdd(ctx, "zindex:texas", "p2"))
	require.NoError(t, m.HSet(ctx, "politician:abc", map[string]string{"x": "y"}))

	keys, err := m.Keys(ctx, "zindex:*cal*")
	require.NoError(t, err)
	assert.Equal(t, []string{"zindex:california"}, keys)

	keys, err = m.Keys(ctx, "zindex:texas")
	require.NoError(t, err)
	assert.Equal(t, []string{"zindex:texas"}, keys)

	keys, err = m.Keys(ctx, "zindex:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"zindex:california", "zindex:texas"}, keys)
}

func TestMemoryDelRemovesAllShapes(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.HSet(ctx, "k", map[string]string{"a": "1"}))
	require.NoError(t, m.SAdd(ctx, "k2", "m"))
	require.NoError(t, m.Del(ctx, "k", "k2"))

	all, err := m.HGetAll(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, all)
	members, err := m.SMembers(ctx, "k2")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestGlobMatch(t *testing.T) {
	cases := []struct {
		pattern string
		s       string
		want    bool
	}{
		{"abc", "abc", true},
		{"abc", "abd", false},
		{"*", "anything", true},
		{"ab*", "abcdef", true},
		{"*ef", "abcdef", true},
		{"*cd*", "abcdef", true},
		{"*xy*", "abcdef", false},
		{"a*c*e", "abcde", true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, globMatch(tc.pattern, tc.s), "pattern %q against %q", tc.pattern, tc.s)
	}
}
