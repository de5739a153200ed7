package search

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicmesh/civic-broker/internal/civic/identity"
	"github.com/civicmesh/civic-broker/internal/civic/normalize"
	"github.com/civicmesh/civic-broker/internal/civic/store"
)

func index(t *testing.T, e *Engine, id string, values ...string) {
	t.Helper()
	rec := normalize.Record{}
	for i, v := range values {
		rec[fmt.Sprintf("field%d", i)] = v
	}
	require.NoError(t, e.IndexRecord(context.Background(), rec, id, ""))
}

func TestTokenize(t *testing.T) {
	tokens, err := Tokenize(`  "California" State Senate `)
	require.NoError(t, err)
	assert.Equal(t, []string{"california", "sldu"}, tokens)

	tokens, err = Tokenize("state house district 12")
	require.NoError(t, err)
	assert.Equal(t, []string{"sldl", "12"}, tokens)

	tokens, err = Tokenize("state assembly")
	require.NoError(t, err)
	assert.Equal(t, []string{"sldl"}, tokens)

	tokens, err = Tokenize("legislative general party district")
	require.NoError(t, err)
	assert.Empty(t, tokens)

	tokens, err = Tokenize("wild*card back\\slash")
	require.NoError(t, err)
	assert.Equal(t, []string{"wildcard", "backslash"}, tokens)
}

func TestTokenizeRejectsLongQueries(t *testing.T) {
	_, err := Tokenize("one two three four five six")
	assert.Error(t, err)

	// Stopwords do not count against the limit.
	tokens, err := Tokenize("one two three four five district")
	require.NoError(t, err)
	assert.Len(t, tokens, 5)
}

func TestSearchSingleToken(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(store.NewMemory())
	index(t, e, "p1", "California", "Jane Smith")
	index(t, e, "p2", "Texas", "Bob Jones")

	ids, pages, err := e.Search(ctx, "california", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, ids)
	assert.Equal(t, 1, pages)
}

func TestSearchIntersectsTokens(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(store.NewMemory())
	index(t, e, "p1", "California", "Senate")
	index(t, e, "p2", "California", "Assembly")
	index(t, e, "p3", "Texas", "Senate")

	ids, _, err := e.Search(ctx, "california senate", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, ids)

	ids, _, err = e.Search(ctx, "texas assembly", 1)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSearchEmptyQuery(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(store.NewMemory())
	index(t, e, "p1", "California")

	ids, pages, err := e.Search(ctx, "", 1)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Zero(t, pages)
}

func TestSearchWildcardMatchesSubstrings(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(store.NewMemory())
	index(t, e, "p1", "Jane Smitherson")

	// Long tokens match as substrings of stored tokens.
	ids, _, err := e.Search(ctx, "smitherson", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, ids)
	ids, _, err = e.Search(ctx, "janesmith", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, ids)
}

func TestSearchShortTokensMatchExactly(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(store.NewMemory())
	index(t, e, "p1", "Cal")
	index(t, e, "p2", "California")

	// "cal" is below the wildcard cutoff: only the exact token matches.
	ids, _, err := e.Search(ctx, "cal", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, ids)

	// "new" is allowlisted and still wildcards.
	index(t, e, "p3", "New York")
	ids, _, err = e.Search(ctx, "new", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"p3"}, ids)
}

func TestSearchPartyNameTranslation(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(store.NewMemory())
	require.NoError(t, e.kv.SAdd(ctx, identity.IndexKey("d"), "p1"))

	ids, _, err := e.Search(ctx, "democratic", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, ids)

	ids, _, err = e.Search(ctx, "democrat", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, ids)
}

func TestSearchPagination(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(store.NewMemory())
	for i := 0; i < 45; i++ {
		index(t, e, fmt.Sprintf("p%02d", i), "California")
	}

	ids, pages, err := e.Search(ctx, "california", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, pages)
	assert.Len(t, ids, 20)
	assert.Equal(t, "p00", ids[0])

	ids, pages, err = e.Search(ctx, "california", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, pages)
	assert.Len(t, ids, 5)
	assert.Equal(t, "p40", ids[0])

	// Past the end: empty page, same page count.
	ids, pages, err = e.Search(ctx, "california", 9)
	require.NoError(t, err)
	assert.Equal(t, 3, pages)
	assert.Empty(t, ids)

	// Page zero clamps to the first page.
	ids, _, err = e.Search(ctx, "california", 0)
	require.NoError(t, err)
	assert.Equal(t, "p00", ids[0])
}

func TestSearchRejectsOversizedResultSets(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(store.NewMemory())
	for i := 0; i < MaxResults+1; i++ {
		require.NoError(t, e.kv.SAdd(ctx, identity.IndexKey("california"), fmt.Sprintf("p%d", i)))
	}

	_, _, err := e.Search(ctx, "california", 1)
	assert.Error(t, err)
}

func TestIndexRecordSkipsDeniedFields(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	e := NewEngine(kv)

	rec := normalize.Record{
		normalize.FieldName:  "Jane Smith",
		normalize.FieldEmail: "jane@example.gov",
		normalize.FieldPhone: "(916) 555-0100",
	}
	require.NoError(t, e.IndexRecord(ctx, rec, "p1", "civicinfo"))

	keys, err := kv.Keys(ctx, identity.IndexKeyPattern("*"))
	require.NoError(t, err)
	assert.Equal(t, []string{"zindex:civicinfo", "zindex:janesmith"}, keys)
}

func TestIndexRecordIncludesDivisionMetadata(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	e := NewEngine(kv)

	divisionID := "ocd-division/country:us/state:ca/sldl:15"
	require.NoError(t, kv.HSet(ctx, identity.DivisionKey(divisionID), map[string]string{
		"name": "California Assembly district 15",
	}))

	rec := normalize.Record{
		normalize.FieldName:       "Jane Smith",
		normalize.FieldDivisionID: divisionID,
	}
	require.NoError(t, e.IndexRecord(ctx, rec, "p1", ""))

	ids, _, err := e.Search(ctx, "californiaassembly", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, ids)
}
