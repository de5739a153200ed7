package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	apperrors "github.com/civicmesh/civic-broker/pkg/errors"

	"github.com/civicmesh/civic-broker/internal/civic/identity"
)

const (
	// MaxQueryTokens bounds how many AND terms one query may carry.
	MaxQueryTokens = 5
	// MaxResults is the hard cap beyond which callers must refine.
	MaxResults = 500
	// PageSize is the fixed result page size.
	PageSize = 20
)

// aliases collapse multi-word legislative-body names into the short codes
// the index stores. Applied before tokenization, in order.
var aliases = [...][2]string{
	{"state house", "sldl"},
	{"state assembly", "sldl"},
	{"state senate", "sldu"},
}

// stopwords are dropped outright: they appear in nearly every office title
// and would only widen results.
var stopwords = map[string]struct{}{
	"district":    {},
	"legislative": {},
	"general":     {},
	"party":       {},
}

// shortTokenAllowlist holds tokens below the wildcard length cutoff that
// still get wildcarded ("new" as in New York, New Mexico, Newark).
var shortTokenAllowlist = map[string]struct{}{
	"new": {},
}

// Search answers a multi-token AND query over the inverted index and returns
// the requested page of politician ids plus the total page count. Result
// order is sorted by id so page boundaries stay coherent across calls.
func (e *Engine) Search(ctx context.Context, query string, page int) ([]string, int, error) {
	tokens, err := Tokenize(query)
	if err != nil {
		return nil, 0, err
	}
	if len(tokens) == 0 {
		return []string{}, 0, nil
	}

	var running map[string]struct{}
	for i, token := range tokens {
		current, err := e.tokenMatches(ctx, token)
		if err != nil {
			return nil, 0, err
		}
		if i == 0 {
			running = current
			continue
		}
		for id := range running {
			if _, ok := current[id]; !ok {
				delete(running, id)
			}
		}
		if len(running) == 0 {
			break
		}
	}

	if len(running) > MaxResults {
		return nil, 0, apperrors.New(apperrors.ErrTooManyResults, 400, "too many results, please refine your search")
	}

	ids := make([]string, 0, len(running))
	for id := range running {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	pages := (len(ids) + PageSize - 1) / PageSize
	if page < 1 {
		page = 1
	}
	start := (page - 1) * PageSize
	if start >= len(ids) {
		return []string{}, pages, nil
	}
	end := start + PageSize
	if end > len(ids) {
		end = len(ids)
	}
	return ids[start:end], pages, nil
}

// Tokenize normalizes a query into its lookup tokens: lowercase, control and
// quote characters stripped, multi-word aliases collapsed, stopwords
// removed. Queries with more than MaxQueryTokens tokens are rejected before
// any store access.
func Tokenize(query string) ([]string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsControl(r):
			return -1
		case r == '"' || r == '\'' || r == '\\' || r == '*':
			return -1
		default:
			return unicode.ToLower(r)
		}
	}, query)

	for _, alias := range aliases {
		cleaned = strings.ReplaceAll(cleaned, alias[0], alias[1])
	}

	var tokens []string
	for _, token := range strings.Fields(cleaned) {
		if _, stop := stopwords[token]; stop {
			continue
		}
		tokens = append(tokens, token)
	}
	if len(tokens) > MaxQueryTokens {
		return nil, apperrors.New(apperrors.ErrQueryTooLong, 400, "too many search words")
	}
	return tokens, nil
}

// tokenMatches unions the member sets of every index key the token matches.
func (e *Engine) tokenMatches(ctx context.Context, token string) (map[string]struct{}, error) {
	// Political party names collapse to their short code.
	if party := identity.PartyFromName(token); party != identity.PartyOther && party != identity.PartyUnknown {
		token = strings.ToLower(string(party))
	}

	pattern := "*" + token + "*"
	if len(token) < 4 {
		if _, wildcard := shortTokenAllowlist[token]; !wildcard {
			// Short tokens match exactly; wildcarding them would sweep in
			// most of the index.
			pattern = token
		}
	}

	keys, err := e.kv.Keys(ctx, identity.IndexKeyPattern(pattern))
	if err != nil {
		return nil, fmt.Errorf("enumerating index keys for %q: %w", token, err)
	}

	matches := make(map[string]struct{})
	for _, key := range keys {
		members, err := e.kv.SMembers(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("reading index key %s: %w", key, err)
		}
		for _, id := range members {
			matches[id] = struct{}{}
		}
	}
	return matches, nil
}
