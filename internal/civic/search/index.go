// Package search maintains the inverted index over normalized record fields
// and answers multi-token AND queries against it. Index entries are sets of
// politician ids keyed by a normalized token; entries are additive only, so
// tokens from corrected or overwritten records can linger. That staleness is
// a known limitation inherited from the index contract.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/civicmesh/civic-broker/internal/civic/identity"
	"github.com/civicmesh/civic-broker/internal/civic/normalize"
	"github.com/civicmesh/civic-broker/internal/civic/store"
)

// deniedFields are never indexed: identifiers and free-text contact fields
// are either too selective to be useful tokens or privacy-sensitive.
var deniedFields = map[string]struct{}{
	normalize.FieldID:            {},
	normalize.FieldDivisionID:    {},
	normalize.FieldAddress:       {},
	normalize.FieldPhone:         {},
	normalize.FieldEmail:         {},
	normalize.FieldURL:           {},
	normalize.FieldPhotoURL:      {},
	normalize.FieldFacebook:      {},
	normalize.FieldTwitter:       {},
	normalize.FieldGooglePlus:    {},
	normalize.FieldYouTube:       {},
	normalize.FieldYouTubeID:     {},
	normalize.FieldUpdated:       {},
	normalize.FieldVoteSmartID:   {},
	normalize.FieldOpenSecretsID: {},
	normalize.FieldBallotpediaID: {},
	normalize.FieldFECID:         {},
	normalize.FieldWikipediaID:   {},
}

// Engine owns both index maintenance and query answering.
type Engine struct {
	kv     store.KV
	logger *slog.Logger
}

// NewEngine creates a search engine over the given store.
func NewEngine(kv store.KV) *Engine {
	return &Engine{
		kv:     kv,
		logger: slog.Default().With("component", "search"),
	}
}

// IndexRecord adds the politician id to the token set of every indexable
// field value, indexes the provenance key literally, and recurses once into
// the division hash so searching a division's geographic name surfaces its
// officials.
func (e *Engine) IndexRecord(ctx context.Context, rec normalize.Record, politicianID, provenance string) error {
	for field, value := range rec {
		if _, denied := deniedFields[field]; denied {
			continue
		}
		if err := e.indexToken(ctx, value, politicianID); err != nil {
			return err
		}
	}
	if provenance != "" {
		if err := e.indexToken(ctx, provenance, politicianID); err != nil {
			return err
		}
	}

	divisionID := rec[normalize.FieldDivisionID]
	if divisionID == "" {
		return nil
	}
	division, err := e.kv.HGetAll(ctx, identity.DivisionKey(divisionID))
	if err != nil {
		return fmt.Errorf("loading division %s for indexing: %w", divisionID, err)
	}
	for _, value := range division {
		if err := e.indexToken(ctx, value, politicianID); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) indexToken(ctx context.Context, value, politicianID string) error {
	token := normalizeToken(value)
	if token == "" {
		return nil
	}
	if err := e.kv.SAdd(ctx, identity.IndexKey(token), politicianID); err != nil {
		return fmt.Errorf("indexing token %q: %w", token, err)
	}
	return nil
}

// normalizeToken lowercases a field value and strips whitespace, quotes,
// backslashes, wildcards, and control characters, collapsing the value into
// a single index token.
func normalizeToken(value string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r), unicode.IsControl(r):
			return -1
		case r == '"' || r == '\'' || r == '\\' || r == '*':
			return -1
		default:
			return unicode.ToLower(r)
		}
	}, value)
}
