// Package snapshot reads a pre-fetched chain-data snapshot and aggregates
// its per-source token tables into one normalized token set.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/cryptograss/railbot/internal/adapter"
	"github.com/cryptograss/railbot/internal/domain"
	"github.com/cryptograss/railbot/internal/logger"
)

// ENSNamesKey is the well-known top-level snapshot key holding the flat
// name -> address table captured at snapshot time.
const ENSNamesKey = "ensNames"

// Snapshot is a parsed chain-data document: one token table per source
// key plus the optional ENS name table.
type Snapshot struct {
	tables   map[string]json.RawMessage
	ensNames map[string]string
}

// Load reads and parses a snapshot file.
func Load(fs adapter.FileSystem, path string) (*Snapshot, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain data %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses a snapshot document.
func Parse(data []byte) (*Snapshot, error) {
	var tables map[string]json.RawMessage
	if err := json.Unmarshal(data, &tables); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSnapshotMalformed, err)
	}

	snap := &Snapshot{tables: tables}

	if raw, ok := tables[ENSNamesKey]; ok {
		if err := json.Unmarshal(raw, &snap.ensNames); err != nil {
			return nil, fmt.Errorf("%w: bad %s table: %v", domain.ErrSnapshotMalformed, ENSNamesKey, err)
		}
	}

	return snap, nil
}

// ENSNames returns the snapshot's name -> address table, or nil when the
// snapshot carries none. Keys are lowercase ENS names.
func (s *Snapshot) ENSNames() map[string]string {
	return s.ensNames
}

// TokensFromSource parses every token under one source key. A missing
// source key yields no tokens; it is not an error, since config pages may
// name sources ahead of their first snapshot.
func (s *Snapshot) TokensFromSource(source domain.Source) ([]domain.Token, error) {
	raw, ok := s.tables[source.ChainDataKey]
	if !ok {
		logger.Debug("source key absent from snapshot", zap.String("key", source.ChainDataKey))
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var table map[string]map[string]interface{}
	if err := dec.Decode(&table); err != nil {
		return nil, fmt.Errorf("%w: source %s: %v", domain.ErrSnapshotMalformed, source.ChainDataKey, err)
	}

	tokens := make([]domain.Token, 0, len(table))
	for tokenID, fields := range table {
		tokens = append(tokens, parseToken(tokenID, fields, source.ChainDataKey))
	}

	return tokens, nil
}

// Aggregate folds tokens from every source into one map keyed by bare
// token id. A current-version record always wins over a legacy record
// with the same id, reflecting the migration model where the migrated
// identity is canonical. Same-version collisions keep the record from
// the earlier source in the list; later ones are dropped.
func (s *Snapshot) Aggregate(sources []domain.Source) (map[string]domain.Token, error) {
	all := make(map[string]domain.Token)

	for _, source := range sources {
		tokens, err := s.TokensFromSource(source)
		if err != nil {
			return nil, err
		}

		for _, token := range tokens {
			existing, ok := all[token.TokenID]
			switch {
			case !ok:
				all[token.TokenID] = token
			case token.IsCurrentVersion() && !existing.IsCurrentVersion():
				all[token.TokenID] = token
			default:
				logger.Debug("dropping colliding token record",
					zap.String("token_id", token.TokenID),
					zap.String("kept_source", existing.SourceKey),
					zap.String("dropped_source", token.SourceKey),
				)
			}
		}
	}

	return all, nil
}

// parseToken normalizes one raw token object. Numeric fields may arrive
// wrapped in a one-element array, an artifact of BigInt serialization in
// the snapshot producer; an empty array means absent.
func parseToken(tokenID string, fields map[string]interface{}, sourceKey string) domain.Token {
	owner := stringField(fields, "owner")
	ownerDisplay := stringField(fields, "ownerDisplay")
	if ownerDisplay == "" {
		ownerDisplay = owner
	}

	return domain.Token{
		TokenID:      tokenID,
		SourceKey:    sourceKey,
		Owner:        owner,
		OwnerDisplay: ownerDisplay,
		SongID:       scalarString(fields["songId"]),
		Date:         scalarInt64(fields["date"]),
		URI:          stringField(fields, "uri"),
		BlockHeight:  scalarInt64(fields["blockheight"]),
		VideoHash:    stringField(fields, "videoHash"),
	}
}

func stringField(fields map[string]interface{}, key string) string {
	if s, ok := fields[key].(string); ok {
		return s
	}
	return ""
}

// unwrap reduces a one-element array to its scalar and an empty array to nil.
func unwrap(v interface{}) interface{} {
	if list, ok := v.([]interface{}); ok {
		if len(list) == 0 {
			return nil
		}
		return list[0]
	}
	return v
}

func scalarString(v interface{}) string {
	switch s := unwrap(v).(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	default:
		return ""
	}
}

func scalarInt64(v interface{}) int64 {
	switch n := unwrap(v).(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
	case string:
		var i int64
		if _, err := fmt.Sscan(n, &i); err == nil {
			return i
		}
	}
	return 0
}
