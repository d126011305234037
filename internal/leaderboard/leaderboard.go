// Package leaderboard folds the aggregated token set into per-owner
// statistics and renders ranked leaderboard pages.
package leaderboard

import (
	"sort"
	"strconv"
	"strings"

	"github.com/cryptograss/railbot/internal/domain"
)

// Sort modes accepted by SortOwners.
const (
	SortCount  = "count"
	SortNewest = "newest"
	SortOldest = "oldest"
)

// Filter drops burned tokens and optionally restricts the set to one
// song id or one owner. Owner and burn-address comparison is
// case-insensitive; the input map is never mutated.
func Filter(tokens map[string]domain.Token, songID, owner, burnAddress string, excludeBurned bool) map[string]domain.Token {
	result := make(map[string]domain.Token)
	for key, token := range tokens {
		if excludeBurned && token.Owner != "" && strings.EqualFold(token.Owner, burnAddress) {
			continue
		}
		if songID != "" && token.SongID != songID {
			continue
		}
		if owner != "" && !strings.EqualFold(token.Owner, owner) {
			continue
		}
		result[key] = token
	}
	return result
}

// Stats aggregates per-owner statistics. The ranking value is the legacy
// mint date when present, else the block height, else 0 (unknown).
func Stats(tokens map[string]domain.Token, burnAddress string) map[string]*domain.OwnerStats {
	stats := make(map[string]*domain.OwnerStats)
	for _, token := range tokens {
		if token.Owner == "" || strings.EqualFold(token.Owner, burnAddress) {
			continue
		}

		owner, ok := stats[token.Owner]
		if !ok {
			owner = domain.NewOwnerStats(token.Owner, token.OwnerDisplay)
			stats[token.Owner] = owner
		}

		owner.AddToken(token.TokenID, rankValue(token), token.IsCurrentVersion())
	}
	return stats
}

func rankValue(token domain.Token) int64 {
	if token.Date != 0 {
		return token.Date
	}
	return token.BlockHeight
}

// SortOwners orders owner addresses by the requested mode. An unset
// oldest value (0) sorts as infinitely old so never-dated owners come
// last in "oldest" mode. Ties break on address ascending, a documented
// extension chosen for reproducible output.
func SortOwners(stats map[string]*domain.OwnerStats, mode string) []string {
	addresses := make([]string, 0, len(stats))
	for address := range stats {
		addresses = append(addresses, address)
	}

	switch mode {
	case SortNewest:
		sort.Slice(addresses, func(i, j int) bool {
			a, b := stats[addresses[i]], stats[addresses[j]]
			if a.NewestDate != b.NewestDate {
				return a.NewestDate > b.NewestDate
			}
			return addresses[i] < addresses[j]
		})
	case SortOldest:
		sort.Slice(addresses, func(i, j int) bool {
			a, b := oldestOrInf(stats[addresses[i]]), oldestOrInf(stats[addresses[j]])
			if a != b {
				return a < b
			}
			return addresses[i] < addresses[j]
		})
	default: // SortCount
		sort.Slice(addresses, func(i, j int) bool {
			a, b := stats[addresses[i]], stats[addresses[j]]
			if a.TokenCount != b.TokenCount {
				return a.TokenCount > b.TokenCount
			}
			return addresses[i] < addresses[j]
		})
	}

	return addresses
}

func oldestOrInf(s *domain.OwnerStats) int64 {
	if s.OldestDate == 0 {
		return int64(^uint64(0) >> 1)
	}
	return s.OldestDate
}

// RecentWithVideo returns the most recent tokens that carry a video,
// newest first, up to limit.
func RecentWithVideo(tokens map[string]domain.Token, limit int) []domain.Token {
	var withVideo []domain.Token
	for _, token := range tokens {
		if _, ok := token.ContentID(); ok {
			withVideo = append(withVideo, token)
		}
	}

	sort.Slice(withVideo, func(i, j int) bool {
		a, b := recency(withVideo[i]), recency(withVideo[j])
		if a != b {
			return a > b
		}
		return withVideo[i].TokenID < withVideo[j].TokenID
	})

	if len(withVideo) > limit {
		withVideo = withVideo[:limit]
	}
	return withVideo
}

func recency(token domain.Token) int64 {
	if token.BlockHeight != 0 {
		return token.BlockHeight
	}
	return token.Date
}

// sortTokenIDs orders token ids numerically, pushing non-numeric ids first.
func sortTokenIDs(ids []string) []string {
	sorted := append([]string(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool {
		a, _ := strconv.Atoi(sorted[i])
		b, _ := strconv.Atoi(sorted[j])
		if a != b {
			return a < b
		}
		return sorted[i] < sorted[j]
	})
	return sorted
}
