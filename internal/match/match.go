// Package match reconciles tokens with submission pages. Two strategies
// run as a priority chain: content identity is authoritative whenever any
// token resolves through it, and block-height plus participant identity
// is the fallback for submissions minted before their CID was recorded.
package match

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/cryptograss/railbot/internal/contentid"
	"github.com/cryptograss/railbot/internal/domain"
	"github.com/cryptograss/railbot/internal/ens"
	"github.com/cryptograss/railbot/internal/logger"
	"github.com/cryptograss/railbot/internal/submission"
	"github.com/cryptograss/railbot/internal/wiki"
)

// Tokens matches tokens to submissions, trying content-identity first and
// falling back to block-height + participant matching only when content
// identity finds nothing at all. Inputs are never mutated; each
// submission's token-id set comes back sorted ascending and deduplicated.
func Tokens(tokens map[string]domain.Token, subs []domain.Submission, ensTable map[string]string) map[int][]int {
	if result := ByContentID(tokens, subs); len(result) > 0 {
		return result
	}
	return ByBlockHeightAndParticipant(tokens, subs, ensTable)
}

// ByContentID matches tokens to submissions through their normalized
// content identifiers.
func ByContentID(tokens map[string]domain.Token, subs []domain.Submission) map[int][]int {
	byCID := make(map[string]int)
	for _, sub := range subs {
		if !sub.HasContentID() {
			continue
		}
		byCID[contentid.Normalize(sub.ContentID)] = sub.ID
	}

	matched := make(map[int][]int)
	for _, token := range tokens {
		cid, ok := token.ContentID()
		if !ok {
			continue
		}
		subID, ok := byCID[contentid.Normalize(cid)]
		if !ok {
			continue
		}
		tokenID, err := strconv.Atoi(token.TokenID)
		if err != nil {
			logger.Warn("non-numeric token id, skipping",
				zap.String("token_id", token.TokenID))
			continue
		}
		matched[subID] = append(matched[subID], tokenID)
	}

	return normalizeSets(matched)
}

// ByBlockHeightAndParticipant matches tokens to submissions by mint block
// height and participant identity. ENS-looking participants are resolved
// through the name table; unresolved names are skipped with a log line.
// When two participants of one submission collide on an address slot the
// later entry wins, which is harmless since participants within one
// submission are expected to be distinct addresses.
func ByBlockHeightAndParticipant(tokens map[string]domain.Token, subs []domain.Submission, ensTable map[string]string) map[int][]int {
	lookup := make(map[string]int)
	for _, sub := range subs {
		if sub.BlockHeight == 0 {
			continue
		}
		for _, participant := range sub.Participants {
			address := participant
			if ens.IsName(participant) {
				resolved, ok := ens.Resolve(participant, ensTable)
				if !ok {
					logger.Info("unresolved ENS name in submission",
						zap.Int("submission_id", sub.ID),
						zap.String("name", participant),
					)
					continue
				}
				address = resolved
			} else if !ens.IsAddress(participant) {
				logger.Debug("participant is neither ENS name nor address, using verbatim",
					zap.Int("submission_id", sub.ID),
					zap.String("participant", participant),
				)
			}
			lookup[slotKey(sub.BlockHeight, address)] = sub.ID
		}
	}

	matched := make(map[int][]int)
	for _, token := range tokens {
		if token.BlockHeight == 0 {
			continue
		}
		subID, ok := lookup[slotKey(token.BlockHeight, token.Owner)]
		if !ok {
			continue
		}
		tokenID, err := strconv.Atoi(token.TokenID)
		if err != nil {
			logger.Warn("non-numeric token id, skipping",
				zap.String("token_id", token.TokenID))
			continue
		}
		matched[subID] = append(matched[subID], tokenID)
	}

	return normalizeSets(matched)
}

// ViaContentIndex matches submissions to tokens through the wiki's
// indexed content-id lookup instead of the in-memory token set. Best
// effort: a wiki without the index contributes no matches.
func ViaContentIndex(ctx context.Context, client wiki.Client, subs []domain.Submission) map[int][]int {
	matched := make(map[int][]int)
	for _, sub := range subs {
		if !sub.HasContentID() {
			continue
		}
		rows, err := client.TokensByContentID(ctx, sub.ContentID)
		if err != nil {
			logger.Warn("content-id lookup failed",
				zap.Int("submission_id", sub.ID), zap.Error(err))
			continue
		}
		for _, row := range rows {
			tokenID, err := strconv.Atoi(row.TokenID)
			if err != nil {
				continue
			}
			matched[sub.ID] = append(matched[sub.ID], tokenID)
		}
	}
	return normalizeSets(matched)
}

// SyncContentIDs is the best-effort pre-pass that backfills missing
// submission CIDs from tokens matched by block height and participant.
// It lets the content-identity strategy bootstrap itself the first time
// a new submission is seen. Only submissions without a recorded CID are
// written. Returns one result per attempted write plus the submission
// list with successful backfills applied, so the authoritative match can
// run against the post-sync state without a refetch.
func SyncContentIDs(ctx context.Context, client wiki.Client, tokens map[string]domain.Token, subs []domain.Submission, ensTable map[string]string) ([]wiki.SaveResult, []domain.Submission) {
	matched := ByBlockHeightAndParticipant(tokens, subs, ensTable)
	synced := append([]domain.Submission(nil), subs...)

	var results []wiki.SaveResult
	for i, sub := range synced {
		tokenIDs, ok := matched[sub.ID]
		if !ok || sub.HasContentID() {
			continue
		}

		cid, ok := firstTokenCID(tokens, tokenIDs)
		if !ok {
			continue
		}

		logger.Info("backfilling submission CID",
			zap.Int("submission_id", sub.ID),
			zap.String("cid", cid),
		)
		result := submission.UpdateCID(ctx, client, sub.ID, cid)
		results = append(results, result)
		if result.Action != wiki.ActionError {
			synced[i].ContentID = cid
		}
	}
	return results, synced
}

func firstTokenCID(tokens map[string]domain.Token, tokenIDs []int) (string, bool) {
	for _, id := range tokenIDs {
		token, ok := tokens[strconv.Itoa(id)]
		if !ok {
			continue
		}
		if cid, ok := token.ContentID(); ok {
			return cid, true
		}
	}
	return "", false
}

// SubmissionIDForToken returns the submission a single token belongs to,
// by content identity.
func SubmissionIDForToken(token domain.Token, subs []domain.Submission) (int, bool) {
	cid, ok := token.ContentID()
	if !ok {
		return 0, false
	}
	normalized := contentid.Normalize(cid)
	for _, sub := range subs {
		if sub.HasContentID() && contentid.Normalize(sub.ContentID) == normalized {
			return sub.ID, true
		}
	}
	return 0, false
}

func slotKey(height int64, address string) string {
	return fmt.Sprintf("%d|%s", height, strings.ToLower(address))
}

func normalizeSets(matched map[int][]int) map[int][]int {
	for subID, ids := range matched {
		sort.Ints(ids)
		deduped := ids[:0]
		for i, id := range ids {
			if i == 0 || id != ids[i-1] {
				deduped = append(deduped, id)
			}
		}
		matched[subID] = deduped
	}
	return matched
}
