// Package submission reads and updates Blue Railroad submission pages.
// A submission page holds one submission template followed by zero or
// more participant templates; free text around them belongs to editors
// and is never touched.
package submission

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/cryptograss/railbot/internal/domain"
	"github.com/cryptograss/railbot/internal/logger"
	"github.com/cryptograss/railbot/internal/wiki"
	"github.com/cryptograss/railbot/internal/wikitext"
)

// ParseContent parses a submission page's structured content.
func ParseContent(text string, id int) domain.Submission {
	sub := domain.Submission{
		ID:     id,
		Status: domain.StatusPending,
	}

	if tmpl, ok := wikitext.FindTemplate(text, domain.SubmissionTemplate); ok {
		params := wikitext.Params(tmpl.Body)
		sub.Exercise = params["exercise"]
		sub.Video = params["video"]
		sub.ContentID = params["ipfs_cid"]
		if status := params["status"]; status != "" {
			sub.Status = status
		}
		if height, err := strconv.ParseInt(params["block_height"], 10, 64); err == nil {
			sub.BlockHeight = height
		}
		sub.TokenIDs = parseTokenIDs(params["token_ids"])
	}

	seen := make(map[string]bool)
	for _, tmpl := range wikitext.FindTemplates(text, domain.ParticipantTemplate) {
		wallet := wikitext.Params(tmpl.Body)["wallet"]
		if wallet == "" || seen[wallet] {
			continue
		}
		seen[wallet] = true
		sub.Participants = append(sub.Participants, wallet)
	}

	return sub
}

func parseTokenIDs(value string) []int {
	if value == "" {
		return nil
	}
	var ids []int
	for _, part := range strings.Split(value, ",") {
		if id, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// Fetch reads one submission. Returns nil when the page does not exist.
func Fetch(ctx context.Context, client wiki.Client, id int) (*domain.Submission, error) {
	text, err := client.GetPage(ctx, domain.SubmissionPageTitle(id))
	if err != nil {
		if errors.Is(err, domain.ErrPageNotFound) {
			return nil, nil
		}
		return nil, err
	}
	sub := ParseContent(text, id)
	return &sub, nil
}

// FetchAll reads submissions 1..maxID, skipping ids without a page.
// Collaborator errors on individual pages are logged and skipped so one
// unreachable page never hides the rest.
func FetchAll(ctx context.Context, client wiki.Client, maxID int) []domain.Submission {
	var subs []domain.Submission
	for id := 1; id <= maxID; id++ {
		sub, err := Fetch(ctx, client, id)
		if err != nil {
			logger.Warn("failed to fetch submission",
				zap.Int("id", id), zap.Error(err))
			continue
		}
		if sub != nil {
			subs = append(subs, *sub)
		}
	}
	return subs
}

// setFields applies field writes to a submission page and saves only when
// something changed. A missing page or template is a per-item error.
func setFields(ctx context.Context, client wiki.Client, id int, fields [][2]string, summary string) wiki.SaveResult {
	title := domain.SubmissionPageTitle(id)

	text, err := client.GetPage(ctx, title)
	if err != nil {
		return wiki.ErrorResult(title, err.Error())
	}

	changedAny := false
	for _, f := range fields {
		updated, changed, err := wikitext.SetField(text, domain.SubmissionTemplate, f[0], f[1])
		if err != nil {
			return wiki.ErrorResult(title, err.Error())
		}
		text = updated
		changedAny = changedAny || changed
	}

	if !changedAny {
		return wiki.UnchangedResult(title, "fields already set")
	}
	return client.SavePage(ctx, title, text, summary)
}

// UpdateCID records a submission's content id.
func UpdateCID(ctx context.Context, client wiki.Client, id int, contentID string) wiki.SaveResult {
	summary := fmt.Sprintf("Add IPFS CID: %s", truncate(contentID, 20))
	return setFields(ctx, client, id, [][2]string{{"ipfs_cid", contentID}}, summary)
}

// UpdateTokenIDs records the minted token ids for a submission and flips
// its status to minted. Ids are deduplicated and sorted ascending.
func UpdateTokenIDs(ctx context.Context, client wiki.Client, id int, tokenIDs []int) wiki.SaveResult {
	ids := dedupeSorted(tokenIDs)
	parts := make([]string, len(ids))
	for i, tokenID := range ids {
		parts[i] = strconv.Itoa(tokenID)
	}

	summary := fmt.Sprintf("Record minted tokens: %s", strings.Join(parts, ", "))
	return setFields(ctx, client, id, [][2]string{
		{"token_ids", strings.Join(parts, ",")},
		{"status", domain.StatusMinted},
	}, summary)
}

// MarkMinted flips a submission's status to minted, noting the token and
// recipient in the change summary.
func MarkMinted(ctx context.Context, client wiki.Client, id int, wallet string, tokenID int) wiki.SaveResult {
	summary := fmt.Sprintf("Mark as minted: Token #%d to %s", tokenID, truncate(wallet, 10))
	return setFields(ctx, client, id, [][2]string{{"status", domain.StatusMinted}}, summary)
}

func dedupeSorted(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Ints(out)
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
