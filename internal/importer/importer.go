// Package importer orchestrates a full reconciliation run: chain data in,
// the minimal set of wiki edits out. Every run re-derives its state from
// current external sources, so interrupted or repeated runs are safe.
package importer

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/cryptograss/railbot/internal/adapter"
	"github.com/cryptograss/railbot/internal/domain"
	"github.com/cryptograss/railbot/internal/leaderboard"
	"github.com/cryptograss/railbot/internal/logger"
	"github.com/cryptograss/railbot/internal/match"
	"github.com/cryptograss/railbot/internal/snapshot"
	"github.com/cryptograss/railbot/internal/submission"
	"github.com/cryptograss/railbot/internal/thumbnail"
	"github.com/cryptograss/railbot/internal/tokenpage"
	"github.com/cryptograss/railbot/internal/wiki"
)

// Options configures a reconciliation run.
type Options struct {
	ChainDataPath   string
	ConfigPage      string
	BurnAddress     string
	MaxSubmissionID int
	Thumbnails      bool
	IPFSGateways    []string
}

// Importer drives reconciliation runs against one wiki.
type Importer struct {
	client wiki.Client
	fs     adapter.FileSystem
	thumbs *thumbnail.Generator
	opts   Options
}

// New creates an importer. thumbs may be nil when thumbnail generation
// is disabled.
func New(client wiki.Client, fs adapter.FileSystem, thumbs *thumbnail.Generator, opts Options) *Importer {
	return &Importer{
		client: client,
		fs:     fs,
		thumbs: thumbs,
		opts:   opts,
	}
}

// Results collects the per-page outcomes of one run.
type Results struct {
	TokenPages       []wiki.SaveResult
	SubmissionPages  []wiki.SaveResult
	LeaderboardPages []wiki.SaveResult
}

// Count tallies results with the given action across one result list.
func Count(results []wiki.SaveResult, action wiki.Action) int {
	n := 0
	for _, r := range results {
		if r.Action == action {
			n++
		}
	}
	return n
}

// Errors returns one line per failed page across the whole run.
func (r Results) Errors() []string {
	var errs []string
	for _, list := range [][]wiki.SaveResult{r.TokenPages, r.SubmissionPages, r.LeaderboardPages} {
		for _, res := range list {
			if res.Action == wiki.ActionError {
				errs = append(errs, fmt.Sprintf("%s: %s", res.PageTitle, res.Message))
			}
		}
	}
	return errs
}

// Run performs a full reconciliation pass. Input errors (unreadable or
// malformed chain data) abort the run; per-page collaborator errors are
// collected and every remaining page is still attempted.
func (i *Importer) Run(ctx context.Context) (Results, error) {
	var results Results

	botCfg := i.loadBotConfig(ctx)

	snap, err := snapshot.Load(i.fs, i.opts.ChainDataPath)
	if err != nil {
		return results, err
	}
	tokens, err := snap.Aggregate(botCfg.Sources)
	if err != nil {
		return results, err
	}
	logger.Info("aggregated tokens",
		zap.Int("count", len(tokens)),
		zap.Int("sources", len(botCfg.Sources)),
	)

	subs := submission.FetchAll(ctx, i.client, i.opts.MaxSubmissionID)
	logger.Info("fetched submissions", zap.Int("count", len(subs)))

	// Best-effort CID backfill so content-identity matching can see
	// submissions minted before their CID was recorded.
	syncResults, subs := match.SyncContentIDs(ctx, i.client, tokens, subs, snap.ENSNames())
	results.SubmissionPages = append(results.SubmissionPages, syncResults...)

	mapping := match.Tokens(tokens, subs, snap.ENSNames())
	i.supplementFromIndex(ctx, mapping, subs)
	tokenToSub := invert(mapping)

	// Token pages, in id order for stable logs and summaries.
	for _, tokenID := range sortedTokenIDs(tokens) {
		token := tokens[tokenID]
		thumbAvailable := i.ensureThumbnail(ctx, token)
		result := tokenpage.Reconcile(ctx, i.client, token, tokenToSub[tokenID], thumbAvailable)
		results.TokenPages = append(results.TokenPages, result)
		logResult("token page", result)
	}

	// Submission pages: record minted token ids.
	subIDs := make([]int, 0, len(mapping))
	for subID := range mapping {
		subIDs = append(subIDs, subID)
	}
	sort.Ints(subIDs)
	for _, subID := range subIDs {
		result := submission.UpdateTokenIDs(ctx, i.client, subID, mapping[subID])
		results.SubmissionPages = append(results.SubmissionPages, result)
		logResult("submission page", result)
	}

	// Leaderboards, rendered from the full aggregated token set.
	gateway := ""
	if len(i.opts.IPFSGateways) > 0 {
		gateway = i.opts.IPFSGateways[0]
	}
	for _, spec := range botCfg.Leaderboards {
		content := leaderboard.Render(tokens, spec, i.opts.BurnAddress, gateway)
		summary := "Updated leaderboard from chain data"
		if spec.FilterSongID != "" {
			summary += fmt.Sprintf(" (song_id=%s)", spec.FilterSongID)
		}
		result := i.client.SavePage(ctx, spec.Page, content, summary)
		results.LeaderboardPages = append(results.LeaderboardPages, result)
		logResult("leaderboard page", result)
	}

	return results, nil
}

// supplementFromIndex extends the mapping through the wiki's indexed
// content-id lookup for submissions the in-memory strategies missed.
func (i *Importer) supplementFromIndex(ctx context.Context, mapping map[int][]int, subs []domain.Submission) {
	var unmatched []domain.Submission
	for _, sub := range subs {
		if _, ok := mapping[sub.ID]; !ok && sub.HasContentID() {
			unmatched = append(unmatched, sub)
		}
	}
	if len(unmatched) == 0 {
		return
	}

	for subID, tokenIDs := range match.ViaContentIndex(ctx, i.client, unmatched) {
		mapping[subID] = tokenIDs
	}
}

// ensureThumbnail makes sure a thumbnail for the token's video exists on
// the wiki. Returns whether one is available. Generation and upload
// failures are logged and reported as unavailable, never fatal.
func (i *Importer) ensureThumbnail(ctx context.Context, token domain.Token) bool {
	cid, ok := token.ContentID()
	if !ok {
		return false
	}

	filename := thumbnail.Filename(cid)
	exists, err := i.client.FileExists(ctx, filename)
	if err != nil {
		logger.Warn("thumbnail existence check failed",
			zap.String("filename", filename), zap.Error(err))
		return false
	}
	if exists {
		return true
	}
	if i.thumbs == nil {
		return false
	}

	path, err := i.thumbs.Generate(ctx, cid)
	if err != nil {
		logger.Warn("thumbnail generation failed",
			zap.String("token_id", token.TokenID),
			zap.String("cid", cid),
			zap.Error(err),
		)
		return false
	}
	defer func() {
		if err := i.fs.Remove(path); err != nil {
			logger.Warn("failed to remove thumbnail temp file", zap.Error(err), zap.String("path", path))
		}
	}()

	description := fmt.Sprintf("Thumbnail for [[Blue Railroad Token %s]]", token.TokenID)
	comment := fmt.Sprintf("Upload thumbnail for Blue Railroad token #%s", token.TokenID)
	if !i.client.UploadFile(ctx, path, filename, description, comment) {
		logger.Warn("thumbnail upload failed", zap.String("filename", filename))
		return false
	}

	logger.Info("uploaded thumbnail", zap.String("filename", filename))
	return true
}

func invert(mapping map[int][]int) map[string]int {
	tokenToSub := make(map[string]int)
	for subID, tokenIDs := range mapping {
		for _, tokenID := range tokenIDs {
			tokenToSub[strconv.Itoa(tokenID)] = subID
		}
	}
	return tokenToSub
}

func sortedTokenIDs(tokens map[string]domain.Token) []string {
	ids := make([]string, 0, len(tokens))
	for id := range tokens {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, aerr := strconv.Atoi(ids[i])
		b, berr := strconv.Atoi(ids[j])
		if aerr == nil && berr == nil {
			return a < b
		}
		return ids[i] < ids[j]
	})
	return ids
}

func logResult(kind string, result wiki.SaveResult) {
	switch result.Action {
	case wiki.ActionError:
		logger.Warn(kind+" failed",
			zap.String("title", result.PageTitle),
			zap.String("message", result.Message),
		)
	case wiki.ActionUnchanged:
		logger.Debug(kind+" unchanged", zap.String("title", result.PageTitle))
	default:
		logger.Info(kind+" "+string(result.Action),
			zap.String("title", result.PageTitle),
			zap.Strings("changed_fields", result.ChangedFields),
		)
	}
}
