// Package tokenpage renders and reconciles per-token wiki pages. A token
// page is one token template plus whatever free text editors have added;
// reconciliation rewrites only the template block, and only when one of
// the attributes the chain is authoritative for has drifted.
package tokenpage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cryptograss/railbot/internal/domain"
	"github.com/cryptograss/railbot/internal/thumbnail"
	"github.com/cryptograss/railbot/internal/wiki"
	"github.com/cryptograss/railbot/internal/wikitext"
)

// RenderTemplate renders the token template call. thumbnailAvailable
// gates the thumbnail field so a page never references a file that was
// not uploaded. submissionID of 0 means the token matched no submission.
func RenderTemplate(token domain.Token, submissionID int, thumbnailAvailable bool) string {
	cid, hasCID := token.ContentID()

	thumb := ""
	if hasCID && thumbnailAvailable {
		thumb = thumbnail.Filename(cid)
	}

	uriType := "unknown"
	if hasCID {
		uriType = "ipfs"
	}

	subID := ""
	if submissionID != 0 {
		subID = strconv.Itoa(submissionID)
	}

	lines := []string{
		"{{" + domain.TokenTemplate,
		"|token_id=" + token.TokenID,
		"|song_id=" + token.SongID,
		"|contract_version=" + versionLabel(token),
		"|thumbnail=" + thumb,
	}

	if token.IsCurrentVersion() {
		lines = append(lines,
			"|blockheight="+nonZero(token.BlockHeight),
			"|video_hash="+token.VideoHash,
		)
	} else {
		lines = append(lines,
			"|date="+token.FormattedDate(),
			"|date_raw="+nonZero(token.Date),
		)
	}

	lines = append(lines,
		"|owner="+token.Owner,
		"|owner_display="+token.OwnerDisplay,
		"|uri="+token.URI,
		"|uri_type="+uriType,
		"|ipfs_cid="+valueOrEmpty(cid, hasCID),
		"|submission_id="+subID,
		"}}",
	)

	return strings.Join(lines, "\n")
}

// RenderPage renders a complete new token page.
func RenderPage(token domain.Token, submissionID int, thumbnailAvailable bool) string {
	content := RenderTemplate(token, submissionID, thumbnailAvailable) + "\n"
	if token.IsCurrentVersion() {
		content += "\n[[Category:Blue Railroad V2 Tokens]]"
	}
	return content
}

// Reconcile brings a token's wiki page in line with chain data. A new
// page gets the full rendering. An existing page is rewritten only when
// the owner, the thumbnail availability, or the submission link changed,
// and only its template block is replaced; the result message names the
// attributes that triggered the rewrite.
func Reconcile(ctx context.Context, client wiki.Client, token domain.Token, submissionID int, thumbnailAvailable bool) wiki.SaveResult {
	title := domain.TokenPageTitle(token.TokenID)

	existing, err := client.GetPage(ctx, title)
	if err != nil {
		if !errors.Is(err, domain.ErrPageNotFound) {
			return wiki.ErrorResult(title, err.Error())
		}
		summary := fmt.Sprintf("Imported Blue Railroad token #%s from chain data", token.TokenID)
		return client.SavePage(ctx, title, RenderPage(token, submissionID, thumbnailAvailable), summary)
	}

	tmpl, ok := wikitext.FindTemplate(existing, domain.TokenTemplate)
	if !ok {
		// Template was removed by hand; restore the full rendering.
		summary := fmt.Sprintf("Restore token template for Blue Railroad token #%s", token.TokenID)
		return client.SavePage(ctx, title, RenderPage(token, submissionID, thumbnailAvailable), summary)
	}

	reasons := changeReasons(wikitext.Params(tmpl.Body), token, submissionID, thumbnailAvailable)
	if len(reasons) == 0 {
		return wiki.UnchangedResult(title, "owner, thumbnail and submission link unchanged")
	}

	updated := tmpl.Replace(existing, RenderTemplate(token, submissionID, thumbnailAvailable))
	summary := fmt.Sprintf("Updated Blue Railroad token #%s from chain data (%s)",
		token.TokenID, strings.Join(reasons, ", "))

	result := client.SavePage(ctx, title, updated, summary)
	if result.Message == "" {
		result.Message = strings.Join(reasons, ", ")
	}
	return result
}

// changeReasons compares the three attributes the update policy watches.
func changeReasons(params map[string]string, token domain.Token, submissionID int, thumbnailAvailable bool) []string {
	var reasons []string

	if params["owner"] != token.Owner {
		reasons = append(reasons, "owner changed")
	}

	cid, hasCID := token.ContentID()
	wantThumb := ""
	if hasCID && thumbnailAvailable {
		wantThumb = thumbnail.Filename(cid)
	}
	if params["thumbnail"] != wantThumb {
		reasons = append(reasons, "thumbnail changed")
	}

	wantSub := ""
	if submissionID != 0 {
		wantSub = strconv.Itoa(submissionID)
	}
	if params["submission_id"] != wantSub {
		reasons = append(reasons, "submission link changed")
	}

	return reasons
}

func versionLabel(token domain.Token) string {
	if token.IsCurrentVersion() {
		return "V2"
	}
	return "V1"
}

func nonZero(v int64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatInt(v, 10)
}

func valueOrEmpty(s string, ok bool) string {
	if !ok {
		return ""
	}
	return s
}
