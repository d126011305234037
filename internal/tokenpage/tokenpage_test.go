package tokenpage

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptograss/railbot/internal/domain"
	"github.com/cryptograss/railbot/internal/logger"
	"github.com/cryptograss/railbot/internal/wiki"
)

func TestMain(m *testing.M) {
	// Initialize logger for tests
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}

	code := m.Run()
	os.Exit(code)
}

const videoCID = "QmZtnFaddFtzGNT8BxdHVbQrhSFdq1pWxud5z4fA4kxfDt"

func currentToken() domain.Token {
	return domain.Token{
		TokenID:      "5",
		Owner:        "0xaaa0000000000000000000000000000000000001",
		OwnerDisplay: "justinholmes.eth",
		SongID:       "5",
		BlockHeight:  24000000,
		VideoHash:    "0x" + strings.Repeat("ab", 32),
	}
}

func legacyToken() domain.Token {
	return domain.Token{
		TokenID:      "3",
		Owner:        "0xbbb0000000000000000000000000000000000002",
		OwnerDisplay: "bob",
		SongID:       "7",
		Date:         20230615,
		URI:          "ipfs://QmLegacyCid",
	}
}

func TestRenderTemplateCurrentToken(t *testing.T) {
	content := RenderTemplate(currentToken(), 12, true)

	assert.Contains(t, content, "{{Blue Railroad Token")
	assert.Contains(t, content, "|token_id=5")
	assert.Contains(t, content, "|contract_version=V2")
	assert.Contains(t, content, "|blockheight=24000000")
	assert.Contains(t, content, "|video_hash=0x"+strings.Repeat("ab", 32))
	assert.Contains(t, content, "|thumbnail=Blue_Railroad_Video_"+videoCID+".jpg")
	assert.Contains(t, content, "|uri_type=ipfs")
	assert.Contains(t, content, "|ipfs_cid="+videoCID)
	assert.Contains(t, content, "|submission_id=12")
	assert.NotContains(t, content, "|date=")
}

func TestRenderTemplateLegacyToken(t *testing.T) {
	content := RenderTemplate(legacyToken(), 0, false)

	assert.Contains(t, content, "|contract_version=V1")
	assert.Contains(t, content, "|date=2023-06-15")
	assert.Contains(t, content, "|date_raw=20230615")
	assert.Contains(t, content, "|uri=ipfs://QmLegacyCid")
	assert.Contains(t, content, "|ipfs_cid=QmLegacyCid")
	assert.Contains(t, content, "|thumbnail=\n")
	assert.Contains(t, content, "|submission_id=\n")
	assert.NotContains(t, content, "|blockheight=")
}

func TestRenderTemplateWithoutThumbnail(t *testing.T) {
	content := RenderTemplate(currentToken(), 12, false)
	assert.Contains(t, content, "|thumbnail=\n")
}

func TestRenderPage(t *testing.T) {
	page := RenderPage(currentToken(), 12, true)
	assert.Contains(t, page, "[[Category:Blue Railroad V2 Tokens]]")

	legacy := RenderPage(legacyToken(), 0, false)
	assert.NotContains(t, legacy, "[[Category:")
}

func TestReconcileCreatesNewPage(t *testing.T) {
	client := wiki.NewDryRun()

	result := Reconcile(context.Background(), client, currentToken(), 12, true)
	assert.Equal(t, wiki.ActionCreated, result.Action)
	assert.Equal(t, "Blue Railroad Token 5", result.PageTitle)

	require.Len(t, client.Saved, 1)
	assert.Contains(t, client.Saved[0].Content, "|token_id=5")
	assert.Contains(t, client.Saved[0].Summary, "Imported")
}

func TestReconcileUnchangedPage(t *testing.T) {
	page := RenderPage(currentToken(), 12, true)
	client := wiki.NewDryRun(wiki.WithPages(map[string]string{
		"Blue Railroad Token 5": page,
	}))

	result := Reconcile(context.Background(), client, currentToken(), 12, true)
	assert.Equal(t, wiki.ActionUnchanged, result.Action)
	assert.Empty(t, client.Saved)
}

func TestReconcileOwnerChanged(t *testing.T) {
	old := currentToken()
	old.Owner = "0xccc0000000000000000000000000000000000003"
	client := wiki.NewDryRun(wiki.WithPages(map[string]string{
		"Blue Railroad Token 5": RenderPage(old, 12, true),
	}))

	result := Reconcile(context.Background(), client, currentToken(), 12, true)
	assert.Equal(t, wiki.ActionUpdated, result.Action)

	require.Len(t, client.Saved, 1)
	assert.Contains(t, client.Saved[0].Summary, "owner changed")
	assert.Contains(t, client.Saved[0].Content, "|owner="+currentToken().Owner)
}

func TestReconcileSubmissionLinkChanged(t *testing.T) {
	client := wiki.NewDryRun(wiki.WithPages(map[string]string{
		"Blue Railroad Token 5": RenderPage(currentToken(), 0, true),
	}))

	result := Reconcile(context.Background(), client, currentToken(), 12, true)
	assert.Equal(t, wiki.ActionUpdated, result.Action)
	assert.Contains(t, client.Saved[0].Summary, "submission link changed")
}

func TestReconcilePreservesEditorText(t *testing.T) {
	page := "Editor prose above.\n\n" + RenderTemplate(currentToken(), 12, false) + "\n\nEditor prose below.\n"
	client := wiki.NewDryRun(wiki.WithPages(map[string]string{
		"Blue Railroad Token 5": page,
	}))

	// thumbnail became available, so only the template block is rewritten
	result := Reconcile(context.Background(), client, currentToken(), 12, true)
	assert.Equal(t, wiki.ActionUpdated, result.Action)

	require.Len(t, client.Saved, 1)
	saved := client.Saved[0].Content
	assert.Contains(t, saved, "Editor prose above.")
	assert.Contains(t, saved, "Editor prose below.")
	assert.Contains(t, saved, "|thumbnail=Blue_Railroad_Video_"+videoCID+".jpg")
}

func TestReconcileRestoresRemovedTemplate(t *testing.T) {
	client := wiki.NewDryRun(wiki.WithPages(map[string]string{
		"Blue Railroad Token 5": "someone deleted the template",
	}))

	result := Reconcile(context.Background(), client, currentToken(), 12, true)
	assert.Equal(t, wiki.ActionUpdated, result.Action)
	assert.Contains(t, client.Saved[0].Summary, "Restore")
	assert.Contains(t, client.Saved[0].Content, "{{Blue Railroad Token")
}
