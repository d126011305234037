// Package wiki is the record store boundary: everything the bot reads
// from or writes to the wiki goes through the Client interface, so runs
// can be replayed against a dry-run client without touching the site.
package wiki

import "context"

// Action classifies the outcome of a page save.
type Action string

const (
	ActionCreated   Action = "created"
	ActionUpdated   Action = "updated"
	ActionUnchanged Action = "unchanged"
	ActionError     Action = "error"
)

// SaveResult is the per-page outcome of a save operation. Collaborator
// failures are captured here instead of propagating, so one failed page
// never blocks the rest of a batch.
type SaveResult struct {
	PageTitle     string
	Action        Action
	Message       string
	ChangedFields []string
}

// ErrorResult builds an error-kind save result.
func ErrorResult(title, message string) SaveResult {
	return SaveResult{PageTitle: title, Action: ActionError, Message: message}
}

// UnchangedResult builds an unchanged-kind save result.
func UnchangedResult(title, message string) SaveResult {
	return SaveResult{PageTitle: title, Action: ActionUnchanged, Message: message}
}

// TokenInfo is one row of the indexed content-id lookup.
type TokenInfo struct {
	TokenID      string
	OwnerAddress string
	OwnerDisplay string
}

// Client defines wiki operations
//
//go:generate mockgen -source=client.go -destination=../mocks/wiki_client.go -package=mocks -mock_names=Client=MockWikiClient
type Client interface {
	// GetPage returns the current text of a page, or domain.ErrPageNotFound
	GetPage(ctx context.Context, title string) (string, error)

	// SavePage writes page text, reporting created/updated/unchanged/error
	SavePage(ctx context.Context, title, content, summary string) SaveResult

	// PageExists checks whether a page exists
	PageExists(ctx context.Context, title string) (bool, error)

	// FileExists checks whether an uploaded file exists
	FileExists(ctx context.Context, name string) (bool, error)

	// UploadFile uploads a local file under the given wiki filename
	UploadFile(ctx context.Context, path, filename, description, comment string) bool

	// TokensByContentID queries the wiki's indexed lookup for token pages
	// recording the given content id. Best-effort: wikis without the
	// semantic extension return no rows, never an engine-fatal error.
	TokensByContentID(ctx context.Context, contentID string) ([]TokenInfo, error)
}
