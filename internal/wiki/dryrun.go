package wiki

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cryptograss/railbot/internal/domain"
	"github.com/cryptograss/railbot/internal/logger"
	"github.com/cryptograss/railbot/internal/wikitext"
)

// SavedPage records one would-be save captured by the dry-run client.
type SavedPage struct {
	Title   string
	Content string
	Summary string
}

// DryRun is a Client that never writes. It can be seeded with page text
// and content-id lookup rows, and optionally reads through to a live
// client for pages it has no seed for. It backs both the --dry-run mode
// and package tests.
type DryRun struct {
	Saved    []SavedPage
	Uploaded []string

	pages     map[string]string
	cidTokens map[string][]TokenInfo
	live      Client
	pageCache map[string]*string
}

// DryRunOption configures a DryRun client.
type DryRunOption func(*DryRun)

// WithPages seeds the client with existing page text.
func WithPages(pages map[string]string) DryRunOption {
	return func(d *DryRun) {
		for title, text := range pages {
			d.pages[title] = text
		}
	}
}

// WithCIDTokens seeds the content-id lookup.
func WithCIDTokens(rows map[string][]TokenInfo) DryRunOption {
	return func(d *DryRun) { d.cidTokens = rows }
}

// WithReadThrough reads unseeded pages from a live client, cached.
func WithReadThrough(live Client) DryRunOption {
	return func(d *DryRun) { d.live = live }
}

// NewDryRun creates a dry-run client.
func NewDryRun(opts ...DryRunOption) *DryRun {
	d := &DryRun{
		pages:     make(map[string]string),
		cidTokens: make(map[string][]TokenInfo),
		pageCache: make(map[string]*string),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// GetPage returns seeded text, falling back to the live client when
// read-through is configured.
func (d *DryRun) GetPage(ctx context.Context, title string) (string, error) {
	if text, ok := d.pages[title]; ok {
		return text, nil
	}

	if d.live != nil {
		if cached, ok := d.pageCache[title]; ok {
			if cached == nil {
				return "", fmt.Errorf("%w: %s", domain.ErrPageNotFound, title)
			}
			return *cached, nil
		}
		text, err := d.live.GetPage(ctx, title)
		if err != nil {
			if isNotFound(err) {
				d.pageCache[title] = nil
			}
			return "", err
		}
		d.pageCache[title] = &text
		return text, nil
	}

	return "", fmt.Errorf("%w: %s", domain.ErrPageNotFound, title)
}

// SavePage records the save without performing it.
func (d *DryRun) SavePage(ctx context.Context, title, content, summary string) SaveResult {
	d.Saved = append(d.Saved, SavedPage{Title: title, Content: content, Summary: summary})

	current, err := d.GetPage(ctx, title)
	existed := err == nil

	if existed && current == content {
		return UnchangedResult(title, "content identical (dry run)")
	}

	var changedFields []string
	action := ActionCreated
	if existed {
		action = ActionUpdated
		changedFields = wikitext.DiffFields(current, content)
	}

	logger.Debug("dry-run save",
		zap.String("title", title),
		zap.String("action", string(action)),
		zap.Strings("changed_fields", changedFields),
	)
	return SaveResult{
		PageTitle:     title,
		Action:        action,
		Message:       fmt.Sprintf("%s (dry run)", action),
		ChangedFields: changedFields,
	}
}

// PageExists checks seeded pages, then the live client.
func (d *DryRun) PageExists(ctx context.Context, title string) (bool, error) {
	if _, ok := d.pages[title]; ok {
		return true, nil
	}
	if d.live != nil {
		return d.live.PageExists(ctx, title)
	}
	return false, nil
}

// FileExists checks recorded uploads and seeded pages, then the live client.
func (d *DryRun) FileExists(ctx context.Context, name string) (bool, error) {
	for _, uploaded := range d.Uploaded {
		if uploaded == name {
			return true, nil
		}
	}
	return d.PageExists(ctx, "File:"+name)
}

// UploadFile records the upload without performing it.
func (d *DryRun) UploadFile(ctx context.Context, path, filename, description, comment string) bool {
	d.Uploaded = append(d.Uploaded, filename)
	logger.Debug("dry-run upload", zap.String("filename", filename), zap.String("path", path))
	return true
}

// TokensByContentID answers from the seeded lookup, then the live client.
func (d *DryRun) TokensByContentID(ctx context.Context, contentID string) ([]TokenInfo, error) {
	if rows, ok := d.cidTokens[contentID]; ok {
		return rows, nil
	}
	if d.live != nil {
		return d.live.TokensByContentID(ctx, contentID)
	}
	return nil, nil
}
