package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/cryptograss/railbot/internal/contentid"
)

// Token represents a single Blue Railroad token as read from chain data.
// Exactly one of the two field groups is populated: legacy tokens carry
// Date/URI, current tokens carry BlockHeight/VideoHash. Zero means absent
// for the numeric fields; real dates and heights are always positive.
type Token struct {
	TokenID      string
	SourceKey    string
	Owner        string
	OwnerDisplay string
	SongID       string

	// Legacy contract fields
	Date int64
	URI  string

	// Current contract fields
	BlockHeight int64
	VideoHash   string
}

// IsCurrentVersion reports whether the token comes from the current
// contract generation. Presence of a block height is the discriminator.
func (t Token) IsCurrentVersion() bool {
	return t.BlockHeight != 0
}

// Version returns the contract generation tag.
func (t Token) Version() SourceVersion {
	if t.IsCurrentVersion() {
		return SourceCurrent
	}
	return SourceLegacy
}

// ContentID derives the IPFS CID for the token's video. Current tokens
// derive it from the raw video hash, legacy tokens extract it from an
// ipfs:// URI. The second return is false when the token has no video.
func (t Token) ContentID() (string, bool) {
	if t.IsCurrentVersion() {
		return contentid.FromVideoHash(t.VideoHash)
	}
	if id, ok := strings.CutPrefix(t.URI, "ipfs://"); ok && id != "" {
		return id, true
	}
	return "", false
}

// FormattedDate renders the legacy date field as YYYY-MM-DD. The field
// historically held either an 8-digit YYYYMMDD value or a Unix timestamp.
// Returns "" when the date is absent or unrecognized.
func (t Token) FormattedDate() string {
	if t.Date == 0 {
		return ""
	}

	s := fmt.Sprintf("%d", t.Date)

	// 8-digit YYYYMMDD
	if len(s) == 8 && s[0] == '2' {
		return fmt.Sprintf("%s-%s-%s", s[:4], s[4:6], s[6:8])
	}

	// Unix timestamp
	if len(s) >= 10 {
		return time.Unix(t.Date, 0).UTC().Format("2006-01-02")
	}

	return ""
}

// Submission represents a wiki submission page's structured content.
type Submission struct {
	ID           int
	Exercise     string
	Video        string
	BlockHeight  int64
	Status       string
	ContentID    string
	TokenIDs     []int
	Participants []string
}

// IsMinted reports whether the submission has resulted in minted tokens,
// either by explicit status or by recorded token ids.
func (s Submission) IsMinted() bool {
	return strings.EqualFold(s.Status, StatusMinted) || len(s.TokenIDs) > 0
}

// HasContentID reports whether a CID has been recorded for the submission.
func (s Submission) HasContentID() bool {
	return s.ContentID != ""
}

// PageTitle returns the wiki page title for the submission.
func (s Submission) PageTitle() string {
	return SubmissionPageTitle(s.ID)
}

// SubmissionPageTitle returns the wiki page title for a submission id.
func SubmissionPageTitle(id int) string {
	return fmt.Sprintf("%s%d", SubmissionPagePrefix, id)
}

// TokenPageTitle returns the wiki page title for a token id.
func TokenPageTitle(tokenID string) string {
	return TokenPagePrefix + tokenID
}

// OwnerStats accumulates per-owner token statistics for leaderboards.
// NewestDate and OldestDate are 0 until the first dated token is added;
// 0 is never a valid date or block height.
type OwnerStats struct {
	Address       string
	DisplayName   string
	TokenCount    int
	TokenIDs      []string
	TokenVersions map[string]bool
	NewestDate    int64
	OldestDate    int64
}

// NewOwnerStats creates an empty stats record for an owner.
func NewOwnerStats(address, displayName string) *OwnerStats {
	return &OwnerStats{
		Address:       address,
		DisplayName:   displayName,
		TokenVersions: make(map[string]bool),
	}
}

// AddToken records one token for the owner. The date parameter is the
// ranking value (mint date for legacy tokens, block height for current
// ones); 0 means unknown and is excluded from the min/max tracking.
func (s *OwnerStats) AddToken(tokenID string, date int64, current bool) {
	s.TokenCount++
	s.TokenIDs = append(s.TokenIDs, tokenID)
	s.TokenVersions[tokenID] = current

	if date != 0 {
		if date > s.NewestDate {
			s.NewestDate = date
		}
		if s.OldestDate == 0 || date < s.OldestDate {
			s.OldestDate = date
		}
	}
}

// Source names one chain-data dataset to aggregate tokens from.
type Source struct {
	Name         string
	ChainDataKey string
	NetworkID    string
	Contract     string
}

// LeaderboardSpec configures one generated leaderboard page.
type LeaderboardSpec struct {
	Page         string
	Title        string
	Description  string
	FilterSongID string
	FilterOwner  string
	Sort         string // "count", "newest" or "oldest"
}

// BotConfig is the bot configuration as read from its wiki config page.
type BotConfig struct {
	Sources      []Source
	Leaderboards []LeaderboardSpec
}
