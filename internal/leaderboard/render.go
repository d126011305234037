package leaderboard

import (
	"fmt"
	"strings"

	"github.com/cryptograss/railbot/internal/domain"
)

// recentVideoLimit caps the recent-workouts gallery.
const recentVideoLimit = 10

// exerciseNames maps song ids to the exercise each song scores.
var exerciseNames = map[string]string{
	"5":  "Squats ([[Blue Railroad Train]])",
	"6":  "Pushups ([[Nine Pound Hammer]])",
	"7":  "Squats ([[Blue Railroad Train]]) (legacy)",
	"10": "Army Crawls ([[Ginseng Sullivan]])",
}

// Render produces the full wikitext for a leaderboard page.
func Render(tokens map[string]domain.Token, spec domain.LeaderboardSpec, burnAddress, ipfsGateway string) string {
	filtered := Filter(tokens, spec.FilterSongID, spec.FilterOwner, burnAddress, true)
	stats := Stats(filtered, burnAddress)
	order := SortOwners(stats, spec.Sort)

	title := spec.Title
	if title == "" {
		title = spec.Page
	}

	var b strings.Builder
	line := func(format string, args ...interface{}) {
		fmt.Fprintf(&b, format+"\n", args...)
	}

	line("'''%s''' tracks ownership of [[Blue Railroad]] NFT tokens.", title)

	if spec.Description != "" {
		line("")
		line("%s", spec.Description)
	}

	if spec.FilterSongID != "" {
		exercise, ok := exerciseNames[spec.FilterSongID]
		if !ok {
			exercise = fmt.Sprintf("Exercise ID %s", spec.FilterSongID)
		}
		line("")
		line("'''Exercise:''' %s", exercise)
	}

	line("")
	line("''This page is automatically generated. See [[PickiPedia:BlueRailroadConfig|bot configuration]] to modify.''")
	line("")
	line("== Statistics ==")
	line("* '''Total Tokens:''' %d", len(filtered))
	line("* '''Total Holders:''' %d", len(stats))
	line("")
	line("== Leaderboard ==")
	line(`{| class="wikitable sortable"`)
	line("! Rank !! Holder !! Tokens !! Token IDs")

	for rank, address := range order {
		owner := stats[address]

		var links []string
		for _, tokenID := range sortTokenIDs(owner.TokenIDs) {
			version := "V1"
			if owner.TokenVersions[tokenID] {
				version = "V2"
			}
			links = append(links, fmt.Sprintf("[[Blue Railroad Token %s|#%s]] (%s)", tokenID, tokenID, version))
		}

		line("|-")
		line("| %d || %s || %d || %s", rank+1, owner.DisplayName, owner.TokenCount, strings.Join(links, ", "))
	}

	line("|}")

	gallery := RecentWithVideo(filtered, recentVideoLimit)
	if len(gallery) > 0 {
		line("")
		line("== Recent Workouts ==")
		line("")
		for _, token := range gallery {
			cid, _ := token.ContentID()
			line("=== [[Blue Railroad Token %s|Token #%s]] ===", token.TokenID, token.TokenID)
			line("'''%s'''", token.OwnerDisplay)
			line("")
			line("{{#ev:videolink|%s/ipfs/%s|320}}", strings.TrimRight(ipfsGateway, "/"), cid)
			line("")
		}
	}

	line("[[Category:Blue Railroad]]")
	b.WriteString("[[Category:Leaderboards]]")

	return b.String()
}
