package importer

import (
	"context"

	"go.uber.org/zap"

	"github.com/cryptograss/railbot/internal/domain"
	"github.com/cryptograss/railbot/internal/logger"
	"github.com/cryptograss/railbot/internal/wikitext"
)

// Template names on the bot's wiki config page.
const (
	sourceTemplate      = "Blue Railroad Source"
	leaderboardTemplate = "Blue Railroad Leaderboard"
)

// DefaultBotConfig is used when the config page is missing or defines
// nothing; it mirrors the bot's historical hardwired behavior.
func DefaultBotConfig() domain.BotConfig {
	return domain.BotConfig{
		Sources: []domain.Source{
			{Name: "Blue Railroad", ChainDataKey: "blueRailroads", NetworkID: "10"},
			{Name: "Blue Railroad V2", ChainDataKey: "blueRailroadV2s", NetworkID: "10"},
		},
		Leaderboards: []domain.LeaderboardSpec{
			{Page: "Blue Railroad Leaderboard", Sort: "count"},
		},
	}
}

// ParseBotConfig reads source and leaderboard definitions from config
// page wikitext. Returns false when the page defines no sources, in
// which case the defaults apply.
func ParseBotConfig(text string) (domain.BotConfig, bool) {
	var cfg domain.BotConfig

	for _, tmpl := range wikitext.FindTemplates(text, sourceTemplate) {
		params := wikitext.Params(tmpl.Body)
		if params["chain_data_key"] == "" {
			continue
		}
		cfg.Sources = append(cfg.Sources, domain.Source{
			Name:         params["name"],
			ChainDataKey: params["chain_data_key"],
			NetworkID:    params["network_id"],
			Contract:     params["contract"],
		})
	}

	for _, tmpl := range wikitext.FindTemplates(text, leaderboardTemplate) {
		params := wikitext.Params(tmpl.Body)
		if params["page"] == "" {
			continue
		}
		cfg.Leaderboards = append(cfg.Leaderboards, domain.LeaderboardSpec{
			Page:         params["page"],
			Title:        params["title"],
			Description:  params["description"],
			FilterSongID: params["filter_song_id"],
			FilterOwner:  params["filter_owner"],
			Sort:         params["sort"],
		})
	}

	return cfg, len(cfg.Sources) > 0
}

// loadBotConfig fetches and parses the wiki config page, falling back to
// the defaults when the page is absent or empty.
func (i *Importer) loadBotConfig(ctx context.Context) domain.BotConfig {
	text, err := i.client.GetPage(ctx, i.opts.ConfigPage)
	if err != nil {
		logger.Info("config page unavailable, using defaults",
			zap.String("page", i.opts.ConfigPage), zap.Error(err))
		return DefaultBotConfig()
	}

	cfg, ok := ParseBotConfig(text)
	if !ok {
		logger.Info("config page defines no sources, using defaults",
			zap.String("page", i.opts.ConfigPage))
		return DefaultBotConfig()
	}

	logger.Info("loaded bot config",
		zap.Int("sources", len(cfg.Sources)),
		zap.Int("leaderboards", len(cfg.Leaderboards)),
	)
	return cfg
}
