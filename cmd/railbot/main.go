// Command railbot reconciles Blue Railroad token mints with their wiki
// pages: token pages, submission pages and leaderboards.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cryptograss/railbot/internal/adapter"
	"github.com/cryptograss/railbot/internal/config"
	"github.com/cryptograss/railbot/internal/importer"
	"github.com/cryptograss/railbot/internal/logger"
	"github.com/cryptograss/railbot/internal/submission"
	"github.com/cryptograss/railbot/internal/thumbnail"
	"github.com/cryptograss/railbot/internal/wiki"
)

var (
	flagConfigFile string
	flagEnvPath    string
	flagWikiURL    string
	flagUsername   string
	flagPassword   string
	flagDryRun     bool
	flagVerbose    bool

	cfg *config.Config
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "railbot",
		Short:         "Blue Railroad wiki reconciliation bot",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(flagConfigFile, flagEnvPath)
			if err != nil {
				return err
			}
			if flagWikiURL != "" {
				cfg.Wiki.URL = flagWikiURL
			}
			if flagUsername != "" {
				cfg.Wiki.Username = flagUsername
			}
			if flagPassword != "" {
				cfg.Wiki.Password = flagPassword
			}

			if err := logger.Initialize(logger.Config{
				Debug:     cfg.Debug || flagVerbose,
				SentryDSN: cfg.SentryDSN,
				Tags:      map[string]string{"service": "railbot"},
			}); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Flush(2 * time.Second)
		},
	}

	root.PersistentFlags().StringVar(&flagConfigFile, "config", "", "path to configuration file")
	root.PersistentFlags().StringVar(&flagEnvPath, "env", "config/", "path to environment files")
	root.PersistentFlags().StringVar(&flagWikiURL, "wiki-url", "", "wiki site URL (overrides config)")
	root.PersistentFlags().StringVar(&flagUsername, "username", "", "wiki bot username (overrides config)")
	root.PersistentFlags().StringVar(&flagPassword, "password", "", "wiki bot password (overrides config)")
	root.PersistentFlags().BoolVar(&flagDryRun, "dry-run", false, "show what would be done without making changes")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable verbose output")

	root.AddCommand(newImportCmd(), newUpdateSubmissionCmd(), newMarkMintedCmd())
	return root
}

// newWikiClient builds the record store client, dry-run reads live pages
// anonymously but records writes instead of performing them.
func newWikiClient(ctx context.Context) (wiki.Client, error) {
	if flagDryRun {
		fmt.Println("DRY RUN MODE - no changes will be made")
		live, err := wiki.NewReadOnlyClient(cfg.Wiki.URL)
		if err != nil {
			return nil, err
		}
		return wiki.NewDryRun(wiki.WithReadThrough(live)), nil
	}

	if cfg.Wiki.Username == "" || cfg.Wiki.Password == "" {
		return nil, fmt.Errorf("--username and --password (or config) required unless --dry-run")
	}
	return wiki.NewAPIClient(ctx, cfg.Wiki.URL, cfg.Wiki.Username, cfg.Wiki.Password)
}

func newImportCmd() *cobra.Command {
	var (
		chainDataPath string
		configPage    string
		noThumbnails  bool
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import tokens from chain data to the wiki",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			fs := adapter.NewFileSystem()
			if _, err := fs.Stat(chainDataPath); err != nil {
				return fmt.Errorf("chain data file not found: %s", chainDataPath)
			}

			client, err := newWikiClient(ctx)
			if err != nil {
				return err
			}

			thumbnails := !noThumbnails && cfg.Import.Thumbnails

			var thumbs *thumbnail.Generator
			if thumbnails {
				thumbs = thumbnail.NewGenerator(
					adapter.NewHTTPClient(60*time.Second),
					fs,
					adapter.NewRunner(),
					cfg.IPFS.Gateways,
				)
			}

			if configPage == "" {
				configPage = cfg.Wiki.ConfigPage
			}

			imp := importer.New(client, fs, thumbs, importer.Options{
				ChainDataPath:   chainDataPath,
				ConfigPage:      configPage,
				BurnAddress:     cfg.Import.BurnAddress,
				MaxSubmissionID: cfg.Import.MaxSubmissionID,
				Thumbnails:      thumbnails,
				IPFSGateways:    cfg.IPFS.Gateways,
			})

			results, err := imp.Run(ctx)
			if err != nil {
				return err
			}

			printSummary(results)
			if errs := results.Errors(); len(errs) > 0 {
				fmt.Println("\nErrors:")
				for _, e := range errs {
					fmt.Println("  -", e)
				}
				return fmt.Errorf("%d page(s) failed", len(errs))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&chainDataPath, "chain-data", "", "path to chainData.json file")
	cmd.Flags().StringVar(&configPage, "config-page", "", "wiki page containing bot configuration")
	cmd.Flags().BoolVar(&noThumbnails, "no-thumbnails", false, "skip thumbnail generation and upload")
	_ = cmd.MarkFlagRequired("chain-data")
	return cmd
}

func printSummary(results importer.Results) {
	fmt.Println()
	fmt.Println("IMPORT COMPLETE")
	for _, group := range []struct {
		name    string
		results []wiki.SaveResult
	}{
		{"Token pages", results.TokenPages},
		{"Submission pages", results.SubmissionPages},
		{"Leaderboard pages", results.LeaderboardPages},
	} {
		fmt.Printf("%-18s %d created, %d updated, %d unchanged, %d errors\n",
			group.name+":",
			importer.Count(group.results, wiki.ActionCreated),
			importer.Count(group.results, wiki.ActionUpdated),
			importer.Count(group.results, wiki.ActionUnchanged),
			importer.Count(group.results, wiki.ActionError),
		)
	}
}

func newUpdateSubmissionCmd() *cobra.Command {
	var (
		id  int
		cid string
	)

	cmd := &cobra.Command{
		Use:   "update-submission",
		Short: "Record a submission's IPFS CID after pinning",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newWikiClient(cmd.Context())
			if err != nil {
				return err
			}

			result := submission.UpdateCID(cmd.Context(), client, id, cid)
			return reportResult(result)
		},
	}

	cmd.Flags().IntVar(&id, "id", 0, "submission id")
	cmd.Flags().StringVar(&cid, "cid", "", "IPFS CID to record")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("cid")
	return cmd
}

func newMarkMintedCmd() *cobra.Command {
	var (
		id      int
		wallet  string
		tokenID int
	)

	cmd := &cobra.Command{
		Use:   "mark-minted",
		Short: "Mark a submission as minted with its token id",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newWikiClient(cmd.Context())
			if err != nil {
				return err
			}

			result := submission.MarkMinted(cmd.Context(), client, id, wallet, tokenID)
			return reportResult(result)
		},
	}

	cmd.Flags().IntVar(&id, "id", 0, "submission id")
	cmd.Flags().StringVar(&wallet, "wallet", "", "wallet address that received the token")
	cmd.Flags().IntVar(&tokenID, "token-id", 0, "minted token id")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("wallet")
	_ = cmd.MarkFlagRequired("token-id")
	return cmd
}

func reportResult(result wiki.SaveResult) error {
	switch result.Action {
	case wiki.ActionError:
		return fmt.Errorf("%s: %s", result.PageTitle, result.Message)
	case wiki.ActionUnchanged:
		fmt.Printf("No change needed: %s\n", result.PageTitle)
	default:
		fmt.Printf("%s: %s\n", result.Action, result.PageTitle)
	}
	logger.Debug("command result", zap.String("action", string(result.Action)))
	return nil
}
