package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/clayton/appintel/internal/appstore"
	"github.com/clayton/appintel/internal/aso"
	"github.com/clayton/appintel/internal/config"
	"github.com/clayton/appintel/internal/database"
	"github.com/clayton/appintel/internal/freshness"
	"github.com/clayton/appintel/internal/llm"
	"github.com/clayton/appintel/internal/metadata"
	"github.com/clayton/appintel/internal/pipeline"
	"github.com/clayton/appintel/internal/report"
	"github.com/clayton/appintel/internal/screenshots"
	"github.com/clayton/appintel/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	country    string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "appintel",
	Short:   "App Store review intelligence",
	Long:    "Appintel aggregates App Store listings and reviews for a keyword and turns them into competitive analyses, ASO recommendations, and screenshot critiques.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// A local .env is optional.
		_ = godotenv.Load()

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		applyFlagOverrides(cfg)
		return nil
	},
}

// applyFlagOverrides layers per-invocation flags over the loaded config.
func applyFlagOverrides(c *config.Config) {
	if country != "" {
		c.AppStore.Country = country
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&country, "country", "", "App Store country code (overrides config)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(asoCmd)
	rootCmd.AddCommand(screenshotsCmd)
	rootCmd.AddCommand(appsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("appintel", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/appintel/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Set OPENROUTER_API_KEY in your environment or a local .env file.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Database: %s\n\n", db.Path())
		fmt.Println("Cache:")
		fmt.Printf("  Keywords: %d\n", stats.Keywords)
		fmt.Printf("  Apps: %d\n", stats.Apps)
		fmt.Printf("  Reviews: %d (%d low-rating, %d high-rating)\n",
			stats.Reviews, stats.LowReviews, stats.HighReviews)
		fmt.Println("\nAnalyses:")
		fmt.Printf("  Review analyses: %d\n", stats.Analyses)
		fmt.Printf("  ASO analyses: %d\n", stats.AsoAnalyses)
		fmt.Printf("  Screenshot analyses: %d\n", stats.ScreenshotAnalyses)
		return nil
	},
}

// --- analyze command ---

var (
	analyzeLimit  int
	analyzeModel  string
	analyzeForce  bool
	analyzeSimple bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [keyword]",
	Short: "Aggregate reviews for a keyword and run the LLM analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAPIKey(); err != nil {
			return err
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		keyword := args[0]
		pipe := pipeline.New(cfg, db)
		outcome, err := pipe.Run(context.Background(), keyword, pipeline.Options{
			Limit:  analyzeLimit,
			Model:  analyzeModel,
			Force:  analyzeForce,
			Simple: analyzeSimple,
		})
		if err != nil {
			if outcome != nil && len(outcome.Apps) > 0 {
				fmt.Printf("Found %d apps for %q but no reviews to analyze.\n", len(outcome.Apps), keyword)
			}
			return err
		}

		if outcome.Cached {
			fmt.Printf("Using cached analysis from %s (run with --force to refresh).\n\n",
				outcome.CachedAt.Format("2006-01-02 15:04"))
		}

		rec, err := db.GetAnalysisByID(outcome.AnalysisID)
		if err != nil {
			return fmt.Errorf("loading analysis: %w", err)
		}
		fmt.Println(report.Markdown(rec, outcome.Apps))
		return nil
	},
}

func init() {
	analyzeCmd.Flags().IntVar(&analyzeLimit, "limit", 10, "Number of search results to analyze")
	analyzeCmd.Flags().StringVar(&analyzeModel, "model", "", "Override the LLM model")
	analyzeCmd.Flags().BoolVar(&analyzeForce, "force", false, "Ignore cached data and re-fetch everything")
	analyzeCmd.Flags().BoolVar(&analyzeSimple, "simple", false, "Low-rating-only analysis (patterns and opportunities)")
}

// --- aso command ---

var (
	asoModel string
	asoForce bool
)

var asoCmd = &cobra.Command{
	Use:   "aso [keyword] [app-id]",
	Short: "Generate ASO recommendations for your app against cached competitors",
	Long:  "Compares your app's metadata against the cached search results for the keyword. Run 'appintel analyze' for the keyword first.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAPIKey(); err != nil {
			return err
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		keyword, appID := args[0], args[1]
		provider := llm.NewOpenRouterProvider(cfg.LLM.BaseURL, cfg.APIKey())
		runner := aso.NewRunner(db,
			aso.NewAnalyzer(provider, cfg.LLM),
			metadata.New(cfg.AppStore),
			freshness.FromConfig(cfg.Freshness))

		outcome, err := runner.Run(context.Background(), keyword, appID, asoModel, asoForce)
		if err != nil {
			return err
		}

		if outcome.Cached {
			fmt.Printf("Using cached ASO analysis from %s (run with --force to refresh).\n\n",
				outcome.CachedAt.Format("2006-01-02 15:04"))
		}
		fmt.Printf("# ASO Recommendations: %s\n\n", outcome.App.Name)
		fmt.Printf("Keyword: %s\n", keyword)
		fmt.Printf("Competitors analyzed: %d\n\n", outcome.Result.CompetitorCount)
		fmt.Println(outcome.Result.LLMAnalysis)
		return nil
	},
}

func init() {
	asoCmd.Flags().StringVar(&asoModel, "model", "", "Override the LLM model")
	asoCmd.Flags().BoolVar(&asoForce, "force", false, "Ignore the cached ASO analysis")
}

// --- screenshots command ---

var (
	screenshotsModel string
	screenshotsForce bool
)

var screenshotsCmd = &cobra.Command{
	Use:   "screenshots [keyword]",
	Short: "Critique the screenshots of every cached app for a keyword",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAPIKey(); err != nil {
			return err
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		provider := llm.NewOpenRouterProvider(cfg.LLM.BaseURL, cfg.APIKey())
		analyzer := screenshots.New(db, appstore.New(cfg.AppStore), provider, cfg)

		outcomes, err := analyzer.RunKeyword(context.Background(), args[0], screenshotsModel, screenshotsForce)
		if err != nil {
			return err
		}

		for _, o := range outcomes {
			fmt.Printf("\n## %s\n\n", o.App.Name)
			if o.Skipped != "" {
				fmt.Printf("Skipped: %s\n", o.Skipped)
				continue
			}
			if o.Cached {
				fmt.Printf("(cached %s)\n\n", o.Analysis.CreatedAt.Format("2006-01-02 15:04"))
			}
			fmt.Printf("Screenshots analyzed: %d\n\n", o.Analysis.ScreenshotCount)
			fmt.Println(o.Analysis.Analysis)
		}
		return nil
	},
}

func init() {
	screenshotsCmd.Flags().StringVar(&screenshotsModel, "model", "", "Override the LLM model")
	screenshotsCmd.Flags().BoolVar(&screenshotsForce, "force", false, "Ignore cached screenshot analyses")
}

// --- apps command ---

var appsCmd = &cobra.Command{
	Use:   "apps [keyword]",
	Short: "List cached apps for a keyword",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		keyword := args[0]
		apps, err := db.GetAppsForKeyword(keyword)
		if err != nil {
			return err
		}
		if len(apps) == 0 {
			fmt.Printf("No cached apps for %q. Run: appintel analyze %q\n", keyword, keyword)
			return nil
		}

		fmt.Printf("Apps cached for %q:\n\n", keyword)
		for _, app := range apps {
			fmt.Printf("%2d. %s [%s]\n", app.SearchRank, app.Name, app.AppID)
			if app.Developer != nil {
				fmt.Printf("      by %s\n", *app.Developer)
			}
			if app.AverageRating != nil {
				count := 0
				if app.RatingCount != nil {
					count = *app.RatingCount
				}
				fmt.Printf("      %.1f stars (%d ratings)\n", *app.AverageRating, count)
			}
			low, err := db.CountLowReviewsForApp(app.ID)
			if err == nil && low > 0 {
				fmt.Printf("      %d low-rating reviews cached\n", low)
			}
		}
		return nil
	},
}

// --- history and show commands ---

var historyCmd = &cobra.Command{
	Use:   "history [keyword]",
	Short: "List stored analyses for a keyword",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		records, err := db.GetAnalysesForKeyword(args[0], 10)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Printf("No analyses stored for %q.\n", args[0])
			return nil
		}

		for _, rec := range records {
			model := "unknown model"
			if rec.LLMModel != nil {
				model = *rec.LLMModel
			}
			fmt.Printf("[%d] %s  %s  %d reviews  %s\n",
				rec.ID,
				rec.CreatedAt.Format("2006-01-02 15:04"),
				rec.Shape,
				rec.TotalReviewsAnalyzed,
				model)
		}
		fmt.Println("\nShow one with: appintel show <id>")
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Print a stored analysis as markdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid analysis ID: %s", args[0])
		}
		rec, err := db.GetAnalysisByID(id)
		if err != nil {
			return err
		}
		if rec == nil {
			return fmt.Errorf("analysis %d not found", id)
		}

		apps, err := db.GetAppsForKeyword(rec.Keyword)
		if err != nil {
			return err
		}
		fmt.Println(report.Markdown(rec, apps))
		return nil
	},
}

// --- report command ---

var (
	reportHTML bool
	reportOut  string
)

var reportCmd = &cobra.Command{
	Use:   "report [keyword]",
	Short: "Export the latest analysis for a keyword",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		keyword := args[0]
		rec, err := db.LatestAnalysis(keyword, time.Time{})
		if err != nil {
			return err
		}
		if rec == nil {
			return fmt.Errorf("no analysis stored for %q; run: appintel analyze %q", keyword, keyword)
		}
		apps, err := db.GetAppsForKeyword(keyword)
		if err != nil {
			return err
		}

		var out []byte
		if reportHTML {
			out, err = report.HTML(rec, apps)
			if err != nil {
				return err
			}
		} else {
			out = []byte(report.Markdown(rec, apps))
		}

		if reportOut == "" {
			fmt.Print(string(out))
			return nil
		}
		if err := os.WriteFile(reportOut, out, 0o644); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		fmt.Printf("Wrote %s\n", reportOut)
		return nil
	},
}

func init() {
	reportCmd.Flags().BoolVar(&reportHTML, "html", false, "Render HTML instead of markdown")
	reportCmd.Flags().StringVarP(&reportOut, "output", "o", "", "Write to a file instead of stdout")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web UI for browsing analyses",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Printf("Starting server at http://localhost:%d\n", servePort)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, servePort)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

func requireAPIKey() error {
	if strings.TrimSpace(cfg.APIKey()) == "" {
		return fmt.Errorf("%s is not set; export it or add it to a .env file", cfg.LLM.APIKeyEnv)
	}
	return nil
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.Open(filepath.Join(dataDir, "appintel.db"))
}
