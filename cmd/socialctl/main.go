// socialctl is the operator CLI: manage tracked accounts, run collections
// and produce CSV reports against the same database the server uses.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/socialtrack/socialtrack/internal/collector"
	"github.com/socialtrack/socialtrack/internal/db"
	"github.com/socialtrack/socialtrack/internal/models"
	"github.com/socialtrack/socialtrack/internal/report"
	"github.com/socialtrack/socialtrack/internal/stats"
	"github.com/socialtrack/socialtrack/pkg/config"
	"github.com/socialtrack/socialtrack/pkg/logging"
)

const usage = `Usage: socialctl <command> [options]

Commands:
  add         -platform <p> -username <u>   track an account
  remove      -id <n>                       stop tracking an account
  list        [-platform <p>]               list tracked accounts
  collect     -platform <p> -username <u> [-limit <n>]   collect one account now
  collect-all [-platform <p>] [-limit <n>]                collect every tracked account
  report      -type <weekly|posts|summary>  write a CSV report
  summary                                   print per-platform stats
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// The CLI logs quietly unless asked otherwise.
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	database, err := db.New(&cfg.Database, "ERROR")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to migrate database: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	var code int
	switch os.Args[1] {
	case "add":
		code = cmdAdd(ctx, cfg, database, os.Args[2:])
	case "remove":
		code = cmdRemove(ctx, database, os.Args[2:])
	case "list":
		code = cmdList(ctx, database, os.Args[2:])
	case "collect":
		code = cmdCollect(ctx, cfg, database, os.Args[2:])
	case "collect-all":
		code = cmdCollectAll(ctx, cfg, database, os.Args[2:])
	case "report":
		code = cmdReport(ctx, cfg, database, os.Args[2:])
	case "summary":
		code = cmdSummary(ctx, database)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n%s", os.Args[1], usage)
		code = 2
	}
	os.Exit(code)
}

func cmdAdd(ctx context.Context, cfg *config.Config, database *db.DB, args []string) int {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	platform := fs.String("platform", "", "platform tag")
	username := fs.String("username", "", "account username")
	collectNow := fs.Bool("collect", false, "collect immediately after adding")
	fs.Parse(args)

	if !models.ValidPlatform(*platform) || *username == "" {
		fmt.Fprintln(os.Stderr, "add requires -platform (instagram|tiktok|youtube|twitter) and -username")
		return 2
	}

	accounts := db.NewAccountRepository(database)
	account, err := accounts.Upsert(ctx, &models.Account{
		Platform: *platform,
		Username: *username,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to add account: %v\n", err)
		return 1
	}
	fmt.Printf("Tracking [%s] @%s (id %d)\n", account.Platform, account.Username, account.ID)

	if *collectNow {
		return runCollection(ctx, cfg, database, *platform, *username, 0)
	}
	return 0
}

func cmdRemove(ctx context.Context, database *db.DB, args []string) int {
	fs := flag.NewFlagSet("remove", flag.ExitOnError)
	id := fs.Int64("id", 0, "account row id")
	fs.Parse(args)

	if *id <= 0 {
		fmt.Fprintln(os.Stderr, "remove requires -id")
		return 2
	}

	accounts := db.NewAccountRepository(database)
	if err := accounts.Delete(ctx, *id); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to remove account: %v\n", err)
		return 1
	}
	fmt.Printf("Removed account %d and its history\n", *id)
	return 0
}

func cmdList(ctx context.Context, database *db.DB, args []string) int {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	platform := fs.String("platform", "", "filter by platform")
	fs.Parse(args)

	accounts := db.NewAccountRepository(database)
	list, err := accounts.List(ctx, *platform)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list accounts: %v\n", err)
		return 1
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPLATFORM\tUSERNAME\tFOLLOWERS\tPOSTS\tUPDATED")
	for _, a := range list {
		fmt.Fprintf(w, "%d\t%s\t@%s\t%d\t%d\t%s\n",
			a.ID, a.Platform, a.Username, a.FollowerCount, a.PostCount,
			a.UpdatedAt.Format("2006-01-02 15:04"))
	}
	w.Flush()
	return 0
}

func cmdCollect(ctx context.Context, cfg *config.Config, database *db.DB, args []string) int {
	fs := flag.NewFlagSet("collect", flag.ExitOnError)
	platform := fs.String("platform", "", "platform tag")
	username := fs.String("username", "", "account username")
	limit := fs.Int("limit", 0, "max posts to fetch (0 = configured default)")
	fs.Parse(args)

	if !models.ValidPlatform(*platform) || *username == "" {
		fmt.Fprintln(os.Stderr, "collect requires -platform and -username")
		return 2
	}
	return runCollection(ctx, cfg, database, *platform, *username, *limit)
}

func runCollection(ctx context.Context, cfg *config.Config, database *db.DB, platform, username string, postLimit int) int {
	runner := collector.NewRunner(cfg, database, collector.NewRegistry())
	attempt, err := runner.Collect(ctx, platform, username, postLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Collection failed: %v\n", err)
		return 1
	}
	if attempt.Status == collector.StatusFailed {
		fmt.Fprintf(os.Stderr, "Collection failed: %s\n", attempt.Error)
		return 1
	}
	fmt.Printf("Collected [%s] @%s: %d posts (%d skipped)\n",
		platform, username, attempt.PostsCollected, attempt.PostsSkipped)
	return 0
}

func cmdCollectAll(ctx context.Context, cfg *config.Config, database *db.DB, args []string) int {
	fs := flag.NewFlagSet("collect-all", flag.ExitOnError)
	platform := fs.String("platform", "", "restrict the sweep to one platform")
	limit := fs.Int("limit", 0, "max posts to fetch per account (0 = configured default)")
	fs.Parse(args)

	if *platform != "" && !models.ValidPlatform(*platform) {
		fmt.Fprintf(os.Stderr, "Unsupported platform: %s\n", *platform)
		return 2
	}

	runner := collector.NewRunner(cfg, database, collector.NewRegistry())
	attempts := runner.SweepAll(ctx, *platform, *limit)

	failed := 0
	for _, a := range attempts {
		if a.Status == collector.StatusFailed {
			failed++
			fmt.Printf("  [%s] @%s: FAILED (%s)\n", a.Platform, a.Username, a.Error)
			continue
		}
		fmt.Printf("  [%s] @%s: %d posts\n", a.Platform, a.Username, a.PostsCollected)
	}
	fmt.Printf("Sweep finished: %d runs, %d failed\n", len(attempts), failed)
	if failed > 0 {
		return 1
	}
	return 0
}

func cmdReport(ctx context.Context, cfg *config.Config, database *db.DB, args []string) int {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	kind := fs.String("type", "weekly", "report type: weekly, posts or summary")
	platform := fs.String("platform", "", "filter by platform")
	limit := fs.Int("limit", 100, "max posts in the post report")
	fs.Parse(args)

	gen := report.NewGenerator(&cfg.Reports, database)

	var path string
	var err error
	switch *kind {
	case "weekly":
		path, err = gen.Weekly(ctx, *platform)
	case "posts":
		path, err = gen.Posts(ctx, *platform, *limit)
	case "summary":
		path, err = gen.AccountSummary(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown report type: %s\n", *kind)
		return 2
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to generate report: %v\n", err)
		return 1
	}
	fmt.Printf("Report written: %s\n", path)
	return 0
}

func cmdSummary(ctx context.Context, database *db.DB) int {
	engine := stats.NewEngine(database)
	summary, err := engine.Summary(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to compute summary: %v\n", err)
		return 1
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PLATFORM\tACCOUNTS\tPOSTS\tSNAPSHOTS\tFOLLOWERS")
	for _, s := range summary {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n",
			s.Platform, s.Accounts, s.Posts, s.Snapshots, s.Followers)
	}
	w.Flush()

	integrity, err := engine.CheckIntegrity(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to check integrity: %v\n", err)
		return 1
	}
	if integrity.OrphanPosts > 0 || integrity.OrphanPostMetrics > 0 || integrity.OrphanAccountMetrics > 0 {
		fmt.Printf("WARNING: orphans found: %d posts, %d post snapshots, %d account snapshots\n",
			integrity.OrphanPosts, integrity.OrphanPostMetrics, integrity.OrphanAccountMetrics)
		return 1
	}
	return 0
}
