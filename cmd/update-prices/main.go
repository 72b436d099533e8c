package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tcg-pricer/internal/app"
	"tcg-pricer/internal/config"
	"tcg-pricer/internal/logger"
	"tcg-pricer/internal/pricing"
	"tcg-pricer/internal/services/pricer"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

type options struct {
	games  []pricing.Game
	date   time.Time
	cardID uint
	limit  int
	dryRun bool
	force  bool
}

func parseFlags(args []string, now time.Time, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("update-prices", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		game   = fs.String("game", "", "game to update: pokemon, onepiece, digimon or all")
		date   = fs.String("date", "", "target date YYYY-MM-DD (default today)")
		cardID = fs.Uint("card-id", 0, "update a single card version")
		limit  = fs.Int("limit", 0, "maximum number of card versions to process")
		dryRun = fs.Bool("dry-run", false, "compute prices without saving them")
		force  = fs.Bool("force", false, "replace prices already recorded for the date")
	)
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts := options{cardID: *cardID, limit: *limit, dryRun: *dryRun, force: *force}
	switch *game {
	case "":
		if opts.cardID == 0 {
			return opts, errors.New("-game is required unless -card-id is given")
		}
	case "all":
		opts.games = pricing.Games
	default:
		g, ok := pricing.ParseGame(*game)
		if !ok {
			return opts, fmt.Errorf("unknown game %q", *game)
		}
		opts.games = []pricing.Game{g}
	}
	if opts.limit < 0 {
		return opts, errors.New("-limit must not be negative")
	}

	y, m, d := now.Date()
	opts.date = time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	if *date != "" {
		t, err := time.ParseInLocation("2006-01-02", *date, now.Location())
		if err != nil {
			return opts, fmt.Errorf("invalid -date %q, expected YYYY-MM-DD", *date)
		}
		opts.date = t
	}
	return opts, nil
}

func main() {
	_ = godotenv.Load()

	opts, err := parseFlags(os.Args[1:], time.Now(), os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Logger())
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to set up logging:", err)
		os.Exit(1)
	}

	a, err := app.Open(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to database")
		os.Exit(1)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, a, opts, log); err != nil {
		log.Error().Err(err).Msg("price update failed")
		a.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app.App, opts options, log zerolog.Logger) error {
	if opts.cardID != 0 && len(opts.games) == 0 {
		item, err := a.Store.GetCatalogItem(ctx, opts.cardID)
		if err != nil {
			return err
		}
		opts.games = []pricing.Game{item.Game}
	}

	for _, g := range opts.games {
		summary, err := a.Aggregator.UpdateGame(ctx, g, opts.date, pricer.RunOptions{
			Force:  opts.force,
			DryRun: opts.dryRun,
			Limit:  opts.limit,
			CardID: opts.cardID,
		})
		if err != nil {
			return fmt.Errorf("%s: %w", g, err)
		}
		printSummary(os.Stdout, summary)
		if summary.Interrupted {
			log.Warn().Str("game", string(g)).Msg("stopped by signal")
			return nil
		}
	}
	return nil
}

func printSummary(w io.Writer, s *pricer.Summary) {
	mode := ""
	if s.DryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(w, "\n%s %s%s\n", s.Game.KoreanName(), s.Date, mode)
	fmt.Fprintf(w, "  total:   %d\n", s.Total)
	fmt.Fprintf(w, "  success: %d (created %d, skipped %d)\n", s.Success, s.Created, s.Skipped)
	fmt.Fprintf(w, "  failed:  %d\n", s.Failed)
	for _, r := range s.Results {
		if !r.Success {
			fmt.Fprintf(w, "    ✗ #%d %s: %s\n", r.CardVersionID, r.Name, r.Reason)
		}
	}
}
