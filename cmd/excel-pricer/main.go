package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"tcg-pricer/internal/app"
	"tcg-pricer/internal/config"
	"tcg-pricer/internal/logger"

	"github.com/joho/godotenv"
)

var (
	in  = flag.String("in", "", "workbook to reprice (.xlsx)")
	out = flag.String("out", "", "output path (default: processed_<in>)")
)

// outputPath places the processed file next to the input when out is empty.
func outputPath(in, out string) string {
	if out != "" {
		return out
	}
	return filepath.Join(filepath.Dir(in), "processed_"+filepath.Base(in))
}

func main() {
	flag.Parse()
	_ = godotenv.Load()

	if *in == "" || !strings.EqualFold(filepath.Ext(*in), ".xlsx") {
		fmt.Fprintln(os.Stderr, "usage: excel-pricer -in prices.xlsx [-out result.xlsx]")
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Workbook repricing searches live and never touches stored prices.
	a := app.New(cfg, nil, log)

	src, err := os.Open(*in)
	if err != nil {
		log.Fatal().Err(err).Msg("open input")
	}
	f, report, err := a.Sheets.Process(ctx, src)
	src.Close()
	if err != nil {
		log.Fatal().Err(err).Str("file", *in).Msg("process workbook")
	}
	defer f.Close()

	dst := outputPath(*in, *out)
	if err := f.SaveAs(dst); err != nil {
		log.Fatal().Err(err).Str("file", dst).Msg("save workbook")
	}
	log.Info().
		Str("file", dst).
		Int("rows", report.Rows).
		Int("changed", report.Changed).
		Int("unchanged", report.Unchanged).
		Msg("workbook saved")
}
