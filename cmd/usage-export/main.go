package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"

	"github.com/hieuminhle/cdc-weltwissen/internal/config"
	"github.com/hieuminhle/cdc-weltwissen/internal/logger"
	"github.com/hieuminhle/cdc-weltwissen/internal/usage"
)

// exportRow is the parquet layout of one usage record
type exportRow struct {
	SessionID      string `parquet:"session_id"`
	OIDHashed      string `parquet:"oid_hashed"`
	ChatType       string `parquet:"chat_type"`
	Region         string `parquet:"region"`
	PromptTokens   int32  `parquet:"prompt_tokens"`
	ResponseTokens int32  `parquet:"response_tokens"`
	ElapsedMS      int64  `parquet:"elapsed_ms"`
	CreatedAt      int64  `parquet:"created_at_unix"`
}

func main() {
	var (
		configPath = flag.String("config", "", "Configuration file path")
		fromDate   = flag.String("from", "", "Start date (inclusive), format 2006-01-02")
		toDate     = flag.String("to", "", "End date (exclusive), format 2006-01-02")
		outputFile = flag.String("output", "usage.parquet", "Output Parquet file")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	from, to, err := parseWindow(*fromDate, *toDate)
	if err != nil {
		log.Fatal("Invalid export window", zap.Error(err))
	}

	store, err := usage.NewStore(cfg.Usage, log.WithComponent("usage"))
	if err != nil {
		log.Fatal("Failed to open usage store", zap.Error(err))
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	records, err := store.Range(ctx, from, to)
	if err != nil {
		log.Fatal("Failed to read usage records", zap.Error(err))
	}

	if err := writeParquet(*outputFile, records); err != nil {
		log.Fatal("Failed to write export", zap.Error(err))
	}

	log.Info("Usage export completed",
		zap.String("output", *outputFile),
		zap.Int("records", len(records)),
		zap.Time("from", from),
		zap.Time("to", to),
	)
}

// parseWindow resolves the export window. With no flags it covers the
// previous calendar day.
func parseWindow(fromDate, toDate string) (time.Time, time.Time, error) {
	if fromDate == "" && toDate == "" {
		to := time.Now().UTC().Truncate(24 * time.Hour)
		return to.Add(-24 * time.Hour), to, nil
	}

	from, err := time.Parse("2006-01-02", fromDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid -from date: %w", err)
	}
	to, err := time.Parse("2006-01-02", toDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid -to date: %w", err)
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("-to must be after -from")
	}
	return from, to, nil
}

func writeParquet(path string, records []usage.Record) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	writer := parquet.NewWriter(file)

	for _, rec := range records {
		row := exportRow{
			SessionID:      rec.SessionID,
			OIDHashed:      rec.OIDHashed,
			ChatType:       rec.ChatType,
			Region:         rec.Region,
			PromptTokens:   int32(rec.PromptTokens),
			ResponseTokens: int32(rec.ResponseTokens),
			ElapsedMS:      rec.ElapsedMS,
			CreatedAt:      rec.CreatedAt.Unix(),
		}
		if err := writer.Write(&row); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize Parquet file: %w", err)
	}

	return nil
}
