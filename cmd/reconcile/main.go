package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"finrecon/internal/config"
	"finrecon/internal/recon"
	"finrecon/internal/source"
	"finrecon/internal/store"
	"finrecon/internal/table"
)

type runArgs struct {
	Left        string
	Right       string
	RightDriver string
	RightDSN    string
	RightQuery  string
	Sheet       string
	ConfigPath  string
	Tolerance   *float64
	Group       string
	Verbose     bool
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s -left <sheet.xlsx|file.csv> (-right <file> | -right-driver <driver> -right-dsn <dsn> -right-query <sql>)\n", os.Args[0])
		flag.PrintDefaults()
	}
	left := flag.String("left", "", "Spreadsheet-origin source (.xlsx, .csv, .db)")
	right := flag.String("right", "", "Query-origin source file (.csv, .xlsx, .db)")
	rightDriver := flag.String("right-driver", "", "database/sql driver for the right source: sqlite, mysql, postgres")
	rightDSN := flag.String("right-dsn", "", "DSN for -right-driver")
	rightQuery := flag.String("right-query", "", "SQL producing the right rows (sqlite defaults to the first table)")
	sheet := flag.String("sheet", "", "Worksheet name for a workbook left source")
	configPath := flag.String("config", "", "YAML run configuration")
	tolerance := flag.Float64("tolerance", 0, "Numeric tolerance (overrides config)")
	group := flag.String("group", "", "Grouping column for category aggregation (overrides config)")
	outputJSON := flag.String("output-json", "", "Optional path to write JSON report")
	text := flag.Bool("text", false, "Print the human-readable summary instead of JSON")
	storePath := flag.String("store", "", "SQLite run history to append to (overrides config)")
	verbose := flag.Bool("v", false, "Log engine telemetry to stderr")
	flag.Parse()

	args := runArgs{
		Left: *left, Right: *right, RightDriver: *rightDriver, RightDSN: *rightDSN, RightQuery: *rightQuery,
		Sheet: *sheet, ConfigPath: *configPath, Group: *group, Verbose: *verbose,
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "tolerance" {
			args.Tolerance = tolerance
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	cfg, report, err := reconcile(ctx, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconcile error: %v\n", err)
		os.Exit(1)
	}

	if *storePath != "" {
		cfg.StorePath = *storePath
	}
	if cfg.StorePath != "" {
		s, err := store.Open(cfg.StorePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "store error: %v\n", err)
			os.Exit(1)
		}
		id, err := s.SaveRun(ctx, report, args.Left, rightLabel(args))
		s.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "save run error: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Saved run %s to %s\n", id, cfg.StorePath)
	}

	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
		os.Exit(1)
	}

	if *outputJSON != "" {
		if err := os.MkdirAll(filepath.Dir(*outputJSON), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "mkdir error: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*outputJSON, append(payload, '\n'), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "write report error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote JSON report: %s\n", *outputJSON)
		fmt.Printf("Status: %s\n", report.Status)
		fmt.Printf("Mismatch percentage: %.4f\n", report.Summary.MismatchPercentage)
		fmt.Printf("Overall match: %t\n", report.Summary.OverallMatch)
	} else if *text {
		fmt.Print(recon.HumanSummary(report))
	} else {
		fmt.Println(string(payload))
	}
	if !report.OK() {
		os.Exit(1)
	}
}

// reconcile loads config and both sources and runs the engine. Errors are
// I/O or configuration problems; data problems come back in the report.
func reconcile(ctx context.Context, args runArgs) (config.Config, recon.Report, error) {
	cfg, err := config.Load(args.ConfigPath)
	if err != nil {
		return config.Config{}, recon.Report{}, err
	}
	if args.Tolerance != nil {
		cfg.Tolerance = *args.Tolerance
	}
	if args.Group != "" {
		cfg.GroupColumn = args.Group
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, recon.Report{}, err
	}

	if args.Left == "" {
		return config.Config{}, recon.Report{}, errors.New("missing -left")
	}
	left, err := source.Load(args.Left, args.Sheet)
	if err != nil {
		return config.Config{}, recon.Report{}, fmt.Errorf("load left: %w", err)
	}
	right, err := loadRight(ctx, args)
	if err != nil {
		return config.Config{}, recon.Report{}, fmt.Errorf("load right: %w", err)
	}

	logger := zerolog.Nop()
	if args.Verbose {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	engine := recon.New(cfg.Options(), recon.WithLogger(logger))
	return cfg, engine.Run(left, right), nil
}

func loadRight(ctx context.Context, args runArgs) (*table.RowSet, error) {
	switch {
	case args.RightDriver != "":
		if args.RightDSN == "" {
			return nil, errors.New("missing -right-dsn")
		}
		return source.Query(ctx, args.RightDriver, args.RightDSN, args.RightQuery)
	case args.Right != "":
		return source.Load(args.Right, "")
	default:
		return nil, errors.New("missing -right or -right-driver")
	}
}

func rightLabel(args runArgs) string {
	if args.RightDriver != "" {
		return args.RightDriver + ":" + args.RightQuery
	}
	return args.Right
}
