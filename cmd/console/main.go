package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rxtech-lab/argo-console/internal/config"
	"github.com/rxtech-lab/argo-console/internal/dataset"
	"github.com/rxtech-lab/argo-console/internal/logger"
	"github.com/rxtech-lab/argo-console/internal/logtail"
	"github.com/rxtech-lab/argo-console/internal/session"
	"github.com/rxtech-lab/argo-console/internal/stream"
	"github.com/rxtech-lab/argo-console/internal/types"
	"github.com/rxtech-lab/argo-console/internal/version"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
)

// loadConfig reads the config file when given and applies flag overrides
// on top of it.
func loadConfig(cmd *cli.Command) (config.Config, error) {
	cfg := config.Default()

	if path := cmd.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.Config{}, err
		}

		cfg = loaded
	}

	if server := cmd.String("server"); server != "" {
		cfg.Server.BaseURL = server
	}

	if symbol := cmd.String("symbol"); symbol != "" {
		cfg.Run.Symbol = symbol
	}

	if start := cmd.String("start"); start != "" {
		cfg.Run.StartDate = start
	}

	if end := cmd.String("end"); end != "" {
		cfg.Run.EndDate = end
	}

	if strategy := cmd.String("strategy"); strategy != "" {
		cfg.Run.StrategyID = strategy
	}

	if cash := cmd.Int("cash"); cash != 0 {
		cfg.Run.InitialCash = cash
	}

	if timeframe := cmd.String("timeframe"); timeframe != "" {
		cfg.Chart.Timeframe = timeframe
	}

	return cfg, nil
}

// runAction starts a backtest run and drives the interactive dashboard.
func runAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Run.Validate(); err != nil {
		return err
	}

	logg, err := logger.NewFileLogger("argo-console.log")
	if err != nil {
		return err
	}
	defer func() { _ = logg.Sync() }()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	datasetClient := dataset.NewClient(cfg.Server.BaseURL, logg)
	datasetClient.SetLookback(cfg.Chart.Lookback)

	chart := newChartStatus()
	controller := session.NewController(datasetClient, stream.NewClient(cfg.Server.BaseURL, logg), chart, logg)
	defer controller.Close()

	tail := logtail.NewTailWithCapacity(logg, cfg.Log.TailCapacity)
	go func() { _ = tail.Follow(runCtx, cfg.Server.BaseURL) }()
	defer tail.Close()

	model := NewModel(Deps{
		Config:     cfg,
		Controller: controller,
		Dataset:    datasetClient,
		Tail:       tail,
		Chart:      chart,
		Ctx:        runCtx,
		Cancel:     cancel,
	})

	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("dashboard failed: %w", err)
	}

	return nil
}

// prepareAction checks dataset availability and downloads what is missing.
func prepareAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Run.Validate(); err != nil {
		return err
	}

	logg, err := logger.NewLogger()
	if err != nil {
		return err
	}

	client := dataset.NewClient(cfg.Server.BaseURL, logg)

	exists, err := client.CheckData(ctx, cfg.Run.Symbol, cfg.Run.StartDate, cfg.Run.EndDate)
	if err != nil {
		return err
	}

	if exists {
		fmt.Printf("Data for %s (%s ~ %s) is already available.\n", cfg.Run.Symbol, cfg.Run.StartDate, cfg.Run.EndDate)
		return nil
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(fmt.Sprintf("Downloading %s", cfg.Run.Symbol)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(100*time.Millisecond),
	)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-time.After(100 * time.Millisecond):
				_ = bar.Add(1)
			}
		}
	}()

	count, err := client.Download(ctx, cfg.Run.Symbol, cfg.Run.StartDate, cfg.Run.EndDate)
	close(done)
	_ = bar.Finish()
	fmt.Println()

	if err != nil {
		return err
	}

	fmt.Printf("Downloaded %d rows for %s.\n", count, cfg.Run.Symbol)

	return nil
}

// exportAction downloads the server's log file.
func exportAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logg, err := logger.NewLogger()
	if err != nil {
		return err
	}

	dir := cmd.String("out")
	if dir == "" {
		dir = cfg.ExportDir
	}

	client := dataset.NewClient(cfg.Server.BaseURL, logg)

	path, err := client.ExportLogs(ctx, dir)
	if err != nil {
		return err
	}

	fmt.Printf("Exported server logs to %s\n", path)

	return nil
}

// schemaAction prints the JSON schema of the config file or the run
// request, for editor integration.
func schemaAction(_ context.Context, cmd *cli.Command) error {
	var (
		schema string
		err    error
	)

	switch target := cmd.String("type"); target {
	case "config":
		cfg := config.Default()
		schema, err = cfg.GenerateSchemaJSON()
	case "run":
		runCfg := types.RunConfig{}
		schema, err = runCfg.GenerateSchemaJSON()
	default:
		return fmt.Errorf("unknown schema type %q, expected config or run", target)
	}

	if err != nil {
		return err
	}

	fmt.Println(schema)

	return nil
}

// versionAction prints the console version and optionally checks server
// compatibility.
func versionAction(_ context.Context, cmd *cli.Command) error {
	fmt.Printf("argo-console %s\n", version.GetVersion())

	if serverVersion := cmd.String("check"); serverVersion != "" {
		if err := version.CheckServerCompatibility(version.GetVersion(), serverVersion); err != nil {
			return err
		}

		fmt.Printf("Compatible with server %s.\n", serverVersion)
	}

	return nil
}

func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"f"},
			Usage:   "Path to the console config file",
		},
		&cli.StringFlag{
			Name:  "server",
			Usage: "Backtest server base URL",
		},
		&cli.StringFlag{
			Name:    "symbol",
			Aliases: []string{"s"},
			Usage:   "Instrument code to backtest",
		},
		&cli.StringFlag{
			Name:  "start",
			Usage: "Backtest start date in `YYYYMMDD` format",
		},
		&cli.StringFlag{
			Name:  "end",
			Usage: "Backtest end date in `YYYYMMDD` format",
		},
		&cli.StringFlag{
			Name:  "strategy",
			Usage: "Identifier of the registered strategy",
		},
		&cli.IntFlag{
			Name:  "cash",
			Usage: "Initial cash for the simulated portfolio",
		},
		&cli.StringFlag{
			Name:  "timeframe",
			Usage: "Chart timeframe (D or an intraday interval such as 15m)",
		},
	}
}

func main() {
	cmd := &cli.Command{
		Name:  "argo-console",
		Usage: "Interactive console for streaming backtest runs",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run a backtest and stream it into the dashboard",
				Flags:  runFlags(),
				Action: runAction,
			},
			{
				Name:   "prepare",
				Usage:  "Check and download the dataset for a run",
				Flags:  runFlags(),
				Action: prepareAction,
			},
			{
				Name:  "export",
				Usage: "Download the server's log file",
				Flags: append(runFlags(), &cli.StringFlag{
					Name:    "out",
					Aliases: []string{"o"},
					Usage:   "Directory to write the export into",
				}),
				Action: exportAction,
			},
			{
				Name:  "schema",
				Usage: "Print the JSON schema for config files",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "type",
						Usage: "Schema to print: config or run",
						Value: "config",
					},
				},
				Action: schemaAction,
			},
			{
				Name:  "version",
				Usage: "Print the console version",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "check",
						Usage: "Server version to check compatibility against",
					},
				},
				Action: versionAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
