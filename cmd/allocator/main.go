package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/iwvelando/allocator/internal/config"
	"github.com/iwvelando/allocator/internal/market"
	"github.com/iwvelando/allocator/internal/optimizer"
	"github.com/iwvelando/allocator/internal/settings"
	"github.com/iwvelando/allocator/pkg/constants"
	"github.com/iwvelando/allocator/pkg/output"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// initializeLogger creates a zap logger based on settings and CLI override
func initializeLogger(loggingConfig settings.LoggingConfig, logLevelOverride string) (*zap.Logger, error) {
	// Determine log level (CLI override takes precedence)
	level := loggingConfig.Level
	if logLevelOverride != "" {
		level = logLevelOverride
	}
	if level == "" {
		level = "warn" // Keep the console clean unless asked otherwise
	}

	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn", "warning":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	format := loggingConfig.Format
	if format == "" {
		format = "console"
	}

	var conf zap.Config
	switch format {
	case "console":
		conf = zap.NewDevelopmentConfig()
		conf.Level = zap.NewAtomicLevelAt(zapLevel)
	case "json":
		conf = zap.NewProductionConfig()
		conf.Level = zap.NewAtomicLevelAt(zapLevel)
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}

	if loggingConfig.OutputFile != "" {
		if dir := filepath.Dir(loggingConfig.OutputFile); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create log directory %s: %v", dir, err)
			}
		}

		if file, err := os.OpenFile(loggingConfig.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %v", loggingConfig.OutputFile, err)
		} else {
			_ = file.Close()
		}

		conf.OutputPaths = []string{loggingConfig.OutputFile}
		conf.ErrorOutputPaths = []string{loggingConfig.OutputFile}
	}

	return conf.Build()
}

func newHTTPClient(proxy string, conf settings.HTTPConfig) (*http.Client, error) {
	client := &http.Client{Timeout: time.Duration(conf.TimeoutSeconds) * time.Second}
	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy %q: %w", proxy, err)
		}
		client.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}
	return client, nil
}

// progressBar renders optimizer progress on one console line, throttled so
// that branch-and-bound node churn does not flood the terminal.
type progressBar struct {
	lastProgress float64
	lastRender   time.Time
	maxLength    int
}

func (b *progressBar) status(iteration uint, nodes int, progress float64) bool {
	now := time.Now()
	if now.Sub(b.lastRender) <= 100*time.Millisecond && progress-b.lastProgress <= 0.5 {
		return true
	}

	const barSize = 20
	var sb strings.Builder
	fmt.Fprintf(&sb, "Iteration: %d      Nodes: %4d      Iteration progress: [", iteration, nodes)
	for i := 0; i < barSize; i++ {
		if float64(i) < barSize*progress {
			sb.WriteByte('#')
		} else {
			sb.WriteByte('.')
		}
	}
	fmt.Fprintf(&sb, "] %d%%", int(progress*100))

	line := sb.String()
	for len(line) < b.maxLength {
		line += " "
	}
	b.maxLength = len(line)

	fmt.Printf("%s\r", line)

	b.lastProgress = progress
	b.lastRender = now
	return true
}

func (b *progressBar) finish() {
	fmt.Println(strings.Repeat(" ", b.maxLength))
}

func buildRows(alloc *config.Allocation, provider market.Provider, opt *optimizer.Optimizer, haveAllAsks bool) []output.Row {
	rows := make([]output.Row, 0, len(alloc.Assets)+1)

	for _, asset := range alloc.Assets {
		res, _ := opt.Result(asset.Ticker)

		row := output.Row{
			Ticker:         res.Ticker,
			Bid:            res.Bid,
			Ask:            res.Ask,
			Have:           res.Have,
			Result:         res.Result,
			Change:         res.Change,
			Commission:     res.Commission,
			InPercents:     res.InPercents,
			Percents:       res.Percents,
			SourcePercents: res.SourcePercents,

			Target:           asset.Target,
			TargetInPercents: asset.TargetInPercents,
			TargetSet:        true,

			CanBuy:  asset.CanBuy,
			CanSell: asset.CanSell,
		}

		ask, ok := provider.Price(asset.Ticker, market.Ask)
		row.AskApproximated = !haveAllAsks && (!ok || ask != res.Ask)

		if iopv, ok := provider.Price(asset.Ticker, market.IOPV); ok {
			if last, ok := provider.Price(asset.Ticker, market.Last); ok {
				row.IOPVPremium = iopv - last
				row.IOPVValid = true
			}
		}

		rows = append(rows, row)
	}

	cash := opt.CashResult()
	rows = append(rows, output.Row{
		IsCash:           true,
		Bid:              cash.Bid,
		Ask:              cash.Ask,
		Have:             cash.Have,
		Result:           cash.Result,
		Change:           cash.Change,
		InPercents:       cash.InPercents,
		Percents:         cash.Percents,
		SourcePercents:   cash.SourcePercents,
		Target:           alloc.CashTarget,
		TargetInPercents: alloc.CashTargetInPercents,
		TargetSet:        alloc.CashTargetSet,
	})

	return rows
}

func usage() {
	fmt.Println("Usage:")
	fmt.Printf("  %s <config> [<proxy>]\n", os.Args[0])
	fmt.Println()
	fmt.Println("Flags:")
	flag.PrintDefaults()
}

func main() {
	os.Exit(run())
}

func run() int {
	var showVersion, showHelp bool
	flag.BoolVar(&showVersion, "v", false, "print the version and exit")
	flag.BoolVar(&showVersion, "version", false, "print the version and exit")
	flag.BoolVar(&showHelp, "h", false, "print usage and exit")
	flag.BoolVar(&showHelp, "help", false, "print usage and exit")
	settingsPath := flag.String("settings", "", "path to optional application settings file")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	flag.Usage = usage
	flag.Parse()

	if showVersion || showHelp {
		fmt.Printf("Allocator version %s\n", constants.Version)
		if showHelp {
			fmt.Println()
			usage()
		}
		return 0
	}

	args := flag.Args()
	if len(args) == 0 {
		fmt.Println("Error: Config file was not specified")
		return 1
	}
	if len(args) > 2 {
		fmt.Printf("Error: Unexpected argument: '%s'\n", args[2])
		return 1
	}
	configPath := args[0]
	proxy := ""
	if len(args) == 2 {
		proxy = args[1]
	}

	conf, err := settings.Load(*settingsPath)
	if err != nil {
		fmt.Printf("Error: Failed to load settings '%s': %v\n", *settingsPath, err)
		return 1
	}

	logger, err := initializeLogger(conf.Logging, *logLevel)
	if err != nil {
		fmt.Printf("Error: Failed to initialize logger: %v\n", err)
		return 1
	}
	defer func() {
		_ = logger.Sync()
	}()

	fmt.Printf("Config: %s\n", configPath)
	if proxy != "" {
		fmt.Printf("Proxy: %s\n", proxy)
	}

	alloc, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Error: Failed to load config '%s': %v\n", configPath, err)
		return 1
	}

	model := "Squares Approximation"
	if !alloc.UseLeastSquares {
		model = "Absolute Deviations"
	}
	fmt.Printf("Model: Least %s\n", model)

	client, err := newHTTPClient(proxy, conf.HTTP)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return 1
	}

	provider, err := market.New(alloc.ProviderName, alloc.ProviderToken, client, logger)
	if err != nil {
		switch {
		case errors.Is(err, market.ErrMissingToken):
			fmt.Printf("Error: API Token was not specified (required for %s)\n", alloc.ProviderName)
		default:
			fmt.Printf("Error: Unknown provider: %s\n", alloc.ProviderName)
		}
		return 1
	}
	fmt.Printf("Provider: %s\n", alloc.ProviderName)

	tickers := make([]string, len(alloc.Assets))
	for i, asset := range alloc.Assets {
		tickers[i] = asset.Ticker
	}

	if err := provider.Retrieve(context.Background(), tickers); err != nil {
		fmt.Printf("Error: Failed to retrieve market information: %v\n", err)
		return 1
	}
	for _, t := range tickers {
		if _, ok := provider.Price(t, market.Last); !ok {
			fmt.Printf("Error: Failed to retrieve information about: %s\n", t)
			return 1
		}
	}

	fmt.Println("Assets info:")
	for _, t := range tickers {
		name, _ := provider.AssetName(t)
		fmt.Printf("  %s\t%s\n", t, name)
	}

	source := market.NewRateSource(provider, tickers)

	bar := &progressBar{}
	opt := optimizer.New(logger, bar.status)
	opt.Optimize(alloc, source.Rates)
	bar.finish()

	rows := buildRows(alloc, provider, opt, !source.Approximated())
	output.RenderTable(os.Stdout, rows, opt.SourceQuality(), opt.ResultQuality())

	if source.Approximated() {
		fmt.Println()
		fmt.Println("(*) Approximating value (not from the Market)")
	}

	output.RenderStrategy(os.Stdout, rows)
	return 0
}
