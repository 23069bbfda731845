package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kydenul/lotto"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	defer a.close()

	return root.ExecuteContext(ctx)
}

// app holds the state shared by all subcommands, built once per invocation.
type app struct {
	configPath  string
	historyPath string
	source      string
	logLevel    string
	jsonOutput  bool

	configManager *lotto.ConfigManager
	config        *lotto.Config
	logger        *lotto.SlogLogger
	provider      lotto.HistoryProvider
	closer        io.Closer
	generator     *lotto.Generator
	advisor       *lotto.Advisor
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "lotto",
		Short:        "Frequency-weighted lottery ticket suggestions",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "config file (default: config.yaml in ., ./config, /etc/lotto, $HOME/.lotto)")
	flags.StringVar(&a.historyPath, "history", "", "history file or database path")
	flags.StringVar(&a.source, "source", "", "history source: file, sqlite or redis")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.BoolVar(&a.jsonOutput, "json", false, "print JSON instead of tables")

	root.AddCommand(
		a.generateCommand(),
		a.weightsCommand(),
		a.statsCommand(),
		a.addDrawCommand(),
		a.evaluateCommand(),
		a.backtestCommand(),
		a.watchCommand(),
	)
	return root
}

// setup loads .env and the config file, applies flag overrides and opens the history source.
func (a *app) setup(cmd *cobra.Command) error {
	// .env 文件可选
	_ = godotenv.Load()

	a.configManager = lotto.NewConfigManagerWithFile(a.configPath)
	cfg, err := a.configManager.LoadConfig()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("source") {
		cfg.History.Source = a.source
	}
	if flags.Changed("history") {
		cfg.History.Path = a.historyPath
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.config = cfg

	a.logger = lotto.NewSlogLogger(&lotto.SlogOptions{
		Level:   lotto.ParseLogLevel(cfg.Log.Level),
		Writer:  cmd.ErrOrStderr(),
		NoColor: cfg.Log.NoColor,
	})
	a.configManager.SetLogger(a.logger)

	a.provider, a.closer, err = lotto.OpenHistoryProvider(cfg, a.logger)
	if err != nil {
		return err
	}

	a.generator, err = lotto.NewGeneratorWithLogger(cfg.Generator, a.logger)
	if err != nil {
		return err
	}
	a.advisor = lotto.NewAdvisorWithLogger(a.provider, a.generator, a.logger)
	return nil
}

func (a *app) close() {
	if a.closer == nil {
		return
	}
	if err := a.closer.Close(); err != nil && a.logger != nil {
		a.logger.Error("Failed to close history source: %v", err)
	}
	a.closer = nil
}

func (a *app) portfolioStore() (lotto.PortfolioStore, error) {
	store, ok := a.provider.(lotto.PortfolioStore)
	if !ok {
		return nil, fmt.Errorf("history source %q cannot store portfolios", a.config.History.Source)
	}
	return store, nil
}

// render prints v as JSON when --json is set, otherwise through table.
func (a *app) render(w io.Writer, v any, table func(tw *tabwriter.Writer)) error {
	if a.jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	table(tw)
	return tw.Flush()
}
