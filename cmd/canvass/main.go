// Command canvass answers questions about voter-contact logs.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hurttlocker/canvass/internal/answer"
	"github.com/hurttlocker/canvass/internal/config"
	"github.com/hurttlocker/canvass/internal/guard"
	"github.com/hurttlocker/canvass/internal/llm"
	"github.com/hurttlocker/canvass/internal/store"
)

var version = "0.1.0-dev"

// cli holds the global flags and the state built from them before a
// subcommand runs.
type cli struct {
	dbPath     string
	configPath string
	llmFlag    string
	verbose    bool

	logger *zap.Logger
	cfg    config.ResolvedConfig
	now    func() time.Time
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{now: time.Now}

	root := &cobra.Command{
		Use:   "canvass",
		Short: "Grounded question answering over voter-contact logs",
		Long: `canvass imports voter-contact logs and answers questions about them.

Every number in an answer is computed from the stored records. A language
model only phrases the answer, and its phrasing is replaced by a grounded
summary whenever it refuses, hedges or ignores the data.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&c.dbPath, "db", "", "database path (default ~/.canvass/canvass.db)")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default ~/.canvass/config.yaml)")
	root.PersistentFlags().StringVar(&c.llmFlag, "llm", "", "provider/model, e.g. google/gemini-2.5-flash")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "debug logging on stderr")

	root.AddCommand(
		c.importCmd(),
		c.askCmd(),
		c.chatCmd(),
		c.extractCmd(),
		c.metricsCmd(),
		c.statsCmd(),
		c.batchesCmd(),
		c.auditCmd(),
		c.mcpCmd(),
		c.versionCmd(),
	)
	return root
}

// setup builds the logger and resolves configuration.
func (c *cli) setup(cmd *cobra.Command, args []string) error {
	// Logs go to stderr so stdout stays clean for results and MCP stdio.
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if c.verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	logger, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	c.logger = logger

	resolved, err := config.ResolveConfig(config.ResolveOptions{
		ConfigPath: c.configPath,
		CLILLM:     c.llmFlag,
		CLIDBPath:  c.dbPath,
	})
	if err != nil {
		return fmt.Errorf("resolving config: %w", err)
	}
	if _, err := resolved.Timeout(); err != nil {
		return err
	}
	if _, err := resolved.History(); err != nil {
		return err
	}
	c.cfg = resolved

	c.logger.Debug("config resolved",
		zap.String("config", resolved.ConfigPath),
		zap.String("db", resolved.DBPath.Value),
		zap.String("db_source", string(resolved.DBPath.Source)),
		zap.String("llm", resolved.LLM.Value),
	)
	return nil
}

func (c *cli) openStore() (store.Store, error) {
	s, err := store.NewStore(store.StoreConfig{DBPath: c.cfg.DBPath.Value})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return s, nil
}

// provider returns the configured model, or nil when none is usable. A
// missing key is not an error: answers fall back to the grounded summary.
func (c *cli) provider() llm.Provider {
	model := c.cfg.EffectiveLLM(llm.DefaultFlag)
	pcfg, err := llm.ParseLLMFlag(model.Value)
	if err != nil {
		c.logger.Warn("ignoring llm setting", zap.String("llm", model.Value), zap.Error(err))
		return nil
	}
	pcfg.APIKey = c.cfg.APIKeyForProvider(pcfg.Provider).Value
	p, err := llm.NewProvider(pcfg)
	if err != nil {
		c.logger.Info("no language model available", zap.String("llm", model.Value), zap.Error(err))
		return nil
	}
	return p
}

func (c *cli) guard() (*guard.Guard, error) {
	phrases, err := guard.LoadPhrases(c.cfg.GuardPhrases.Value)
	if err != nil {
		return nil, err
	}
	return guard.New(phrases), nil
}

// engine builds an answer engine over s. withModel false forces the grounded
// path.
func (c *cli) engine(s store.Store, withModel bool) (*answer.Engine, error) {
	g, err := c.guard()
	if err != nil {
		return nil, err
	}
	timeout, _ := c.cfg.Timeout()

	var p llm.Provider
	if withModel {
		p = c.provider()
	}
	return answer.NewEngine(s, p,
		answer.WithLogger(c.logger),
		answer.WithGuard(g),
		answer.WithTimeout(timeout),
		answer.WithClock(c.now),
	), nil
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func (c *cli) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the canvass version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "canvass %s\n", version)
		},
	}
}
