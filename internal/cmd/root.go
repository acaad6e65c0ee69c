// Package cmd provides the command-line interface for falconeye.
// It handles command parsing, configuration loading, and wiring of the extraction pipeline.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/masahif/falconeye/internal/asset"
	"github.com/masahif/falconeye/internal/config"
	"github.com/masahif/falconeye/internal/export"
	"github.com/masahif/falconeye/internal/fetch"
	"github.com/masahif/falconeye/internal/logging"
	"github.com/masahif/falconeye/internal/scraper"
	"github.com/masahif/falconeye/internal/storage"
)

var (
	cfgFile   string
	version   string
	buildTime string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "falconeye",
	Short: "Extract attributes, text, links and media from HTML pages",
	Long: `FalconEye pulls structured content out of HTML documents.

A source is an http(s) URL, a local file, or "-" for stdin. Results are
printed one per line, or saved as CSV or JSON with --output.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRoot,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets version information for the CLI
func SetVersionInfo(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Configuration file flag
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./falconeye.yml)")

	// Configuration management flags
	rootCmd.Flags().Bool("show-config", false, "Display current configuration in YAML format and exit")

	// HTTP flags
	rootCmd.PersistentFlags().DurationP("timeout", "t", fetch.DefaultTimeout, "HTTP request timeout")
	rootCmd.PersistentFlags().StringP("user-agent", "u", fetch.DefaultUserAgent, "HTTP User-Agent header")

	// Logging flags
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text or json")
	rootCmd.PersistentFlags().String("log-file", "", "Append logs to this file instead of stderr")

	// Output flags
	rootCmd.PersistentFlags().StringP("output", "o", "", "Save results to this file instead of printing them")
	rootCmd.PersistentFlags().StringP("format", "f", "csv", "Output file format: csv or json")
	rootCmd.PersistentFlags().IntP("workers", "w", 1, "Number of parallel asset downloads")

	// Journal flags
	rootCmd.PersistentFlags().StringP("database", "d", "", "Record runs in this SQLite database")

	rootCmd.AddCommand(fetchCmd, attrCmd, textCmd, linksCmd, imagesCmd, videosCmd, historyCmd)

	bindConfigFlags()
}

// bindConfigFlags binds flags to viper keys
func bindConfigFlags() {
	bindFlags := []struct {
		viperKey string
		cmd      *cobra.Command
		flagName string
	}{
		{"request_timeout", rootCmd, "timeout"},
		{"user_agent", rootCmd, "user-agent"},
		{"log_level", rootCmd, "log-level"},
		{"log_format", rootCmd, "log-format"},
		{"log_file", rootCmd, "log-file"},
		{"output", rootCmd, "output"},
		{"format", rootCmd, "format"},
		{"workers", rootCmd, "workers"},
		{"database_path", rootCmd, "database"},
		{"video_providers", videosCmd, "provider"},
	}

	for _, bind := range bindFlags {
		flag := bind.cmd.PersistentFlags().Lookup(bind.flagName)
		if flag == nil {
			flag = bind.cmd.Flags().Lookup(bind.flagName)
		}
		if err := viper.BindPFlag(bind.viperKey, flag); err != nil {
			// Log the error but continue - non-critical for operation
			fmt.Fprintf(os.Stderr, "Warning: failed to bind flag %s: %v\n", bind.flagName, err)
		}
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in current directory
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("falconeye")
	}

	viper.AutomaticEnv() // read in environment variables that match
	viper.SetEnvPrefix("FE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

func generateUserAgent() string {
	if version != "" && version != "dev" {
		return fmt.Sprintf("FalconEye/%s", version)
	}
	return fetch.DefaultUserAgent
}

// loadConfig merges defaults, config file, environment and flags
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Update User-Agent with dynamic version if not explicitly set
	if !cmd.Flags().Changed("user-agent") && cfg.UserAgent == fetch.DefaultUserAgent {
		cfg.UserAgent = generateUserAgent()
	}

	return cfg, nil
}

func showCurrentConfig(w io.Writer, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	// Validate configuration before showing it
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Configuration validation failed: %v\n", err)
		fmt.Fprintf(os.Stderr, "Displaying configuration anyway...\n\n")
	}

	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration to YAML: %w", err)
	}

	// Add header comment to the output
	fmt.Fprintf(w, "# Current FalconEye Configuration\n")
	fmt.Fprintf(w, "# Generated at: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(w, "# Configuration file search paths: ./falconeye.yml\n")
	fmt.Fprintf(w, "# Environment variables prefix: FE_\n\n")

	fmt.Fprint(w, string(yamlData))

	// Add footer with additional information
	fmt.Fprintf(w, "\n# Configuration source priority:\n")
	fmt.Fprintf(w, "# 1. Command-line arguments (highest priority)\n")
	fmt.Fprintf(w, "# 2. Environment variables (FE_ prefix)\n")
	fmt.Fprintf(w, "# 3. Configuration file (falconeye.yml)\n")
	fmt.Fprintf(w, "# 4. Default values (lowest priority)\n")

	return nil
}

func runRoot(cmd *cobra.Command, args []string) error {
	if showConfig, _ := cmd.Flags().GetBool("show-config"); showConfig {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return showCurrentConfig(cmd.OutOrStdout(), cfg)
	}
	return cmd.Help()
}

// app holds the components shared by the subcommands for one invocation
type app struct {
	cfg       *config.Config
	fetcher   *fetch.Fetcher
	processor *scraper.Processor
	journal   *storage.SQLiteStorage
	logCloser io.Closer
}

// newApp loads and validates configuration, installs the default logger and
// wires the fetcher, downloader and optional journal.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.ParseLevel(cfg.LogLevel)
	logCfg.Format = cfg.LogFormat
	logCfg.FilePath = cfg.LogFile
	logCfg.Output = cmd.ErrOrStderr()

	logCloser, err := logging.SetDefault(*logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	a := &app{
		cfg:       cfg,
		logCloser: logCloser,
		fetcher: fetch.NewFetcher(
			fetch.WithTimeout(cfg.RequestTimeout),
			fetch.WithUserAgent(cfg.UserAgent),
		),
	}

	opts := []scraper.Option{scraper.WithStdin(cmd.InOrStdin())}
	if cfg.DatabasePath != "" {
		// Create database directory if it doesn't exist
		if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0750); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		a.journal, err = storage.NewSQLiteStorage(cfg.DatabasePath)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		opts = append(opts, scraper.WithJournal(a.journal))
	}

	a.processor = scraper.NewProcessor(a.fetcher, asset.NewDownloader(a.fetcher, cfg.Workers), opts...)
	return a, nil
}

// Close releases the journal, idle connections and the log file
func (a *app) Close() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			slog.Warn("Failed to close journal", "error", err)
		}
	}
	a.fetcher.Close()
	_ = a.logCloser.Close()
}

// runRule processes source with rule and emits the result. Not-found is not
// an error: nothing is printed and the warning has already been logged.
func runRule(cmd *cobra.Command, source string, rule scraper.Rule) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if rule.Kind == scraper.RuleVideos && len(rule.Providers) == 0 {
		rule.Providers = a.cfg.VideoProviders
	}

	result, err := a.processor.Process(cmd.Context(), source, rule)
	if err != nil {
		return err
	}

	if err := a.emit(cmd.OutOrStdout(), rule.FieldName(), result.Values); err != nil {
		return err
	}

	reportDownloads(cmd.ErrOrStderr(), rule, result)
	return nil
}

// emit prints values one per line, or saves them when an output path is configured
func (a *app) emit(w io.Writer, field string, values []string) error {
	if a.cfg.OutputPath != "" {
		return export.Save(export.FromValues(field, values), a.cfg.OutputPath, a.cfg.Format)
	}
	for _, v := range values {
		if _, err := fmt.Fprintln(w, v); err != nil {
			return err
		}
	}
	return nil
}

func reportDownloads(w io.Writer, rule scraper.Rule, result *scraper.Result) {
	if rule.DownloadDir == "" {
		return
	}
	if result.DownloadErr != nil {
		fmt.Fprintf(w, "Downloads skipped: %v\n", result.DownloadErr)
		return
	}

	saved := 0
	for _, o := range result.Assets {
		if o.OK() {
			saved++
		}
	}
	fmt.Fprintf(w, "Saved %d of %d assets to %s\n", saved, len(result.Assets), rule.DownloadDir)
}

// errNoJournal is returned by commands that need a database when none is configured
var errNoJournal = errors.New("no run journal configured, set --database or database_path")
