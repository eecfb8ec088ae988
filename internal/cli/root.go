package cli

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/recordtree/internal/config"
	"github.com/roach88/recordtree/internal/repo"
	"github.com/roach88/recordtree/internal/schema"
	"github.com/roach88/recordtree/internal/txn"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the recordtree CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "recordtree",
		Short: "recordtree - versioned record store",
		Long: `A versioned, content-addressed store for typed records.

Each record is a directory of an attributes.yml file and named blobs.
Every write is an atomic commit on a linear history.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.String("config", "", "configuration file (default: recordtree.yaml in . or the root)")
	pf.String("root", config.DefaultRoot, "repository root directory")
	pf.String("backend", config.DefaultBackend, "storage backend (sqlite|badger|memory)")
	pf.String("schema", "", "CUE schema file or directory")
	pf.String("author", config.DefaultConfig.Author.Name, "commit author name")
	pf.String("email", "", "commit author email")
	pf.Int("max-retries", config.DefaultMaxRetries, "retries after a concurrent modification")
	pf.Duration("write-timeout", 0, "maximum wait for the write lock (0 waits indefinitely)")
	pf.Int("read-concurrency", 0, "parallel record loads for listing (0 uses the default)")
	pf.Bool("placeholders", false, "store empty records as placeholder files")
	pf.String("log-level", "info", "log level (debug|info|warn|error)")

	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewPutCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewLsCommand(opts))
	cmd.AddCommand(NewRmCommand(opts))
	cmd.AddCommand(NewLogCommand(opts))
	cmd.AddCommand(NewDiffCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

func formatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// loadConfig resolves configuration from the command's flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return cfg, nil
}

// loadSchema builds the registry named by the configuration.
func loadSchema(cfg *config.Config) (*schema.Registry, error) {
	reg := schema.NewRegistry()
	if cfg.SchemaFile == "" {
		return reg, nil
	}
	if err := reg.LoadCUE(cfg.SchemaFile); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load schema", err)
	}
	return reg, nil
}

// repoOptions maps configuration onto repository options.
func repoOptions(cmd *cobra.Command, cfg *config.Config, reg *schema.Registry) []repo.Option {
	opts := []repo.Option{
		repo.WithBackend(cfg.Backend),
		repo.WithLogger(cfg.Logger(cmd.ErrOrStderr())),
		repo.WithMaxRetries(cfg.MaxRetries),
		repo.WithWriteTimeout(cfg.WriteTimeout),
		repo.WithPlaceholderRecords(cfg.Placeholders),
		repo.WithAuthor(txn.Author{Name: cfg.Author.Name, Email: cfg.Author.Email}),
		repo.WithSchema(reg),
	}
	if cfg.ReadConcurrency > 0 {
		opts = append(opts, repo.WithReadConcurrency(cfg.ReadConcurrency))
	}
	return opts
}

// openRepo opens the configured repository. The caller closes it.
func openRepo(cmd *cobra.Command) (*repo.Repository, *config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	reg, err := loadSchema(cfg)
	if err != nil {
		return nil, nil, err
	}
	r, err := repo.Open(cfg.Root, repoOptions(cmd, cfg, reg)...)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open repository", err)
	}
	return r, cfg, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
