package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/recordtree/internal/config"
	"github.com/roach88/recordtree/internal/repo"
)

// InitResult is the JSON payload of init.
type InitResult struct {
	Root       string `json:"root"`
	Backend    string `json:"backend"`
	ConfigFile string `json:"config_file,omitempty"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a repository",
		Long: `Create the repository root and its store.

A recordtree.yaml recording the backend and author is written to the root
unless one already exists. Running init on an existing repository is safe.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, rootOpts)
		},
	}
}

func runInit(cmd *cobra.Command, opts *RootOptions) error {
	out := formatter(cmd, opts)
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Backend == "memory" {
		return NewExitError(ExitCommandError, "the memory backend cannot be initialized on disk")
	}

	reg, err := loadSchema(cfg)
	if err != nil {
		return err
	}
	r, err := repo.Open(cfg.Root, repoOptions(cmd, cfg, reg)...)
	if err != nil {
		return out.Fail("failed to create repository", err)
	}
	root := r.Root()
	if err := r.Close(); err != nil {
		return WrapExitError(ExitCommandError, "failed to close repository", err)
	}

	cfgPath := filepath.Join(root, config.DefaultConfigName+".yaml")
	written, err := writeConfigFile(cfgPath, cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to write configuration", err)
	}

	res := InitResult{Root: root, Backend: cfg.Backend}
	if written {
		res.ConfigFile = cfgPath
	}
	out.VerboseLog("config file: %s (written=%t)", cfgPath, written)
	return out.Success(res, fmt.Sprintf("Initialized %s repository in %s", cfg.Backend, root))
}

// writeConfigFile creates path unless it exists.
func writeConfigFile(path string, cfg *config.Config) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}

	doc := map[string]any{
		"backend": cfg.Backend,
		"author":  map[string]string{"name": cfg.Author.Name, "email": cfg.Author.Email},
	}
	if cfg.Placeholders {
		doc["placeholders"] = true
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return false, err
	}
	return true, os.WriteFile(path, data, 0o644)
}
