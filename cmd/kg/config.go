package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/matsen/paperkg/internal/config"
)

var configForce bool

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Show the configuration after defaults, the config file and the
environment are applied. Secrets are reported as set or unset, never shown.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

// ConfigResponse is the response for the config command.
type ConfigResponse struct {
	Path    string          `json:"path"`
	Found   bool            `json:"found"`
	Config  *config.Config  `json:"config"`
	Secrets map[string]bool `json:"secrets"`
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	path, _ := config.Path(configPath)
	_, statErr := os.Stat(config.ExpandPath(path))

	if !humanOutput {
		return outputJSON(ConfigResponse{
			Path:    path,
			Found:   statErr == nil,
			Config:  cfg,
			Secrets: cfg.Secrets.Present(),
		})
	}

	if statErr == nil {
		outputHuman("# %s\n", path)
	} else {
		outputHuman("# built-in defaults (%s not found)\n", path)
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		exitWithError(ExitError, "encoding config: %v", err)
	}
	outputHuman("%s", out)
	outputHuman("\n# secrets\n")
	present := cfg.Secrets.Present()
	for _, name := range []string{
		config.EnvORCIDClientID, config.EnvORCIDClientSecret, config.EnvHFToken,
		config.EnvOpenAIKey, config.EnvNeo4jPassword, config.EnvRedisPassword,
	} {
		state := "unset"
		if present[name] {
			state = "set"
		}
		outputHuman("#   %-20s %s\n", name, state)
	}
	return nil
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration to a file",
	Long: `Write the built-in defaults to path (default kg.yml). The format follows
the extension: .yml/.yaml or .toml.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultFile
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil && !configForce {
			exitWithError(ExitConfigError, "%s already exists (use --force to overwrite)", path)
		}

		var (
			data []byte
			err  error
		)
		switch strings.ToLower(filepath.Ext(path)) {
		case ".toml":
			data, err = toml.Marshal(config.Default())
		case ".yml", ".yaml":
			data, err = yaml.Marshal(config.Default())
		default:
			exitWithError(ExitConfigError, "unsupported config format %q (use .yml, .yaml or .toml)", filepath.Ext(path))
		}
		if err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}

		if humanOutput {
			outputHuman("Wrote default configuration to %s\n", path)
			return nil
		}
		return outputJSON(map[string]string{"status": "created", "path": path})
	},
}
