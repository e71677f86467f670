package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rushteam/recipekit/config"
	"github.com/rushteam/recipekit/logging"
)

// globalOptions 是所有子命令共享的参数。
type globalOptions struct {
	configFile string
	envFile    string
	format     string
	logLevel   string

	settings *config.Settings
}

// NewRootCmd 构建命令树。
func NewRootCmd() *cobra.Command {
	g := &globalOptions{}
	cmd := &cobra.Command{
		Use:   "recipekit",
		Short: "Content-based recipe recommender",
		Long: `recipekit recommends recipes from the same cluster as a target recipe.

The catalog is projected with frozen TF-IDF + PCA models, every recipe is
assigned to a cluster once at startup, and recommendations are ranked by
cosine similarity weighted by rating, then re-sorted by popularity.

Settings come from defaults, an optional YAML file (--config) and
RECIPEKIT_* environment variables (nested keys use "__").`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return g.load()
		},
	}

	cmd.PersistentFlags().StringVarP(&g.configFile, "config", "c", "", "YAML settings file")
	cmd.PersistentFlags().StringVar(&g.envFile, "env-file", ".env", "dotenv file loaded before reading settings")
	cmd.PersistentFlags().StringVar(&g.format, "format", "table", "output format: table or json")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(g),
		newRecommendCmd(g),
		newSuggestCmd(g),
		newSearchCmd(g),
		newValidateCmd(g),
		newBlacklistCmd(g),
	)
	return cmd
}

func (g *globalOptions) load() error {
	if g.format != "table" && g.format != "json" {
		return fmt.Errorf("--format must be table or json, got %q", g.format)
	}
	if g.envFile != "" {
		// 文件不存在不算错误
		if err := godotenv.Load(g.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", g.envFile, err)
		}
	}
	s, err := config.Load(g.configFile)
	if err != nil {
		return err
	}
	if g.logLevel != "" {
		s.Log.Level = strings.ToLower(g.logLevel)
	}
	logging.Init(s.Log)
	g.settings = s
	return nil
}
