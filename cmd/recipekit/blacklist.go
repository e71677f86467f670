package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rushteam/recipekit/config"
	"github.com/rushteam/recipekit/core"
	"github.com/rushteam/recipekit/filter"
	"github.com/rushteam/recipekit/logging"
	"github.com/rushteam/recipekit/store"
)

// DefaultBlacklistKey 与 pipeline 文件中 blacklist 过滤器的 key 对应。
const DefaultBlacklistKey = "blacklist:recipes"

func newBlacklistCmd(g *globalOptions) *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "blacklist",
		Short: "Manage the operator blacklist in the cache store",
		Long: `Recipes on the blacklist are dropped by any blacklist filter in the
pipeline file whose key matches --key. The list lives in the configured
cache store, so cache.store.backend must be redis or badger.`,
	}
	cmd.PersistentFlags().StringVar(&key, "key", DefaultBlacklistKey, "store key of the blacklist")

	add := &cobra.Command{
		Use:   "add NAME...",
		Short: "Add recipes to the blacklist",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeFn, err := openBlacklist(g.settings)
			if err != nil {
				return err
			}
			defer closeFn()
			if err := a.AddToBlacklist(cmd.Context(), key, args...); err != nil {
				return err
			}
			logging.Info().Str("key", key).Strs("recipes", args).Msg("blacklist updated")
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Print the blacklist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, closeFn, err := openBlacklist(g.settings)
			if err != nil {
				return err
			}
			defer closeFn()
			names, err := a.GetBlacklist(cmd.Context(), key)
			if err != nil && !core.IsStoreNotFound(err) {
				return err
			}
			out := cmd.OutOrStdout()
			if g.format == "json" {
				if names == nil {
					names = []string{}
				}
				return writeJSON(out, names)
			}
			for _, name := range names {
				fmt.Fprintln(out, name)
			}
			return nil
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}

// openBlacklist 只接受跨进程可见的后端：memory 写入后随命令退出即丢失。
func openBlacklist(s *config.Settings) (*filter.StoreAdapter, func(), error) {
	switch s.Cache.Store.Backend {
	case "", "none", "memory":
		return nil, nil, fmt.Errorf("blacklist: cache.store.backend %q is not persistent, use redis or badger", s.Cache.Store.Backend)
	}
	st, err := store.Open(s.Cache.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("open cache store: %w", err)
	}
	return filter.NewStoreAdapter(st), func() {
		if err := st.Close(); err != nil {
			logging.Warn().Err(err).Str("store", st.Name()).Msg("close cache store")
		}
	}, nil
}
