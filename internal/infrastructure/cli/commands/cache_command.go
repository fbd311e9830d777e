package commands

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/doeshing/nixsay/internal/app"
	"github.com/doeshing/nixsay/internal/domain"
	"github.com/doeshing/nixsay/internal/infrastructure/cli/helpers"
)

// NewCacheCommand creates the cache command with all subcommands
func NewCacheCommand(container *app.Container) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear cached read-only results",
	}

	cacheCmd.AddCommand(
		newCacheListCommand(container),
		newCacheClearCommand(container),
		newCacheStatsCommand(container),
		newCacheInvalidateCommand(container),
	)

	return cacheCmd
}

func newCacheListCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.Cache == nil {
				return errors.New(ErrCacheUnavailable)
			}
			listCacheEntries(cmd.OutOrStdout(), container.Cache.Entries(cmd.Context()), time.Now())
			return nil
		},
	}
}

func newCacheClearCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop every cached result",
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.Cache == nil {
				return errors.New(ErrCacheUnavailable)
			}
			container.Cache.InvalidateAll(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared.")
			return nil
		},
	}
}

func newCacheStatsCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache tiers and counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.Cache == nil {
				return errors.New(ErrCacheUnavailable)
			}
			entries := container.Cache.Entries(cmd.Context())
			showCacheStats(cmd.OutOrStdout(), container.Cache.Stats(), entries)
			return nil
		},
	}
}

func newCacheInvalidateCommand(container *app.Container) *cobra.Command {
	var (
		pattern domain.Pattern
		kind    string
		all     bool
	)

	cmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Drop cached results by state tag, entity term or kind",
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.Cache == nil {
				return errors.New(ErrCacheUnavailable)
			}
			if all {
				container.Cache.InvalidateAll(cmd.Context())
				fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared.")
				return nil
			}
			pattern.Kind = domain.OperationKind(kind)
			if pattern == (domain.Pattern{}) {
				return errors.New(ErrInvalidatePatternEmpty)
			}
			removed := container.Cache.Invalidate(cmd.Context(), pattern)
			fmt.Fprintf(cmd.OutOrStdout(), "Invalidated %d entr%s matching %s.\n", removed, plural(removed, "y", "ies"), pattern)
			return nil
		},
	}

	cmd.Flags().StringVar(&pattern.Tag, "tag", "", "State tag, e.g. installed_packages")
	cmd.Flags().StringVar(&pattern.Term, "term", "", "Entity value, e.g. firefox")
	cmd.Flags().StringVar(&kind, "kind", "", "Operation kind, e.g. search_package")
	cmd.Flags().BoolVar(&all, "all", false, "Drop every entry")
	return cmd
}

func listCacheEntries(out io.Writer, entries []domain.CacheEntry, now time.Time) {
	if len(entries) == 0 {
		fmt.Fprintln(out, MsgNoCachedResults)
		return
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	for _, entry := range entries {
		fmt.Fprintf(out, "%s | %s | %s | %s | %s | %s\n",
			shortKey(entry.Key),
			entry.Kind,
			formatEntities(entry.Entities),
			helpers.FormatAge(entry.CreatedAt),
			helpers.FormatExpiry(entry.ExpiresAt(), now),
			helpers.FormatBytes(len(entry.Value)))
	}
}

func showCacheStats(out io.Writer, stats domain.CacheStats, entries []domain.CacheEntry) {
	backend := stats.PersistentBackend
	if backend == "" {
		backend = domain.CacheBackendMemory
	}
	if stats.PersistentDisabled {
		backend += " (disabled after errors)"
	}
	size := 0
	for _, entry := range entries {
		size += len(entry.Value)
	}

	fmt.Fprintf(out, "Persistent tier: %s\n", backend)
	fmt.Fprintf(out, "Entries: %d in memory, %d persisted (%s)\n", stats.MemoryEntries, stats.PersistentEntries, helpers.FormatBytes(size))
	fmt.Fprintf(out, "Hits: %s  Misses: %s  Hit rate: %.1f%%\n",
		helpers.FormatCount(stats.Hits), helpers.FormatCount(stats.Misses), helpers.HitRate(stats.Hits, stats.Misses))
	fmt.Fprintf(out, "Stored: %s  Dropped after invalidation: %s  Invalidated: %s\n",
		helpers.FormatCount(stats.Puts), helpers.FormatCount(stats.DroppedPuts), helpers.FormatCount(stats.Invalidated))
}

func formatEntities(entities map[string]string) string {
	if len(entities) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(entities))
	for name, value := range entities {
		parts = append(parts, name+"="+value)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func shortKey(key string) string {
	if len(key) > cacheKeyWidth {
		return key[:cacheKeyWidth]
	}
	return key
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
