package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/depcorr/internal/cache"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage cached correlation matrices",
		Long: `List, verify, prune and remove cached matrices.

The cache lives in .depcorr/cache under the project root unless the
config selects another directory or the s3 driver.

Examples:
  depcorr cache list
  depcorr cache verify
  depcorr cache prune --keep 5 --max-age 30d
  depcorr cache rm corr-0123...`,
	}

	cmd.AddCommand(
		newCacheListCmd(),
		newCacheVerifyCmd(),
		newCachePruneCmd(),
		newCacheRmCmd(),
	)

	return cmd
}

func newCacheListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached matrices, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.trace.Close()

			c, err := a.openCache(cmd.Context())
			if err != nil {
				return err
			}
			entries, err := c.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list cache: %w", err)
			}

			out := cmd.OutOrStdout()
			if a.jsonOut {
				var total int64
				for _, e := range entries {
					total += e.Size
				}
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"entries":     entries,
					"total_count": len(entries),
					"total_bytes": total,
					"driver":      c.Driver(),
				})
			}

			if len(entries) == 0 {
				fmt.Fprintln(out, "No cached matrices.")
				return nil
			}
			var total int64
			for _, e := range entries {
				total += e.Size
				fmt.Fprintf(out, "  %s  %-6s %6d genes  %10s  %s\n",
					e.Key, e.Kind, e.Genes, formatBytes(e.Size), e.CreatedAt.Local().Format(time.DateTime))
			}
			fmt.Fprintf(out, "\n%d entries, %s total (%s)\n", len(entries), formatBytes(total), c.Driver())
			return nil
		},
	}
}

func newCacheVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [key...]",
		Short: "Check cached matrices against their checksums",
		Long: `Verify the checksum of the given entries, or of every entry when no
key is given. Exits with an error if any entry fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.trace.Close()

			c, err := a.openCache(cmd.Context())
			if err != nil {
				return err
			}
			keys := args
			if len(keys) == 0 {
				entries, err := c.List(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to list cache: %w", err)
				}
				for _, e := range entries {
					keys = append(keys, e.Key)
				}
			}

			type result struct {
				Key   string `json:"key"`
				Valid bool   `json:"valid"`
				Error string `json:"error,omitempty"`
			}
			checked := make([]result, 0, len(keys))
			failed := 0
			for _, key := range keys {
				r := result{Key: key, Valid: true}
				if _, err := c.Verify(cmd.Context(), key); err != nil {
					r.Valid = false
					r.Error = err.Error()
					failed++
					a.logger.Warn("cache entry failed verification", "key", key, "error", err)
				}
				checked = append(checked, r)
			}

			out := cmd.OutOrStdout()
			if a.jsonOut {
				if err := json.NewEncoder(out).Encode(map[string]interface{}{
					"entries": checked,
					"failed":  failed,
				}); err != nil {
					return err
				}
			} else {
				for _, r := range checked {
					if r.Valid {
						fmt.Fprintf(out, "  ok    %s\n", r.Key)
					} else {
						fmt.Fprintf(out, "  FAIL  %s: %s\n", r.Key, r.Error)
					}
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d cache entries failed verification", failed, len(checked))
			}
			return nil
		},
	}
}

func newCachePruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove old cache entries",
		Long: `Remove cache entries outside the retention policy. An entry is kept
if any given limit keeps it. Without flags, the newest cache.keep entries
(default 10) are kept.

Examples:
  depcorr cache prune --keep 5
  depcorr cache prune --max-age 30d --max-size 2GB`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.trace.Close()

			policy, err := prunePolicy(cmd, a.cfg.Cache.Keep)
			if err != nil {
				return err
			}
			c, err := a.openCache(cmd.Context())
			if err != nil {
				return err
			}
			removed, err := c.Prune(cmd.Context(), policy)
			if err != nil {
				return fmt.Errorf("failed to prune cache: %w", err)
			}

			out := cmd.OutOrStdout()
			if a.jsonOut {
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"removed":       removed,
					"removed_count": len(removed),
				})
			}
			if len(removed) == 0 {
				fmt.Fprintln(out, "Nothing to prune.")
				return nil
			}
			for _, key := range removed {
				fmt.Fprintf(out, "  removed %s\n", key)
			}
			fmt.Fprintf(out, "Pruned %d entries.\n", len(removed))
			return nil
		},
	}

	cmd.Flags().Int("keep", 0, "Keep the newest N entries")
	cmd.Flags().String("max-age", "", "Keep entries younger than this (e.g. 36h, 30d, 2w)")
	cmd.Flags().String("max-size", "", "Keep the newest entries up to this total size (e.g. 500MB, 2GB)")
	return cmd
}

// prunePolicy builds the retention policy from the flags, falling back to
// keeping defaultKeep entries when none is set.
func prunePolicy(cmd *cobra.Command, defaultKeep int) (cache.RetentionPolicy, error) {
	keep, _ := cmd.Flags().GetInt("keep")
	if keep < 0 {
		return nil, fmt.Errorf("--keep must be non-negative, got %d", keep)
	}

	var maxAge time.Duration
	if s, _ := cmd.Flags().GetString("max-age"); s != "" {
		d, err := cache.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid --max-age: %w", err)
		}
		maxAge = d
	}
	var maxSize int64
	if s, _ := cmd.Flags().GetString("max-size"); s != "" {
		n, err := cache.ParseSize(s)
		if err != nil {
			return nil, fmt.Errorf("invalid --max-size: %w", err)
		}
		maxSize = n
	}

	if keep == 0 && maxAge == 0 && maxSize == 0 {
		keep = defaultKeep
	}
	return cache.PolicyFor(keep, maxAge, maxSize), nil
}

func newCacheRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <key>",
		Short: "Remove one cache entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.trace.Close()

			key := args[0]
			if !cache.ValidKey(key) {
				return fmt.Errorf("invalid cache key %q", key)
			}
			c, err := a.openCache(cmd.Context())
			if err != nil {
				return err
			}
			removed, err := c.Remove(cmd.Context(), key)
			if err != nil {
				return fmt.Errorf("failed to remove %s: %w", key, err)
			}

			out := cmd.OutOrStdout()
			if a.jsonOut {
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"key":     key,
					"removed": removed,
				})
			}
			if !removed {
				fmt.Fprintf(out, "No cache entry %s\n", key)
				return nil
			}
			fmt.Fprintf(out, "Removed %s\n", key)
			return nil
		},
	}
}

// formatBytes renders a byte count with a binary unit.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
