package commands

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the conversion cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache location, size and entry count",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if settings.CachePath == "" {
			return fmt.Errorf("cache is disabled")
		}
		store, err := openCache()
		if err != nil {
			return err
		}
		stats := store.Stats()
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"path":        store.Path(),
				"entries":     stats.Entries,
				"bytes":       stats.Bytes,
				"file_size":   store.FileSize(),
				"max_entries": settings.CacheMaxEntries,
			})
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Path:      %s\n", store.Path())
		fmt.Fprintf(w, "Entries:   %s", humanize.Comma(int64(stats.Entries)))
		if settings.CacheMaxEntries > 0 {
			fmt.Fprintf(w, " / %s", humanize.Comma(int64(settings.CacheMaxEntries)))
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Payload:   %s\n", humanize.Bytes(uint64(stats.Bytes)))
		fmt.Fprintf(w, "File size: %s\n", humanize.Bytes(uint64(store.FileSize())))
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all cached conversions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if settings.CachePath == "" {
			return fmt.Errorf("cache is disabled")
		}
		store, err := openCache()
		if err != nil {
			return err
		}
		n := store.Len()
		if err := store.Remove(); err != nil {
			return err
		}
		logger.Info("cache cleared", "path", store.Path(), "entries", n)
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s cached %s from %s\n",
			humanize.Comma(int64(n)), plural(n, "conversion"), store.Path())
		return nil
	},
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

func init() {
	cacheStatsCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)
	RootCmd.AddCommand(cacheCmd)
}
