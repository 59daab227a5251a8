package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-woofer/internal/config"
	"github.com/teslashibe/go-woofer/pkg/journal"
)

var (
	journalPath  string
	journalLimit int
	journalJSON  bool
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "List recorded commands",
	Long:  `Prints the most recent commands recorded by "woofer device --journal", newest first.`,
	RunE:  runJournal,
}

func init() {
	journalCmd.Flags().StringVar(&journalPath, "path", config.JournalPath(), "SQLite command journal path")
	journalCmd.Flags().IntVarP(&journalLimit, "limit", "n", 20, "number of entries to show")
	journalCmd.Flags().BoolVar(&journalJSON, "json", false, "print entries as JSON")

	rootCmd.AddCommand(journalCmd)
}

func runJournal(cmd *cobra.Command, args []string) error {
	if journalPath == "" {
		return errors.New("no journal path: use --path or set WOOFER_JOURNAL")
	}
	if journalLimit <= 0 {
		return fmt.Errorf("--limit must be positive, got %d", journalLimit)
	}

	store, err := journal.Open(journalPath)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Recent(cmd.Context(), journalLimit)
	if err != nil {
		return err
	}
	return printEntries(cmd.OutOrStdout(), entries, journalJSON)
}

func printEntries(w io.Writer, entries []journal.Entry, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(w, "No commands recorded.")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%s  %-5s  %s  %s\n",
			e.RecordedAt.Format(time.RFC3339Nano), e.Kind, e.ID, string(e.Data))
	}
	return nil
}
