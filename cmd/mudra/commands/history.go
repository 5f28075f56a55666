package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/store"
)

var (
	historyLimit int
	historyJSON  bool
	historyYes   bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage saved translations (list, show, delete, clear)",
	Long: `Inspect and prune the translation history.

Examples:
  mudra history list --limit 5
  mudra history show 1b4e28ba-2fa1-11d2-883f-0016d3cca427
  mudra history delete 1b4e28ba-2fa1-11d2-883f-0016d3cca427
  mudra history clear --yes`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved translations, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(cmd, func(ctx context.Context, repo *store.TranslationRepository) error {
			records, err := repo.List(ctx, historyLimit)
			if err != nil {
				return err
			}
			if historyJSON {
				return writeJSON(cmd.OutOrStdout(), records)
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No saved translations.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSAVED\tSIGNS\tSENTENCE")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.ID, r.UpdatedAt.Local().Format(time.DateTime), r.SignCount, quote(r.Sentence))
			}
			return tw.Flush()
		})
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a saved translation and its signs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(cmd, func(ctx context.Context, repo *store.TranslationRepository) error {
			rec, err := repo.GetByID(ctx, args[0])
			if err != nil {
				return notFound(err, args[0])
			}
			if historyJSON {
				return writeJSON(cmd.OutOrStdout(), rec)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:       %s\n", rec.ID)
			fmt.Fprintf(out, "Sentence: %s\n", quote(rec.Sentence))
			fmt.Fprintf(out, "Created:  %s\n", rec.CreatedAt.Local().Format(time.DateTime))
			fmt.Fprintf(out, "Updated:  %s\n\n", rec.UpdatedAt.Local().Format(time.DateTime))

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SEQ\tSIGN\tCONFIDENCE\tMODE\tIMAGE")
			for _, s := range rec.Signs {
				mode := "manual"
				if s.Auto {
					mode = "auto"
				}
				image := "-"
				if s.HasImage {
					image = "yes"
				}
				fmt.Fprintf(tw, "%d\t%s\t%.0f%%\t%s\t%s\n", s.Seq, quote(s.Label), s.Confidence*100, mode, image)
			}
			return tw.Flush()
		})
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete saved translations",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(cmd, func(ctx context.Context, repo *store.TranslationRepository) error {
			var errs []error
			for _, id := range args {
				if err := repo.Delete(ctx, id); err != nil {
					errs = append(errs, notFound(err, id))
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
			}
			return errors.Join(errs...)
		})
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every saved translation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !historyYes {
			return errors.New("refusing to clear history without --yes")
		}
		return withHistory(cmd, func(ctx context.Context, repo *store.TranslationRepository) error {
			n, err := repo.Clear(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d translations\n", n)
			return nil
		})
	},
}

func init() {
	historyCmd.PersistentFlags().BoolVar(&historyJSON, "json", false, "print JSON")
	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "maximum entries to show (0 = all)")
	historyClearCmd.Flags().BoolVarP(&historyYes, "yes", "y", false, "confirm clearing the history")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyClearCmd)
}

// withHistory opens the configured store for the duration of fn.
func withHistory(cmd *cobra.Command, fn func(context.Context, *store.TranslationRepository) error) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, st.Translations())
}

func notFound(err error, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("translation %s not found", id)
	}
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// quote makes leading and trailing spaces visible.
func quote(s string) string {
	if strings.TrimSpace(s) != s {
		return fmt.Sprintf("%q", s)
	}
	return s
}
