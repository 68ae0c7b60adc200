package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-kb-retrieval/internal/builder"
	"github.com/tbourn/go-kb-retrieval/internal/ingest"
	"github.com/tbourn/go-kb-retrieval/internal/search"
)

var (
	queryTopK  int
	queryJSON  bool
	resetForce bool
)

var importCmd = &cobra.Command{
	Use:   "import <chunks.json|dir>",
	Short: "Import chunks into the knowledge base",
	Long: `Imports a JSON array of chunks as written by "aru build". When given a
directory, its documents are chunked first. Records already present with
the same content are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Retrieve the best chunks for a query",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show corpus statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove every chunk, posting and signature",
	Args:  cobra.NoArgs,
	RunE:  runReset,
}

func init() {
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "maximum number of hits (0 uses DEFAULT_TOP_K)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output hits as JSON")
	resetCmd.Flags().BoolVar(&resetForce, "force", false, "confirm the reset")
	rootCmd.AddCommand(importCmd, queryCmd, statsCmd, resetCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	fi, err := os.Stat(args[0])
	if err != nil {
		return err
	}

	var rep ingest.Report
	if fi.IsDir() {
		chunks, err := newBuilder(a.cfg, builder.WithLogger(a.log)).Build(args[0])
		if err != nil {
			return err
		}
		rep, err = a.svc.ImportChunks(cmd.Context(), chunks)
		if err != nil {
			return importError(err, rep)
		}
	} else {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		rep, err = a.svc.Import(cmd.Context(), f)
		if err != nil {
			return importError(err, rep)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d chunks (%d unchanged) in %d batches\n",
		rep.Imported, rep.Received, rep.Skipped, rep.Batches)
	if rep.WriteErrors != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Warnings:\n%v\n", rep.WriteErrors)
	}
	return nil
}

// importError adds the committed count to payload errors, since earlier
// batches stay imported.
func importError(err error, rep ingest.Report) error {
	var pe *ingest.PayloadError
	if errors.As(err, &pe) && pe.Index >= 0 {
		return fmt.Errorf("%w (%d chunks imported before it)", err, rep.Imported)
	}
	return err
}

func runQuery(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	hits, err := a.svc.Retrieve(cmd.Context(), args[0], queryTopK)
	if err != nil {
		return fmt.Errorf("retrieve: %w", err)
	}
	if queryJSON {
		return writeJSON(cmd, hits)
	}
	printHits(cmd, hits)
	return nil
}

func printHits(cmd *cobra.Command, hits []search.Hit) {
	if len(hits) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No results found.")
		return
	}
	for i, h := range hits {
		fmt.Fprintf(cmd.OutOrStdout(), "  [%d] %s (%.3f)\n", i+1, h.ID, h.Score)
		fmt.Fprintf(cmd.OutOrStdout(), "      %s\n", snippet(h.Text, 160))
	}
}

func snippet(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func runStats(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	st, err := a.svc.Stats(cmd.Context())
	if err != nil {
		return err
	}
	return writeJSON(cmd, st)
}

func runReset(cmd *cobra.Command, _ []string) error {
	if !resetForce {
		return errors.New("refusing to reset without --force")
	}
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.svc.Reset(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Corpus cleared.")
	return nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
