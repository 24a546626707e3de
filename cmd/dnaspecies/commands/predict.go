package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/dnaspecies/internal/results"
	"github.com/kiranshivaraju/dnaspecies/internal/workflow"
	"github.com/kiranshivaraju/dnaspecies/pkg/models"
	"github.com/spf13/cobra"
)

type predictOptions struct {
	k           int
	interval    time.Duration
	maxAttempts int
	detailsPath string
	jsonOut     bool
}

func newPredictCommand(a *app) *cobra.Command {
	var opts predictOptions

	cmd := &cobra.Command{
		Use:   "predict FILE",
		Short: "Upload a sequence file and wait for species predictions",
		Long: `Upload a FASTA, FASTQ, CSV or image file to the prediction backend,
poll the run until it finishes and print the per-cluster predictions.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPredict(cmd, a, opts, args[0])
		},
	}

	cmd.Flags().IntVar(&opts.k, "k", 0, "requested cluster count (default REQUESTED_K)")
	cmd.Flags().DurationVar(&opts.interval, "interval", 0, "poll interval (default POLL_INTERVAL)")
	cmd.Flags().IntVar(&opts.maxAttempts, "max-attempts", 0, "poll attempts before giving up (default POLL_MAX_ATTEMPTS)")
	cmd.Flags().StringVar(&opts.detailsPath, "details", "", "write the file details document to this path")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "print the result set as JSON")
	return cmd
}

func runPredict(cmd *cobra.Command, a *app, opts predictOptions, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	wopts := workflow.OptionsFrom(a.cfg.Workflow)
	if opts.k > 0 {
		wopts.RequestedK = opts.k
	}
	if opts.interval > 0 {
		wopts.PollInterval = opts.interval
	}
	if opts.maxAttempts > 0 {
		wopts.MaxAttempts = opts.maxAttempts
	}

	out := cmd.OutOrStdout()
	sess := workflow.NewSession(uuid.New(), a.client, wopts, nil)
	file := workflow.File{
		Name:     filepath.Base(path),
		MimeType: mime.TypeByExtension(filepath.Ext(path)),
		Content:  content,
	}

	job, err := sess.Upload(cmd.Context(), file)
	if err != nil {
		return userError{err}
	}
	fmt.Fprintf(out, "Run ID: %s (k=%d)\n", job.RunID, job.ClusterK)
	if w := sess.Snapshot().Warning; w != "" {
		fmt.Fprintf(out, "Warning: %s\n", w)
	}

	loopErr := sess.Wait(cmd.Context())
	snap := sess.Snapshot()
	slog.Debug("poll loop finished", "run_id", job.RunID, "attempts", snap.Poll.Attempt, "progress", snap.Poll.Progress)

	if opts.detailsPath != "" {
		if err := writeDetails(sess, opts.detailsPath); err != nil {
			return err
		}
		fmt.Fprintf(out, "Details written to %s\n", opts.detailsPath)
	}

	if snap.Result != nil {
		if opts.jsonOut {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(snap.Result); err != nil {
				return err
			}
		} else {
			printResults(out, snap.Result, snap.Slots)
		}
	}

	if loopErr != nil {
		return userError{loopErr}
	}
	return nil
}

func writeDetails(sess *workflow.Session, path string) error {
	_, body, err := sess.Details()
	if err != nil {
		return userError{err}
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("write details: %w", err)
	}
	return nil
}

func printResults(w io.Writer, rs *models.ResultSet, slots []models.VisualSlot) {
	cols := rs.Columns
	if len(cols) == 0 {
		cols = results.Columns(rs.Rows)
	}
	if rs.ModelUsed != "" {
		fmt.Fprintf(w, "Model: %s\n", rs.ModelUsed)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(cols, "\t"))
	for _, row := range rs.Rows {
		cells := make([]string, len(cols))
		for i, c := range cols {
			v, _ := row.Get(c)
			cells[i] = results.CellString(c, v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	tw.Flush()

	for _, s := range slots {
		u := s.URL
		if u == "" {
			u = "(not available)"
		}
		fmt.Fprintf(w, "%s: %s\n", s.Label, u)
	}
}
