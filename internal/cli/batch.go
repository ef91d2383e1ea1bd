package cli

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/fichas-scanner/internal/async"
)

var (
	batchRecursive bool
	batchWorkers   int
)

var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Recognize every form image in a directory",
	Long: `Walks a directory for image files and processes them on a worker pool.
Each file becomes one scan in the history; a line per file is printed with
the number of fields that could not be found.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().BoolVarP(&batchRecursive, "recursive", "r", false, "descend into subdirectories")
	batchCmd.Flags().IntVarP(&batchWorkers, "workers", "w", 0, "worker count (defaults to the configured one)")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	paths, err := async.Discover(args[0], batchRecursive)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if len(paths) == 0 {
		fmt.Fprintln(w, "No images found.")
		return nil
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	var (
		mu     sync.Mutex
		failed int
	)
	q := a.BatchQueue(
		async.WithWorkers(batchWorkers),
		async.WithQueueSize(len(paths)),
		async.WithResultHandler(func(r async.Result) {
			mu.Lock()
			defer mu.Unlock()
			if r.Err != nil {
				failed++
				fmt.Fprintf(w, "FAIL %s: %v\n", r.Job.Path, r.Err)
				return
			}
			fmt.Fprintf(w, "OK   %s (missing %d, confidence %.2f)\n",
				r.Job.Path, len(r.Outcome.Record.Missing()), r.Outcome.Confidence)
		}),
	)

	start := time.Now()
	for _, p := range paths {
		if err := q.Enqueue(cmd.Context(), async.Job{Path: p, SubmittedAt: time.Now(), TraceID: uuid.NewString()}); err != nil {
			return err
		}
	}
	q.Shutdown(context.WithoutCancel(cmd.Context()))

	fmt.Fprintf(w, "\n%d processed, %d failed in %s\n", len(paths), failed, time.Since(start).Round(time.Millisecond))
	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(paths))
	}
	return nil
}
