package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/aristath/cargo-build-deps/internal/persistence"
)

// showHistory prints one recorded run and its unit outcomes. An empty runID
// selects the most recent run.
func showHistory(ctx context.Context, w io.Writer, historyPath, runID string) error {
	if historyPath == "" {
		return errors.New("build history is disabled")
	}
	if _, err := os.Stat(historyPath); err != nil {
		return fmt.Errorf("no build history at %s", historyPath)
	}

	store, err := persistence.NewSQLiteStore(ctx, historyPath)
	if err != nil {
		return err
	}
	defer store.Close()

	var run *persistence.Run
	if runID != "" {
		run, err = store.GetRun(ctx, runID)
	} else {
		run, err = store.LastRun(ctx)
	}
	if err != nil {
		return err
	}

	outcomes, err := store.ListOutcomes(ctx, run.ID)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "run %s (%s, %s): %s, started %s\n",
		run.ID, run.Mode, run.Profile, run.Status, run.StartedAt.Local().Format(time.DateTime))
	if run.Error != "" {
		fmt.Fprintf(w, "error: %s\n", run.Error)
	}
	if len(outcomes) == 0 {
		fmt.Fprintln(w, "no units recorded")
		return nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("OUTCOME", "PACKAGE", "TARGET", "ORIGIN", "TIME", "DETAIL")
	for _, o := range outcomes {
		detail := o.MarkerPath
		if o.Error != "" {
			detail = o.Error
		}
		t.Row(o.Outcome, o.Package+" v"+o.Version, o.Target, o.Origin, o.Duration.Round(time.Millisecond).String(), detail)
	}
	fmt.Fprintln(w, t.String())
	return nil
}
