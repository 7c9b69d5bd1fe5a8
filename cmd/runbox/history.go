package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/runbox/internal/client"
	"github.com/michaelbrown/runbox/internal/storage"
)

var (
	reasonFilter string
	limitFlag    int
	exportFormat string
	exportOutput string
	forceFlag    bool
)

var historyCmd = &cobra.Command{
	Use:     "history",
	Aliases: []string{"runs", "h"},
	Short:   "Inspect finished runs",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List finished runs",
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run and its output",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryDelete,
}

var historyExportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Export a run as markdown or JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryExport,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyDeleteCmd, historyExportCmd)

	historyListCmd.Flags().StringVar(&reasonFilter, "reason", "", "Filter by reason (completed, terminated, reaped)")
	historyListCmd.Flags().IntVar(&limitFlag, "limit", 20, "Max runs to show")

	historyExportCmd.Flags().StringVar(&exportFormat, "format", "md", "Export format: md or json")
	historyExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")

	historyDeleteCmd.Flags().BoolVar(&forceFlag, "force", false, "Skip confirmation")
}

// runReader is what the read-only history commands need; both the local
// store and the HTTP client provide it.
type runReader interface {
	ListRuns(ctx context.Context, opts storage.RunListOptions) ([]storage.Run, error)
	GetRun(ctx context.Context, id string) (*storage.Run, error)
}

func openRunReader() (runReader, func(), error) {
	if serverFlag != "" {
		return client.New(serverFlag), func() {}, nil
	}
	store, err := openLocalStore()
	if err != nil {
		return nil, nil, err
	}
	return store, func() { store.Close() }, nil
}

func openLocalStore() (storage.Store, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("run history is disabled (storage.enabled = false)")
	}
	return store, nil
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	runs, closeFn, err := openRunReader()
	if err != nil {
		return err
	}
	defer closeFn()

	list, err := runs.ListRuns(context.Background(), storage.RunListOptions{
		Reason: storage.Reason(reasonFilter),
		Limit:  limitFlag,
	})
	if err != nil {
		return err
	}

	if len(list) == 0 {
		fmt.Println("No runs found.")
		return nil
	}

	// Header
	fmt.Printf("%-10s %-12s %-11s %-6s %-10s %s\n", "ID", "LANGUAGE", "REASON", "EXIT", "DURATION", "FINISHED")
	fmt.Println(strings.Repeat("─", 70))

	for _, r := range list {
		fmt.Printf("%-10s %-12s %-11s %-6d %-10s %s\n",
			shortID(r.ID), r.Language, r.Reason, r.ExitCode,
			r.Duration().Round(time.Millisecond), timeAgo(r.FinishedAt))
	}

	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	runs, closeFn, err := openRunReader()
	if err != nil {
		return err
	}
	defer closeFn()

	r, err := runs.GetRun(context.Background(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Run:      %s\n", r.ID)
	fmt.Printf("Language: %s\n", r.Language)
	fmt.Printf("Reason:   %s\n", r.Reason)
	fmt.Printf("Exit:     %d\n", r.ExitCode)
	fmt.Printf("Started:  %s\n", r.StartedAt.Format(time.RFC3339))
	fmt.Printf("Finished: %s\n", r.FinishedAt.Format(time.RFC3339))

	if r.Output != "" {
		fmt.Println(strings.Repeat("─", 60))
		fmt.Println(r.Output)
	}
	if r.Error != "" {
		fmt.Println(strings.Repeat("─", 60))
		fmt.Printf("\033[31m%s\033[0m\n", r.Error)
	}
	return nil
}

func runHistoryDelete(cmd *cobra.Command, args []string) error {
	store, err := openLocalStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	r, err := store.GetRun(ctx, args[0])
	if err != nil {
		return err
	}

	if !forceFlag {
		fmt.Printf("Delete run %s (%s, %s)? [y/N] ", shortID(r.ID), r.Language, timeAgo(r.FinishedAt))
		var confirm string
		fmt.Scanln(&confirm)
		if strings.ToLower(confirm) != "y" {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	if err := store.DeleteRun(ctx, r.ID); err != nil {
		return err
	}
	fmt.Printf("Deleted run %s\n", shortID(r.ID))
	return nil
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	runs, closeFn, err := openRunReader()
	if err != nil {
		return err
	}
	defer closeFn()

	r, err := runs.GetRun(context.Background(), args[0])
	if err != nil {
		return err
	}

	var output string
	switch exportFormat {
	case "json":
		data, err := storage.ExportJSON(r)
		if err != nil {
			return err
		}
		output = string(data)
	default:
		output = storage.ExportMarkdown(r)
	}

	if exportOutput != "" {
		return os.WriteFile(exportOutput, []byte(output), 0o644)
	}

	fmt.Print(output)
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
