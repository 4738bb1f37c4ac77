package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"gravityhq/sentinel/pkg/config"
	"gravityhq/sentinel/pkg/journal"
)

var journalFlags struct {
	limit int
}

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "List recent alert decisions",
	Long: `List recent alert decisions.

Prints the alert decision journal, newest first: when each alert fired, at
what level, for which model, and what the user chose.`,
	RunE: runJournal,
}

func init() {
	rootCmd.AddCommand(journalCmd)

	journalCmd.Flags().IntVar(&journalFlags.limit, "limit", 20, "maximum number of entries to show")
}

func runJournal(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if !cfg.Journal.JournalEnabled() {
		fmt.Fprintln(os.Stdout, "journal is disabled in configuration")
		return nil
	}

	storage, err := journal.NewSQLiteStorage(cfg.Journal.Path)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer storage.Close()

	entries, err := storage.Recent(cmd.Context(), journalFlags.limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(os.Stdout, "no alert decisions recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tLEVEL\tMODEL\tREMAINING\tOUTCOME\tCHOICE\tALLOWED")
	for _, e := range entries {
		choice := e.Choice
		if choice == "" {
			choice = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.1f%%\t%s\t%s\t%t\n",
			e.Time.Format("2006-01-02 15:04:05"), e.Level, e.ModelLabel, e.Percentage,
			e.Outcome, choice, e.Allowed)
	}
	return w.Flush()
}
