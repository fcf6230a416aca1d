package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newThreadsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "threads",
		Short: "Inspect saved threads",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved threads, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listThreads(cmd, root)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show <thread-id>",
		Short: "Print a saved thread as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return showThread(cmd, root, args[0])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <thread-id>",
		Short: "Delete a saved thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return deleteThread(cmd, root, args[0])
		},
	})

	var olderThan time.Duration
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete threads not updated within --older-than",
		Long: `Prune deletes saved threads whose last update is older than --older-than.
Threads waiting for privilege review are never pruned.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return pruneThreads(cmd, root, olderThan)
		},
	}
	prune.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "minimum age of pruned threads")
	cmd.AddCommand(prune)

	return cmd
}

func listThreads(cmd *cobra.Command, root *rootOptions) error {
	store, err := openThreadStore(root)
	if err != nil {
		return err
	}

	threads, err := store.List()
	if err != nil {
		return err
	}
	if len(threads) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No threads")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "THREAD\tCASE\tSTATUS\tTURNS\tUPDATED")
	for _, t := range threads {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			t.ThreadID, t.CaseID, t.Status, len(t.Turns), t.UpdatedAt.Local().Format(time.RFC3339))
	}
	return w.Flush()
}

func showThread(cmd *cobra.Command, root *rootOptions, id string) error {
	store, err := openThreadStore(root)
	if err != nil {
		return err
	}
	thread, err := store.Get(id)
	if err != nil {
		return err
	}
	return writeJSON(cmd, thread)
}

func deleteThread(cmd *cobra.Command, root *rootOptions, id string) error {
	store, err := openThreadStore(root)
	if err != nil {
		return err
	}
	if err := store.Delete(id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
	return nil
}

func pruneThreads(cmd *cobra.Command, root *rootOptions, olderThan time.Duration) error {
	store, err := openThreadStore(root)
	if err != nil {
		return err
	}
	deleted, err := store.Prune(olderThan, time.Now())
	if err != nil {
		return err
	}

	root.log.Info().Int("deleted", len(deleted)).Dur("older_than", olderThan).Msg("Pruned threads")
	fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d thread(s)\n", len(deleted))
	return nil
}
