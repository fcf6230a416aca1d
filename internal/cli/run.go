package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ahouse2/co-counsel-nexus/internal/config"
	"github.com/ahouse2/co-counsel-nexus/pkg/orchestrator"
	"github.com/spf13/cobra"
)

type runOptions struct {
	caseID     string
	question   string
	threadID   string
	autonomy   string
	maxTurns   int
	topK       int
	policyFile string
	actor      string
	offline    bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an orchestration session for a case question",
		Long: `Run routes the question to a team, drives the session to completion and
prints the resulting thread as JSON. The thread is saved to the thread store
so a later run can resume it with --thread.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.caseID, "case", "", "case identifier")
	cmd.Flags().StringVar(&opts.question, "question", "", "question to answer")
	cmd.Flags().StringVar(&opts.threadID, "thread", "", "resume or create the thread with this id")
	cmd.Flags().StringVar(&opts.autonomy, "autonomy", "", "autonomy level (low, balanced, high)")
	cmd.Flags().IntVar(&opts.maxTurns, "max-turns", 0, "turn budget (default from config)")
	cmd.Flags().IntVar(&opts.topK, "top-k", 0, "retrieval depth (default from config)")
	cmd.Flags().StringVar(&opts.policyFile, "policy", "", "policy state JSON file applied to this run")
	cmd.Flags().StringVar(&opts.actor, "actor", defaultActor(), "actor recorded on the run")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "use scripted offline responses instead of an LLM")
	_ = cmd.MarkFlagRequired("case")
	_ = cmd.MarkFlagRequired("question")

	return cmd
}

func runSession(cmd *cobra.Command, root *rootOptions, opts *runOptions) error {
	autonomy := opts.autonomy
	if autonomy == "" {
		autonomy = root.cfg.Orchestrator.AutonomyLevel
	}
	if err := config.NewValidator().ValidateAutonomyLevel(autonomy); err != nil {
		return err
	}

	a, err := newApp(root.cfg, root.log, opts.offline)
	if err != nil {
		return err
	}
	defer a.Close()

	req := orchestrator.RunRequest{
		CaseID:        opts.caseID,
		Question:      opts.question,
		TopK:          opts.topK,
		Actor:         orchestrator.Actor{ID: opts.actor},
		Executor:      a.executor,
		ThreadID:      opts.threadID,
		AutonomyLevel: autonomy,
		MaxTurns:      opts.maxTurns,
	}

	if opts.threadID != "" {
		thread, err := a.threads.Get(opts.threadID)
		switch {
		case err == nil:
			req.Thread = thread
		case errors.Is(err, orchestrator.ErrThreadNotFound):
		default:
			return fmt.Errorf("failed to load thread: %w", err)
		}
	}

	if opts.policyFile != "" {
		policy, err := config.LoadPolicyFile(opts.policyFile)
		if err != nil {
			return err
		}
		req.PolicyState = policy
	}

	thread, err := a.orchestrator.Run(cmd.Context(), req)
	if err != nil {
		var abort *orchestrator.WorkflowAbort
		if errors.As(err, &abort) {
			return fmt.Errorf("run aborted: %w", err)
		}
		return fmt.Errorf("run failed: %w", err)
	}

	if err := a.threads.Save(thread); err != nil {
		return fmt.Errorf("failed to save thread: %w", err)
	}
	root.log.Info().
		Str("thread_id", thread.ThreadID).
		Str("status", string(thread.Status)).
		Msg("Thread saved")

	return writeJSON(cmd, thread)
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func defaultActor() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "cli"
}
