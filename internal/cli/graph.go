package cli

import (
	"fmt"
	"strings"

	"github.com/ahouse2/co-counsel-nexus/internal/config"
	"github.com/ahouse2/co-counsel-nexus/pkg/orchestrator"
	"github.com/spf13/cobra"
)

type graphOptions struct {
	team       string
	question   string
	policyFile string
}

func newGraphCmd(root *rootOptions) *cobra.Command {
	opts := &graphOptions{}

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Show the session graph for a team or question",
		Long: `Graph prints the visitation order and delegation edges of a session graph.
With --question the team is chosen by keyword routing; otherwise --team
selects it (default base).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showGraph(cmd, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.team, "team", "", "team name (base, forensics, legal_research, ...)")
	cmd.Flags().StringVar(&opts.question, "question", "", "route this question to pick the team")
	cmd.Flags().StringVar(&opts.policyFile, "policy", "", "policy state JSON file applied to the base team")

	return cmd
}

func showGraph(cmd *cobra.Command, root *rootOptions, opts *graphOptions) error {
	a, err := newApp(root.cfg, root.log, true)
	if err != nil {
		return err
	}
	defer a.Close()

	var policy *orchestrator.PolicyState
	if opts.policyFile != "" {
		policy, err = config.LoadPolicyFile(opts.policyFile)
		if err != nil {
			return err
		}
	} else if a.policy != nil {
		policy = a.policy.Current()
	}

	var graph *orchestrator.SessionGraph
	team := orchestrator.TeamName(opts.team)
	if opts.question != "" {
		graph, team, err = a.orchestrator.ResolveGraph(opts.question, policy)
	} else {
		if team == "" {
			team = orchestrator.TeamBase
		}
		graph, err = a.orchestrator.TeamGraph(team, policy)
	}
	if err != nil {
		return err
	}

	printGraph(cmd, team, graph)
	return nil
}

func printGraph(cmd *cobra.Command, team orchestrator.TeamName, graph *orchestrator.SessionGraph) {
	out := cmd.OutOrStdout()

	order := make([]string, 0, len(graph.Order()))
	for _, role := range graph.Order() {
		order = append(order, string(role))
	}

	fmt.Fprintf(out, "Team: %s\n", team)
	fmt.Fprintf(out, "Order: %s\n", strings.Join(order, " -> "))
	fmt.Fprintln(out, "Edges:")
	for _, role := range graph.Roles() {
		node, _ := graph.Node(role)
		next := make([]string, 0, len(node.NextRoles))
		for _, r := range node.NextRoles {
			next = append(next, string(r))
		}
		if len(next) == 0 {
			next = append(next, "(none)")
		}
		fmt.Fprintf(out, "  %s [%s] -> %s\n", role, node.Definition.Name(), strings.Join(next, ", "))
	}

	if refs := graph.ExternalReferences(); len(refs) > 0 {
		fmt.Fprintln(out, "External:")
		for _, ref := range refs {
			fmt.Fprintf(out, "  %s\n", ref)
		}
	}
}
