// Command ccos runs the CCOS pipeline end to end: it turns a natural
// language goal into an intent graph, synthesizes and resolves a plan for
// each intent, and executes the graph through the orchestrator, printing
// the resulting causal chain.
//
// # Configuration
//
// Environment variables (see ccos/config):
//
//	CCOS_ENGINE                - "inproc" (default) or "temporal"
//	CCOS_TEMPORAL_HOST_PORT    - Temporal frontend address
//	CCOS_TEMPORAL_TASK_QUEUE   - Temporal task queue name
//	CCOS_MONGO_URI             - enables Mongo-backed stores when set
//	CCOS_MONGO_DB              - Mongo database name
//	CCOS_REDIS_ADDR            - enables a Pulse/Redis-backed distributed
//	                             event bus when set; in-process otherwise
//	CCOS_POLICY_MODE           - "pure", "controlled", or "full"
//	CCOS_MODEL_ENDPOINT        - oracle HTTP endpoint; unset uses a canned
//	                             stub oracle suitable for local demos
//	CCOS_MODEL_AUTH_ENV        - env var carrying the oracle's bearer token
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mandubian/ccos-sub004/cmd/ccos/internal/wiring"
)

func main() {
	root := &cobra.Command{
		Use:   "ccos",
		Short: "cognitive computing orchestrator CLI",
	}
	root.AddCommand(newRunCommand())
	root.AddCommand(newCapabilityCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRunCommand() *cobra.Command {
	var (
		goal         string
		policyMode   string
		capabilities []string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "turn a natural-language goal into an intent graph and execute it",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := wiring.New(cmd.Context())
			if err != nil {
				return err
			}
			return wiring.RunGoal(cmd.Context(), app, goal, policyMode, capabilities, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&goal, "goal", "g", "", "natural-language goal to pursue (required)")
	cmd.Flags().StringVar(&policyMode, "policy", "", "override CCOS_POLICY_MODE for this run")
	cmd.Flags().StringSliceVar(&capabilities, "allow", nil, "capability ids permitted under controlled mode")
	_ = cmd.MarkFlagRequired("goal")
	return cmd
}

func newCapabilityCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capabilities",
		Short: "list capabilities registered in the marketplace",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := wiring.New(cmd.Context())
			if err != nil {
				return err
			}
			return wiring.ListCapabilities(cmd.Context(), app, cmd.OutOrStdout())
		},
	}
	return cmd
}
