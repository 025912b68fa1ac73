package main

import (
	"fmt"

	"github.com/OFFIS-RIT/graphlearn/internal/app"
	"github.com/OFFIS-RIT/graphlearn/internal/pipeline"

	"github.com/spf13/cobra"
)

type ingestOutput struct {
	DocumentID    string `json:"document_id"`
	Outcome       string `json:"outcome"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
	Nodes         int    `json:"nodes"`
	Edges         int    `json:"edges"`
}

type expandOutput struct {
	DocumentID string `json:"document_id"`
	NewNodes   int    `json:"new_nodes"`
	NewEdges   int    `json:"new_edges"`
}

func newIngestOutput(res pipeline.IngestResult) ingestOutput {
	return ingestOutput{
		DocumentID:    res.DocumentID,
		Outcome:       string(res.Outcome),
		Status:        string(res.Status),
		FailureReason: string(res.Reason),
		Nodes:         res.Nodes,
		Edges:         res.Edges,
	}
}

func newIngestCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <document-id>",
		Short: "Extract the knowledge graph of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return state.withApp(cmd, func(a *app.App) error {
				res := a.Pipeline.Ingest(cmd.Context(), args[0])
				if err := writeJSON(cmd.OutOrStdout(), newIngestOutput(res)); err != nil {
					return err
				}
				if res.Outcome != pipeline.OutcomeCompleted {
					return fmt.Errorf("ingest of %s ended with %s", args[0], res.Outcome)
				}
				return nil
			})
		},
	}
}

func newExpandCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "expand <document-id> <node-id> <topic>",
		Short: "Grow a document graph below a node with reference text about a topic",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return state.withApp(cmd, func(a *app.App) error {
				res, err := a.Pipeline.Expand(cmd.Context(), args[0], args[1], args[2])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), expandOutput{
					DocumentID: args[0],
					NewNodes:   res.NewNodes,
					NewEdges:   res.NewEdges,
				})
			})
		},
	}
}
