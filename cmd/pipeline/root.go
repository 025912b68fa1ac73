package main

import (
	"encoding/json"
	"io"

	"github.com/OFFIS-RIT/graphlearn/internal/app"
	"github.com/OFFIS-RIT/graphlearn/internal/config"
	"github.com/OFFIS-RIT/graphlearn/internal/util"
	"github.com/OFFIS-RIT/graphlearn/pkg/logger"
	"github.com/OFFIS-RIT/graphlearn/pkg/logger/console"

	"github.com/spf13/cobra"
)

type cliState struct {
	envFiles []string
	cfg      config.Config
}

func newRootCmd() *cobra.Command {
	state := &cliState{}

	root := &cobra.Command{
		Use:          "graphlearn",
		Short:        "Build and grow knowledge graphs from stored documents",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			util.LoadEnv(state.envFiles...)

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{
				Debug:  cfg.Debug,
				JSON:   cfg.LogJSON,
				Output: cmd.ErrOrStderr(),
			}))
			state.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringSliceVar(&state.envFiles, "env", nil, "dotenv files to load (default .env)")

	root.AddCommand(newIngestCmd(state), newExpandCmd(state))
	return root
}

func (s *cliState) withApp(cmd *cobra.Command, fn func(a *app.App) error) error {
	a, err := app.New(cmd.Context(), s.cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
