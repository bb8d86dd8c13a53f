package cli

import (
	"github.com/spf13/cobra"

	"github.com/abdazzam00/biz-dev-agent/pkg/protocol"
)

func newServeCmd(opts *GlobalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve JSON-RPC 2.0 requests over stdin/stdout",
		Long: `Serve JSON-RPC 2.0 requests over stdin/stdout, one request per line.
Methods: tools.list, tools.describe, workflow.validate, workflow.plan,
workflow.run, runs.list and runs.get. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(*opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.close()
			a, err := e.agent()
			if err != nil {
				return err
			}

			h := protocol.NewHandler()
			protocol.RegisterMethods(h, a, e.registry)
			e.logger.Info("serving json-rpc on stdio", "methods", len(h.Methods()), "tools", len(e.registry.Names()))
			return h.Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}
