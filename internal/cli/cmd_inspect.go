package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/abdazzam00/biz-dev-agent/internal/inspector"
	"github.com/abdazzam00/biz-dev-agent/pkg/agent"
)

func newInspectCmd(opts *GlobalOpts) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Serve archived runs, their events and reports over HTTP",
		Args:  cobra.NoArgs,
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
			srv := inspector.New(a.Bus, a, a.Store, e.registry)
			ready := make(chan string, 1)
			go func() {
				if bound, ok := <-ready; ok {
					fmt.Fprintf(cmd.ErrOrStderr(), "Inspector listening on http://%s\n", bound)
				}
			}()
			return srv.Serve(cmd.Context(), addr, ready)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	return cmd
}

// startInspector serves the inspector in the background until ctx is done
// and returns once it is listening.
func startInspector(ctx context.Context, e *env, a *agent.Agent, addr string, w io.Writer) (*inspector.Server, error) {
	srv := inspector.New(a.Bus, a, a.Store, e.registry)
	ready := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx, addr, ready) }()

	select {
	case bound := <-ready:
		fmt.Fprintf(w, "Inspector listening on http://%s\n", bound)
	case err := <-errCh:
		return nil, err
	}
	go func() {
		if err := <-errCh; err != nil {
			e.logger.Warn("inspector stopped", "error", err)
		}
	}()
	return srv, nil
}
