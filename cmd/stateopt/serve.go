package main

import (
	"github.com/spf13/cobra"

	"github.com/tailored-agentic-units/stateopt/server"
)

func newServeCmd(c *Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "serve the optimizer over Connect RPC",
		Long: `Serve exposes the Optimize, Analyze and Simulate procedures of
stateopt.v1.OptimizerService over HTTP. Clients may use the Connect, gRPC
or gRPC-Web protocols.`,
		Args: cobra.NoArgs,
		RunE: mkRunE(c, runServe),
	}
	cmd.Flags().String(string(flagAddr), "", "listen address (overrides config)")
	return cmd
}

func runServe(c *Command, args []string) error {
	cfg := c.cfg
	if flagAddr.IsSet(c) {
		cfg.Server.Addr = flagAddr.String(c)
	}

	srv, err := server.New(cfg)
	if err != nil {
		return err
	}
	c.logger.Info("serving", "addr", cfg.Server.Addr, "service", server.ServiceName)
	return srv.ListenAndServe(c.Context())
}
