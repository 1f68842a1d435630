package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/V-Zibrin/loadknee/internal/testserver"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the fixed-response target server used for harness testing",
		RunE:  runServe,
	}
	cmd.Flags().String("host", "127.0.0.1", "Address to bind")
	cmd.Flags().Int("port", 8080, "Port to bind (0 picks a free port)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	host, err := cmd.Flags().GetString("host")
	if err != nil {
		return err
	}
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	server, err := testserver.Listen(fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return err
	}
	defer server.Close()

	fmt.Fprintf(os.Stdout, "serving on http://%s/ (Ctrl-C to stop)\n", server.Addr())
	return server.Serve(ctx)
}
