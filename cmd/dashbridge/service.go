package main

import (
	"github.com/spf13/cobra"

	"github.com/chris/dashbridge/internal/service"
)

func newServiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage dashbridge as a background service",
	}
	for _, sub := range []struct {
		use, short string
		run        func() error
	}{
		{"install", "Install the binary and register the service", service.Install},
		{"uninstall", "Unregister the service and remove the binary", service.Uninstall},
		{"start", "Start the service", service.Start},
		{"stop", "Stop the service", service.Stop},
		{"restart", "Restart the service", service.Restart},
		{"status", "Show service status", service.Status},
		{"logs", "Follow service logs", service.Logs},
	} {
		run := sub.run
		cmd.AddCommand(&cobra.Command{
			Use:   sub.use,
			Short: sub.short,
			Args:  cobra.NoArgs,
			RunE:  func(cmd *cobra.Command, args []string) error { return run() },
		})
	}
	return cmd
}
