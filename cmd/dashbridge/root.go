package main

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

func newRootCmd() *cobra.Command {
	var logFile string
	cmd := &cobra.Command{
		Use:           "dashbridge",
		Short:         "Chat with your Grafana dashboards through an LLM.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if logFile == "" {
				logFile = os.Getenv("LOG_FILE")
			}
			log.SetOutput(logSink(cmd.ErrOrStderr(), logFile))
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file, rotated (default $LOG_FILE)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newServiceCmd())
	return cmd
}

func logSink(stderr io.Writer, path string) io.Writer {
	if path == "" {
		return stderr
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		log.Printf("log file disabled: %v", err)
		return stderr
	}
	return io.MultiWriter(stderr, &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50,
		MaxAge:     7,
		MaxBackups: 3,
		Compress:   true,
	})
}
