package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kevinmichaelchen/project-summary/internal/config"
	"github.com/kevinmichaelchen/project-summary/internal/logging"
	"github.com/kevinmichaelchen/project-summary/internal/models"
	"github.com/kevinmichaelchen/project-summary/internal/pipeline"
	"github.com/kevinmichaelchen/project-summary/internal/server"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "project-summary",
		Short: "GitHub repository / ZIP upload → AI project summary",
	}

	root.AddCommand(serveCmd(), summarizeCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP submission endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if addr != "" {
				cfg.ListenAddr = addr
			}
			logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)

			metrics := server.NewMetrics()
			p, err := pipeline.FromConfig(cfg, logger, pipeline.WithObserver(metrics))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if cfg.GitHubToken == "" {
				logger.Warn(ctx, "GITHUB_TOKEN is not set; repository links will fail")
			}

			srv := server.New(p, logger, metrics, server.Options{MaxUploadSize: cfg.MaxUploadSize})
			return srv.Run(ctx, cfg.ListenAddr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides LISTEN_ADDR)")
	return cmd
}

func summarizeCmd() *cobra.Command {
	var repoURL, archivePath string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Summarize a repository and/or local ZIP archive once",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg := config.Load()
			logger := logging.New(cfg.LogLevel, "text", os.Stderr)

			p, err := pipeline.FromConfig(cfg, logger)
			if err != nil {
				return err
			}

			sub := models.Submission{RepoURL: repoURL}
			if archivePath != "" {
				f, err := os.Open(archivePath)
				if err != nil {
					return fmt.Errorf("opening archive: %w", err)
				}
				defer func() { _ = f.Close() }()
				sub.Archive = &models.Upload{Name: f.Name(), Body: f}
			}

			if dryRun {
				text, failures := p.Aggregate(ctx, sub)
				for _, f := range failures {
					fmt.Fprintf(os.Stderr, "WARN: %s\n", f.Message)
				}
				fmt.Print(text)
				return nil
			}

			res := p.Run(ctx, sub)
			for _, w := range res.Warnings {
				fmt.Fprintf(os.Stderr, "WARN: %s\n", w.Message)
			}
			if !res.OK() {
				return res.Err
			}
			fmt.Println(res.Summary)
			return nil
		},
	}
	cmd.Flags().StringVar(&repoURL, "repo", "", "GitHub repository URL")
	cmd.Flags().StringVar(&archivePath, "archive", "", "Path to a ZIP archive")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the extracted text without calling the model")
	return cmd
}
