package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/valkryhx/patent-agents-sub002/api/handlers"
	"github.com/valkryhx/patent-agents-sub002/client"
	"github.com/valkryhx/patent-agents-sub002/config"
	"github.com/valkryhx/patent-agents-sub002/internal/telemetry"
	"github.com/valkryhx/patent-agents-sub002/progress"
	"github.com/valkryhx/patent-agents-sub002/workflow"
)

const defaultAddr = "http://localhost:8000"

// =============================================================================
// 🖥️ serve
// =============================================================================

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the coordinator and agent HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			logger := initLogger(cfg.Log)
			defer func() { _ = logger.Sync() }()

			logger.Info("starting patentd",
				zap.String("version", Version),
				zap.String("build_time", BuildTime),
				zap.String("git_commit", GitCommit),
			)

			otelProviders, err := telemetry.Init(cfg.Telemetry, Version, logger)
			if err != nil {
				logger.Warn("failed to initialize telemetry", zap.Error(err))
			}

			srv, err := NewServer(cfg, logger, otelProviders)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := srv.Run(ctx); err != nil {
				logger.Error("server stopped with error", zap.Error(err))
				return err
			}
			logger.Info("patentd stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to YAML config file")
	return cmd
}

// =============================================================================
// 🚀 launch
// =============================================================================

type launchOptions struct {
	addr         string
	topic        string
	description  string
	workflowType string
	testMode     bool
	wait         bool
	interval     time.Duration
	timeout      time.Duration
}

func newLaunchCmd() *cobra.Command {
	opts := launchOptions{}
	cmd := &cobra.Command{
		Use:   "launch",
		Short: "Start a workflow on a running coordinator and follow its progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("topic") {
				opts.topic = os.Getenv("PATENT_TOPIC")
			}
			if !cmd.Flags().Changed("description") {
				opts.description = os.Getenv("PATENT_DESC")
			}
			return runLaunch(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.addr, "addr", defaultAddr, "coordinator base URL")
	f.StringVar(&opts.topic, "topic", "", "patent topic (default $PATENT_TOPIC)")
	f.StringVar(&opts.description, "description", "", "invention description (default $PATENT_DESC)")
	f.StringVar(&opts.workflowType, "type", "", "workflow type: enhanced or sectioned")
	f.BoolVar(&opts.testMode, "test-mode", true, "use deterministic test executors")
	f.BoolVar(&opts.wait, "wait", true, "poll until the workflow finishes")
	f.DurationVar(&opts.interval, "interval", client.DefaultPollInterval, "status poll interval")
	f.DurationVar(&opts.timeout, "timeout", 0, "give up waiting after this long (0 = no limit)")
	return cmd
}

func runLaunch(ctx context.Context, out io.Writer, opts launchOptions) error {
	if strings.TrimSpace(opts.topic) == "" {
		return errors.New("a topic is required (--topic or PATENT_TOPIC)")
	}
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	c := client.New(opts.addr)
	testMode := opts.testMode
	started, err := c.Start(ctx, handlers.StartRequest{
		Topic:        opts.topic,
		Description:  opts.description,
		WorkflowType: opts.workflowType,
		TestMode:     &testMode,
	})
	if err != nil {
		return fmt.Errorf("start workflow: %w", err)
	}
	fmt.Fprintf(out, "workflow %s started (%s, test_mode=%t)\n", started.WorkflowID, started.WorkflowType, started.TestMode)
	if !opts.wait {
		return nil
	}

	wf, err := c.WaitForCompletion(ctx, started.WorkflowID, opts.interval, func(w *workflow.Workflow) {
		fmt.Fprintf(out, "[%3d%%] %s\n", w.Progress, describeStage(w))
	})
	if err != nil {
		return fmt.Errorf("wait for workflow %s: %w", started.WorkflowID, err)
	}

	if wf.Status != workflow.StatusCompleted {
		fmt.Fprintf(out, "workflow %s %s: %s\n", wf.ID, wf.Status, wf.Error)
		return fmt.Errorf("workflow %s finished with status %s", wf.ID, wf.Status)
	}

	fmt.Fprintf(out, "workflow %s completed\n", wf.ID)
	for _, st := range wf.Stages {
		if st.ArtifactPath != nil {
			fmt.Fprintf(out, "  %-28s %s\n", st.Name, *st.ArtifactPath)
		}
	}
	return nil
}

func describeStage(w *workflow.Workflow) string {
	if w.Status.IsTerminal() {
		return string(w.Status)
	}
	if w.CurrentStage >= 0 && w.CurrentStage < len(w.Stages) {
		st := w.Stages[w.CurrentStage]
		return fmt.Sprintf("stage %d/%d %s (%s)", w.CurrentStage+1, len(w.Stages), st.Name, st.Status)
	}
	return string(w.Status)
}

// =============================================================================
// 👀 watch
// =============================================================================

func newWatchCmd() *cobra.Command {
	var (
		dir      string
		id       string
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print new progress artifacts of a workflow until the final document appears",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd.OutOrStdout(), dir, id, interval)
		},
	}
	f := cmd.Flags()
	f.StringVar(&dir, "dir", config.DefaultProgressConfig().Root, "progress root directory")
	f.StringVar(&id, "id", "", "workflow id")
	f.DurationVar(&interval, "interval", config.DefaultProgressConfig().PollInterval, "poll interval")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

// runWatch 目录尚不存在时持续等待。返回 nil 表示看到了最终文档；
// ctx 结束时返回 ctx.Err()。
func runWatch(ctx context.Context, out io.Writer, dir, id string, interval time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := progress.NewWatcher(dir, id, progress.WithPollInterval(interval))
	fmt.Fprintf(out, "watching %s\n", filepath.Join(dir, id))
	for evt := range w.Watch(ctx) {
		fmt.Fprintf(out, "%s  %-28s %6d bytes\n", evt.Timestamp.Format(time.TimeOnly), evt.Artifact.Name, evt.Artifact.Size)
		if evt.Artifact.Name == progress.Final {
			fmt.Fprintln(out, "final document written")
			return nil
		}
	}
	return ctx.Err()
}

// =============================================================================
// 🏥 health
// =============================================================================

func newHealthCmd() *cobra.Command {
	var (
		addr    string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check a running coordinator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			status, err := client.New(addr).Health(ctx)
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (version %s, %d active workflows)\n",
				strings.ToUpper(status.Status), status.Version, status.ActiveWorkflows)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", defaultAddr, "coordinator base URL")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")
	return cmd
}
