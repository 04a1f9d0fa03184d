package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jholhewres/chronos/pkg/chronos"
	"github.com/jholhewres/chronos/pkg/chronos/executor"
	"github.com/jholhewres/chronos/pkg/chronos/scheduler"
)

// newScheduleCmd groups the task-management subcommands: list, add,
// pause, resume, remove, run, export, import. Each one opens the
// configured store directly, performs the operation through a short-lived
// Scheduler, and exits - it does not stay resident like `serve`.
func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage scheduled tasks",
	}
	cmd.AddCommand(
		newScheduleListCmd(),
		newScheduleAddCmd(),
		newSchedulePauseCmd(),
		newScheduleResumeCmd(),
		newScheduleRemoveCmd(),
		newScheduleRunCmd(),
		newScheduleExportCmd(),
		newScheduleImportCmd(),
	)
	return cmd
}

// withScheduler opens the configured store and a solo-leadership scheduler
// just long enough to run fn, then tears both down. CLI invocations always
// take the leader role locally: a one-shot management command must not
// block waiting out another instance's lease.
func withScheduler(cmd *cobra.Command, fn func(ctx context.Context, sched *scheduler.Scheduler) error) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	logger := newLogger(cfg.Logging, verbose)

	backend, err := openStore(cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer backend.Close()

	sched := scheduler.New(scheduler.Config{
		Store:    backend,
		Registry: executor.NewRegistry(),
		Logger:   logger,
	})

	ctx := context.Background()
	if err := sched.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize scheduler: %w", err)
	}
	defer sched.Stop()

	return fn(ctx, sched)
}

func newScheduleListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scheduled tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withScheduler(cmd, func(ctx context.Context, sched *scheduler.Scheduler) error {
				tasks, err := sched.ExportTasks(ctx, nil)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tTYPE\tSTATUS\tNEXT RUN")
				for _, t := range tasks.Tasks {
					next := "-"
					if t.NextRunAt != nil {
						next = t.NextRunAt.Format(time.RFC3339)
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Name, t.Type, t.Status, next)
				}
				return w.Flush()
			})
		},
	}
	return cmd
}

func newScheduleAddCmd() *cobra.Command {
	var name, taskType, cronExpr, runAt, when string
	var intervalMs int64

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a new scheduled task",
		RunE: func(cmd *cobra.Command, args []string) error {
			trigger := chronos.TaskTrigger{}
			switch {
			case when != "":
				parsed, ok := scheduler.ParseNaturalLanguage(when, time.Now())
				if !ok {
					return fmt.Errorf("could not parse --when %q as a schedule", when)
				}
				trigger = parsed
			case cronExpr != "":
				trigger.Type = chronos.TriggerCron
				trigger.Expression = cronExpr
			case intervalMs > 0:
				trigger.Type = chronos.TriggerInterval
				trigger.IntervalMs = intervalMs
			case runAt != "":
				parsedTime, err := time.Parse(time.RFC3339, runAt)
				if err != nil {
					return fmt.Errorf("parse --run-at: %w", err)
				}
				trigger.Type = chronos.TriggerOnce
				trigger.RunAt = parsedTime
			default:
				return fmt.Errorf("one of --when, --cron, --interval-ms, --run-at is required")
			}

			return withScheduler(cmd, func(ctx context.Context, sched *scheduler.Scheduler) error {
				task, err := sched.CreateTask(ctx, &chronos.ScheduledTask{
					Name:    name,
					Type:    taskType,
					Trigger: trigger,
					Config:  chronos.DefaultTaskConfig(),
				})
				if err != nil {
					return err
				}
				fmt.Println(task.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "task name")
	cmd.Flags().StringVar(&taskType, "type", "", "executor type")
	cmd.Flags().StringVar(&when, "when", "", `natural-language schedule, e.g. "every 5 minutes", "daily at 9:00", "in 2 hours"`)
	cmd.Flags().StringVar(&cronExpr, "cron", "", "five-field cron expression")
	cmd.Flags().Int64Var(&intervalMs, "interval-ms", 0, "fixed interval in milliseconds")
	cmd.Flags().StringVar(&runAt, "run-at", "", "RFC3339 timestamp for a one-shot task")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("type")
	return cmd
}

func newSchedulePauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause <id>",
		Short: "Pause a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withScheduler(cmd, func(ctx context.Context, sched *scheduler.Scheduler) error {
				return sched.PauseTask(ctx, args[0])
			})
		},
	}
}

func newScheduleResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <id>",
		Short: "Resume a paused task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withScheduler(cmd, func(ctx context.Context, sched *scheduler.Scheduler) error {
				return sched.ResumeTask(ctx, args[0])
			})
		},
	}
}

func newScheduleRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withScheduler(cmd, func(ctx context.Context, sched *scheduler.Scheduler) error {
				existed, err := sched.DeleteTask(ctx, args[0])
				if err != nil {
					return err
				}
				if !existed {
					return fmt.Errorf("task %q not found", args[0])
				}
				return nil
			})
		},
	}
}

func newScheduleRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <id>",
		Short: "Run a task immediately, ignoring its trigger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withScheduler(cmd, func(ctx context.Context, sched *scheduler.Scheduler) error {
				exec, err := sched.RunTaskNow(ctx, args[0])
				if err != nil {
					return err
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(exec)
			})
		},
	}
}

func newScheduleExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [ids...]",
		Short: "Export tasks as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withScheduler(cmd, func(ctx context.Context, sched *scheduler.Scheduler) error {
				envelope, err := sched.ExportTasks(ctx, args)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(envelope)
			})
		},
	}
}

func newScheduleImportCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import tasks from a JSON export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read import file: %w", err)
			}
			var envelope chronos.ExportEnvelope
			if err := json.Unmarshal(data, &envelope); err != nil {
				return fmt.Errorf("parse import file: %w", err)
			}
			return withScheduler(cmd, func(ctx context.Context, sched *scheduler.Scheduler) error {
				result := sched.ImportTasks(ctx, &envelope, chronos.ImportMode(mode))
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			})
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "merge", "import mode: merge or replace")
	return cmd
}
