package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hochfrequenz/e2e-self-heal/internal/domain"
	"github.com/hochfrequenz/e2e-self-heal/internal/notify"
	"github.com/hochfrequenz/e2e-self-heal/internal/runstore"
	"github.com/hochfrequenz/e2e-self-heal/internal/supervisor"
)

var superviseWatch bool

func init() {
	superviseCmd := &cobra.Command{
		Use:   "supervise",
		Short: "Combine the agent reports into a pipeline decision",
		Long: `supervise reads the agent reports from the output directory and
writes supervisor-decision.json. The command always exits 0; the
decision itself tells the pipeline what to do next.`,
		RunE: runSupervise,
	}
	superviseCmd.Flags().BoolVar(&superviseWatch, "watch", false, "re-evaluate whenever a report changes")
	rootCmd.AddCommand(superviseCmd)
}

func runSupervise(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// slack_webhook may list several comma-separated channels
	var notifiers []notify.Notifier
	for _, url := range strings.Split(cfg.Notifications.SlackWebhook, ",") {
		if url = strings.TrimSpace(url); url != "" {
			notifiers = append(notifiers, notify.NewSlackNotifier(url))
		}
	}
	var notifier notify.Notifier = notify.NoopNotifier{}
	if len(notifiers) > 0 {
		notifier = notify.NewMultiNotifier(notifiers...)
	}

	var recorder supervisor.Recorder
	store, err := runstore.New(cfg.General.DatabasePath)
	if err != nil {
		logger.Warn("decision history disabled", zap.Error(err))
	} else {
		defer store.Close()
		recorder = store
	}

	opts := supervisor.Options{
		OutputDir:   cfg.ProjectPath(cfg.Agents.OutputDir),
		ContextPath: cfg.ProjectPath(cfg.Agents.ContextPath),
		Repository:  cfg.Agents.GitHubRepository,
	}
	sup := supervisor.New(opts, recorder, notifier, logger)

	evaluate(ctx, sup)
	if !superviseWatch {
		return nil
	}

	w, err := supervisor.NewWatcher(opts, func(changed []string) {
		logger.Debug("reports changed", zap.Strings("files", changed))
		evaluate(ctx, sup)
	}, logger)
	if err != nil {
		logger.Error("watching reports", zap.Error(err))
		return nil
	}
	summary(dimColor, "Watching %s", opts.OutputDir)
	w.Run(ctx)
	return nil
}

// decisionOutput is the decision with the command status in front
type decisionOutput struct {
	Status string `json:"status"`
	supervisor.Decision
}

// evaluate prints the decision. Failures are logged only so the pipeline
// step never fails on the supervisor itself.
func evaluate(ctx context.Context, sup *supervisor.Supervisor) {
	d, err := sup.Evaluate(ctx)
	if err != nil {
		logger.Error("evaluating reports", zap.Error(err))
	}
	switch d.Decision {
	case domain.DecisionOK:
		summary(okColor, "Decision: %s", d.Decision)
	default:
		summary(failColor, "Decision: %s (%s)", d.Decision, d.Reason)
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	if err := printJSON(decisionOutput{Status: status, Decision: d}); err != nil {
		logger.Error("printing decision", zap.Error(err))
	}
}
