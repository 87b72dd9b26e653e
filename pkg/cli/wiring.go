package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/vaultflow/vaultflow/pkg/approval"
	"github.com/vaultflow/vaultflow/pkg/config"
	"github.com/vaultflow/vaultflow/pkg/notify"
	"github.com/vaultflow/vaultflow/pkg/orchestrator"
	"github.com/vaultflow/vaultflow/pkg/retention"
)

func newApprovalEngine(cfg *config.Config) *approval.Engine {
	return approval.NewEngine(cfg.ApprovalRules())
}

// buildNotifier constructs the Slack notifier when enabled, otherwise a
// Noop. A configured but unreadable bot token is a usage error: the
// operator asked for Slack escalation and it can't be wired.
func buildNotifier(cfg *config.Config, logger *slog.Logger) (notify.Notifier, error) {
	s := cfg.Notify.Slack
	if !s.Enabled {
		return notify.Noop{}, nil
	}
	token := os.Getenv(s.TokenEnv)
	if token == "" {
		return nil, fmt.Errorf("notify.slack is enabled but %s is unset", s.TokenEnv)
	}
	timeout := time.Duration(s.TimeoutMS) * time.Millisecond
	return notify.NewSlackNotifier(token, s.Channel, timeout, logger), nil
}

func retentionConfigFrom(cfg *config.Config) retention.Config {
	return retention.Config{
		ArchivedMaxAge:   time.Duration(cfg.Retention.ArchivedMaxAgeDays) * 24 * time.Hour,
		DeadLetterMaxAge: time.Duration(cfg.Retention.DeadLetterMaxAgeDays) * 24 * time.Hour,
		Interval:         time.Duration(cfg.Retention.IntervalS) * time.Second,
	}
}

func dashboardInterval(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Dashboard.IntervalMS) * time.Millisecond
}

func orchestratorConfigFrom(cfg *config.Config) orchestrator.Config {
	return orchestrator.Config{
		HealthInterval: time.Duration(cfg.Health.IntervalS) * time.Second,
		HealthTimeout:  time.Duration(cfg.Health.TimeoutS) * time.Second,
		DrainDeadline:  orchestrator.DefaultConfig().DrainDeadline,
	}
}
