// Package config loads vaultflow.yaml: vault location, the workflow
// engine's lock/retry tunables, the bus and health monitor's tunables,
// the approval rule set, the dashboard writer's interval, and the audit
// and credential store paths (spec §6 "Configuration").
package config

import (
	"time"

	"github.com/vaultflow/vaultflow/pkg/approval"
	"github.com/vaultflow/vaultflow/pkg/execution"
	"github.com/vaultflow/vaultflow/pkg/models"
	"github.com/vaultflow/vaultflow/pkg/workflow"
)

// Config is the fully resolved, validated configuration vaultflow runs
// with — defaults merged with any user-supplied vaultflow.yaml overlay.
type Config struct {
	configDir string

	VaultPath string `yaml:"vault_path"`

	Execution ExecutionConfig `yaml:"execution"`
	Retry     RetryConfig     `yaml:"retry"`
	Lock      LockConfig      `yaml:"lock"`
	Bus       BusConfig       `yaml:"bus"`
	Health    HealthConfig    `yaml:"health"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Audit     AuditConfig     `yaml:"audit"`
	Retention RetentionConfig `yaml:"retention"`

	Approval ApprovalConfig `yaml:"approval"`

	Credentials CredentialsConfig `yaml:"credentials"`
	Notify      NotifyConfig      `yaml:"notify"`
}

// ExecutionConfig mirrors execution.Config's YAML-facing fields (spec §6
// execution.mode, execution.rollback_strategy).
type ExecutionConfig struct {
	Mode             string `yaml:"mode"`
	RollbackStrategy string `yaml:"rollback_strategy"`
	StepTimeoutS     int    `yaml:"step_timeout_s"`
}

// RetryConfig mirrors workflow.RetryPolicy (spec §4.3 "Retry with backoff").
type RetryConfig struct {
	BaseMS      int `yaml:"base_ms"`
	CapMS       int `yaml:"cap_ms"`
	MaxAttempts int `yaml:"max_attempts"`
}

// LockConfig mirrors workflow.Engine's lock tunables (spec §4.3 "File
// locking").
type LockConfig struct {
	TimeoutS       int `yaml:"timeout_s"`
	StaleThreshold int `yaml:"stale_threshold_s"`
}

// BusConfig tunes pkg/bus (spec §4.1).
type BusConfig struct {
	QueueCapacity   int `yaml:"queue_capacity"`
	HistoryCapacity int `yaml:"history_capacity"`
}

// HealthConfig tunes the orchestrator's health monitor (spec §5 "Timeouts").
type HealthConfig struct {
	IntervalS int `yaml:"interval_s"`
	TimeoutS  int `yaml:"timeout_s"`
}

// DashboardConfig tunes the dashboard writer (spec §4.6).
type DashboardConfig struct {
	IntervalMS int `yaml:"interval_ms"`
}

// AuditConfig locates the audit log and, optionally, the secondary
// Postgres index (spec §4.2).
type AuditConfig struct {
	Path string `yaml:"path"`

	// IndexDSNEnv names the environment variable holding the Postgres
	// DSN for the optional secondary index. Empty means no index is
	// attached — the JSONL log alone remains fully functional.
	IndexDSNEnv string `yaml:"index_dsn_env"`
}

// RetentionConfig tunes pkg/retention's purge ages.
type RetentionConfig struct {
	ArchivedMaxAgeDays   int `yaml:"archived_max_age_days"`
	DeadLetterMaxAgeDays int `yaml:"dead_letter_max_age_days"`
	IntervalS            int `yaml:"interval_s"`
}

// ApprovalConfig holds user-extensible approval rules layered on top of
// the built-in set (spec §4.4 "Rules are built-in but user-extensible by
// configuration").
type ApprovalConfig struct {
	Rules []RuleConfig `yaml:"rules"`
}

// RuleConfig is the YAML-facing shape of one approval.Rule.
type RuleConfig struct {
	RuleID         string   `yaml:"rule_id"`
	Name           string   `yaml:"name"`
	Priority       int      `yaml:"priority"`
	ActionTypes    []string `yaml:"action_types"`
	MinRiskLevel   string   `yaml:"min_risk_level"`
	MaxRiskLevel   string   `yaml:"max_risk_level"`
	MinDurationMin int      `yaml:"min_duration_min"`
	MaxDurationMin int      `yaml:"max_duration_min"`
	Decision       string   `yaml:"decision"`
	Approvers      []string `yaml:"approvers"`
}

// CredentialsConfig points at the master passphrase used by
// pkg/credentials (loaded from the environment, never stored in YAML).
type CredentialsConfig struct {
	PassphraseEnv string `yaml:"passphrase_env"`
}

// NotifyConfig configures the optional Slack escalation notifier.
type NotifyConfig struct {
	Slack SlackNotifyConfig `yaml:"slack"`
}

// SlackNotifyConfig holds Slack transport settings; the bot token itself
// is read from TokenEnv, never from YAML.
type SlackNotifyConfig struct {
	Enabled   bool   `yaml:"enabled"`
	TokenEnv  string `yaml:"token_env"`
	Channel   string `yaml:"channel"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

// ConfigDir returns the directory Config was loaded from.
func (c *Config) ConfigDir() string { return c.configDir }

// WorkflowConfig translates the resolved config into workflow.Config.
func (c *Config) WorkflowConfig() workflow.Config {
	return workflow.Config{
		LockTimeout: time.Duration(c.Lock.TimeoutS) * time.Second,
		LockStale:   time.Duration(c.Lock.StaleThreshold) * time.Second,
		Retry: workflow.RetryPolicy{
			Base:        time.Duration(c.Retry.BaseMS) * time.Millisecond,
			Cap:         time.Duration(c.Retry.CapMS) * time.Millisecond,
			MaxAttempts: c.Retry.MaxAttempts,
		},
	}
}

// ExecutionEngineConfig translates the resolved config into execution.Config.
func (c *Config) ExecutionEngineConfig() execution.Config {
	return execution.Config{
		Mode:             execution.Mode(c.Execution.Mode),
		RollbackStrategy: execution.RollbackStrategy(c.Execution.RollbackStrategy),
		StepTimeout:      time.Duration(c.Execution.StepTimeoutS) * time.Second,
		Retry: workflow.RetryPolicy{
			Base:        time.Duration(c.Retry.BaseMS) * time.Millisecond,
			Cap:         time.Duration(c.Retry.CapMS) * time.Millisecond,
			MaxAttempts: c.Retry.MaxAttempts,
		},
	}
}

// ApprovalRules translates the YAML rule overlay into approval.Rule
// values, appended after the built-in set. List position does not decide
// evaluation order: the approval engine sorts by ascending priority, so an
// overlay rule with a lower priority number than a built-in is evaluated
// before it.
func (c *Config) ApprovalRules() []approval.Rule {
	rules := approval.DefaultRules()
	for _, rc := range c.Approval.Rules {
		rules = append(rules, ruleFromConfig(rc))
	}
	return rules
}

func ruleFromConfig(rc RuleConfig) approval.Rule {
	types := make([]models.ActionType, 0, len(rc.ActionTypes))
	for _, t := range rc.ActionTypes {
		types = append(types, models.ActionType(t))
	}
	return approval.Rule{
		RuleID:         rc.RuleID,
		Name:           rc.Name,
		Priority:       rc.Priority,
		ActionTypes:    types,
		MinRiskLevel:   models.RiskLevel(rc.MinRiskLevel),
		MaxRiskLevel:   models.RiskLevel(rc.MaxRiskLevel),
		MinDurationMin: rc.MinDurationMin,
		MaxDurationMin: rc.MaxDurationMin,
		Decision:       models.Decision(rc.Decision),
		Approvers:      rc.Approvers,
	}
}
