package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	require.NoError(t, Validate(DefaultConfig()))
}

func TestInitializeWithoutOverlayReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Initialize(t.Context(), dir)
	require.NoError(t, err)
	require.Equal(t, "./vault", cfg.VaultPath)
	require.Equal(t, "DRY_RUN", cfg.Execution.Mode)
	require.Len(t, cfg.ApprovalRules(), 6)
}

func TestInitializeMergesOverlayOverDefaults(t *testing.T) {
	dir := t.TempDir()
	yaml := `
vault_path: /srv/myvault
execution:
  mode: REAL
retry:
  max_attempts: 3
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vaultflow.yaml"), []byte(yaml), 0o644))

	cfg, err := Initialize(t.Context(), dir)
	require.NoError(t, err)
	require.Equal(t, "/srv/myvault", cfg.VaultPath)
	require.Equal(t, "REAL", cfg.Execution.Mode)
	require.Equal(t, "AUTOMATIC", cfg.Execution.RollbackStrategy, "unset overlay fields keep their default")
	require.Equal(t, 3, cfg.Retry.MaxAttempts)
	require.Equal(t, 1000, cfg.Retry.BaseMS, "unset overlay fields keep their default")
}

func TestInitializeExpandsEnvVars(t *testing.T) {
	dir := t.TempDir()
	os.Setenv("VAULTFLOW_TEST_VAULT_PATH", "/env/vault")
	defer os.Unsetenv("VAULTFLOW_TEST_VAULT_PATH")

	yaml := "vault_path: ${VAULTFLOW_TEST_VAULT_PATH}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vaultflow.yaml"), []byte(yaml), 0o644))

	cfg, err := Initialize(t.Context(), dir)
	require.NoError(t, err)
	require.Equal(t, "/env/vault", cfg.VaultPath)
}

func TestInitializeAppendsOverlayApprovalRulesAfterBuiltins(t *testing.T) {
	dir := t.TempDir()
	yaml := `
approval:
  rules:
    - rule_id: custom-vip
      name: VIP customers always escalate
      priority: 0
      decision: escalate
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vaultflow.yaml"), []byte(yaml), 0o644))

	cfg, err := Initialize(t.Context(), dir)
	require.NoError(t, err)
	rules := cfg.ApprovalRules()
	require.Len(t, rules, 7)
	require.Equal(t, "custom-vip", rules[len(rules)-1].RuleID)
}

func TestInvalidExecutionModeFailsValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Execution.Mode = "BOGUS"
	err := Validate(cfg)
	require.Error(t, err)
}

func TestDuplicateRuleIDsFailValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Approval.Rules = []RuleConfig{
		{RuleID: "dup", Decision: "escalate"},
		{RuleID: "dup", Decision: "auto_approve"},
	}
	err := Validate(cfg)
	require.Error(t, err)
}

func TestSlackEnabledWithoutChannelFailsValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Notify.Slack.Enabled = true
	err := Validate(cfg)
	require.Error(t, err)
}
