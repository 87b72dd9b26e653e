package config

import (
	"fmt"
)

// Validator validates a resolved Config comprehensively, stopping at the
// first error (teacher's pkg/config/validator.go fail-fast shape).
type Validator struct {
	cfg *Config
}

// NewValidator constructs a Validator for cfg.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// Validate is a convenience wrapper around NewValidator(cfg).ValidateAll().
func Validate(cfg *Config) error {
	return NewValidator(cfg).ValidateAll()
}

// ValidateAll validates the vault, execution, retry, lock, approval, and
// notify sections in that order, returning the first error. The bus,
// health, dashboard, audit, retention, and credentials sections are not
// checked.
func (v *Validator) ValidateAll() error {
	if err := v.validateVault(); err != nil {
		return fmt.Errorf("vault: %w", err)
	}
	if err := v.validateExecution(); err != nil {
		return fmt.Errorf("execution: %w", err)
	}
	if err := v.validateRetry(); err != nil {
		return fmt.Errorf("retry: %w", err)
	}
	if err := v.validateLock(); err != nil {
		return fmt.Errorf("lock: %w", err)
	}
	if err := v.validateApproval(); err != nil {
		return fmt.Errorf("approval: %w", err)
	}
	if err := v.validateNotify(); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

func (v *Validator) validateVault() error {
	if v.cfg.VaultPath == "" {
		return NewValidationError("vault", "vault_path", ErrMissingRequiredField)
	}
	return nil
}

func (v *Validator) validateExecution() error {
	switch v.cfg.Execution.Mode {
	case "DRY_RUN", "REAL", "SIMULATED":
	default:
		return NewValidationError("execution", "mode", fmt.Errorf("%w: %q", ErrInvalidValue, v.cfg.Execution.Mode))
	}
	switch v.cfg.Execution.RollbackStrategy {
	case "AUTOMATIC", "MANUAL", "NONE":
	default:
		return NewValidationError("execution", "rollback_strategy", fmt.Errorf("%w: %q", ErrInvalidValue, v.cfg.Execution.RollbackStrategy))
	}
	if v.cfg.Execution.StepTimeoutS <= 0 {
		return NewValidationError("execution", "step_timeout_s", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	return nil
}

func (v *Validator) validateRetry() error {
	r := v.cfg.Retry
	if r.BaseMS <= 0 {
		return NewValidationError("retry", "base_ms", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if r.CapMS < r.BaseMS {
		return NewValidationError("retry", "cap_ms", fmt.Errorf("%w: must be >= base_ms", ErrInvalidValue))
	}
	if r.MaxAttempts <= 0 {
		return NewValidationError("retry", "max_attempts", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	return nil
}

func (v *Validator) validateLock() error {
	if v.cfg.Lock.TimeoutS <= 0 {
		return NewValidationError("lock", "timeout_s", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if v.cfg.Lock.StaleThreshold <= 0 {
		return NewValidationError("lock", "stale_threshold_s", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	return nil
}

var validRiskLevels = map[string]bool{"": true, "low": true, "medium": true, "high": true, "critical": true}
var validDecisions = map[string]bool{"auto_approve": true, "require_approval": true, "auto_reject": true, "escalate": true}

func (v *Validator) validateApproval() error {
	seen := make(map[string]bool)
	for i, r := range v.cfg.Approval.Rules {
		section := fmt.Sprintf("approval.rules[%d]", i)
		if r.RuleID == "" {
			return NewValidationError(section, "rule_id", ErrMissingRequiredField)
		}
		if seen[r.RuleID] {
			return NewValidationError(section, "rule_id", fmt.Errorf("%w: duplicate %q", ErrInvalidValue, r.RuleID))
		}
		seen[r.RuleID] = true

		if !validDecisions[r.Decision] {
			return NewValidationError(section, "decision", fmt.Errorf("%w: %q", ErrInvalidValue, r.Decision))
		}
		if !validRiskLevels[r.MinRiskLevel] {
			return NewValidationError(section, "min_risk_level", fmt.Errorf("%w: %q", ErrInvalidValue, r.MinRiskLevel))
		}
		if !validRiskLevels[r.MaxRiskLevel] {
			return NewValidationError(section, "max_risk_level", fmt.Errorf("%w: %q", ErrInvalidValue, r.MaxRiskLevel))
		}
	}
	return nil
}

func (v *Validator) validateNotify() error {
	s := v.cfg.Notify.Slack
	if s.Enabled && s.Channel == "" {
		return NewValidationError("notify.slack", "channel", ErrMissingRequiredField)
	}
	return nil
}
