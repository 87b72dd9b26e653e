package config

import (
	"fmt"

	"dario.cat/mergo"
)

// mergeOverlay merges a user-supplied overlay on top of defaults,
// non-zero overlay fields winning, following the same mergo.WithOverride
// pattern the teacher uses for its queue config merge. Approval.Rules is
// deliberately excluded from the struct merge and handled by
// Config.ApprovalRules, which appends the overlay's rules after the
// built-in set rather than overwriting it.
func mergeOverlay(defaults *Config, overlay *Config) (*Config, error) {
	overlayRules := overlay.Approval.Rules
	overlay.Approval.Rules = nil

	merged := *defaults
	if err := mergo.Merge(&merged, overlay, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("config: merge overlay: %w", err)
	}
	merged.Approval.Rules = overlayRules
	return &merged, nil
}
