package config

// DefaultConfig returns the built-in configuration matching every default
// named across spec §4–§6. A user's vaultflow.yaml is merged on top of
// this via mergo (see merge.go), so any field left unset here keeps its
// default after merge.
func DefaultConfig() *Config {
	return &Config{
		VaultPath: "./vault",
		Execution: ExecutionConfig{
			Mode:             "DRY_RUN",
			RollbackStrategy: "AUTOMATIC",
			StepTimeoutS:     120,
		},
		Retry: RetryConfig{
			BaseMS:      1000,
			CapMS:       60000,
			MaxAttempts: 5,
		},
		Lock: LockConfig{
			TimeoutS:       10,
			StaleThreshold: 300,
		},
		Bus: BusConfig{
			QueueCapacity:   4096,
			HistoryCapacity: 1000,
		},
		Health: HealthConfig{
			IntervalS: 30,
			TimeoutS:  5,
		},
		Dashboard: DashboardConfig{
			IntervalMS: 30000,
		},
		Audit: AuditConfig{
			Path:        "./vault/System_Log/Audit/immutable_audit.jsonl",
			IndexDSNEnv: "VAULTFLOW_AUDIT_INDEX_DSN",
		},
		Retention: RetentionConfig{
			ArchivedMaxAgeDays:   30,
			DeadLetterMaxAgeDays: 14,
			IntervalS:            3600,
		},
		Credentials: CredentialsConfig{
			PassphraseEnv: "VAULTFLOW_MASTER_PASSPHRASE",
		},
		Notify: NotifyConfig{
			Slack: SlackNotifyConfig{
				Enabled:   false,
				TokenEnv:  "SLACK_BOT_TOKEN",
				TimeoutMS: 10000,
			},
		},
	}
}
