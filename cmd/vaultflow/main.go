// Command vaultflow runs the local-first automation orchestrator: the
// ingestion watcher, workflow engine, approval engine, execution engine,
// retention sweeper, and dashboard writer, plus the operator CLI for
// inspecting and resolving pending approvals.
package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/vaultflow/vaultflow/pkg/cli"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := getEnv("VAULTFLOW_CONFIG_DIR", "./config")
	envPath := filepath.Join(configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("vaultflow: no %s loaded (%v), using existing environment", envPath, err)
	}

	os.Exit(cli.Execute())
}
