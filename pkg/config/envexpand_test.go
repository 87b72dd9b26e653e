package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnv(t *testing.T) {
	os.Setenv("VAULTFLOW_TEST_TOKEN", "secret123")
	defer os.Unsetenv("VAULTFLOW_TEST_TOKEN")

	input := "token: ${VAULTFLOW_TEST_TOKEN}"
	want := "token: secret123"
	assert.Equal(t, want, string(ExpandEnv([]byte(input))))
}

func TestExpandEnvMissingVarExpandsToEmpty(t *testing.T) {
	input := "token: ${VAULTFLOW_DOES_NOT_EXIST}"
	want := "token: "
	assert.Equal(t, want, string(ExpandEnv([]byte(input))))
}

func TestExpandEnvShellStyleWithoutBraces(t *testing.T) {
	os.Setenv("VAULTFLOW_TEST_PATH", "/vault")
	defer os.Unsetenv("VAULTFLOW_TEST_PATH")

	input := "vault_path: $VAULTFLOW_TEST_PATH/data"
	want := "vault_path: /vault/data"
	assert.Equal(t, want, string(ExpandEnv([]byte(input))))
}
