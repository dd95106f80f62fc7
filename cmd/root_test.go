package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestSetVersion(t *testing.T) {
	testVersion := "1.2.3-test"
	originalVersion := rootCmd.Version
	defer func() { rootCmd.Version = originalVersion }()

	SetVersion(testVersion)
	if rootCmd.Version != testVersion {
		t.Errorf("Expected version to be %s, got %s", testVersion, rootCmd.Version)
	}
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "toolception" {
		t.Errorf("Expected Use to be 'toolception', got %s", rootCmd.Use)
	}
	if rootCmd.Short == "" {
		t.Error("Expected Short description to be set")
	}
	if !rootCmd.SilenceUsage {
		t.Error("Expected SilenceUsage to be true")
	}
}

func TestServeCommandRegistered(t *testing.T) {
	found := false
	for _, c := range rootCmd.Commands() {
		if c.Use == "serve" {
			found = true
			break
		}
	}
	if !found {
		t.Error("Expected serve command to be registered on root")
	}
}

func TestVersionCommandExecution(t *testing.T) {
	originalVersion := rootCmd.Version
	defer func() { rootCmd.Version = originalVersion }()
	rootCmd.Version = "1.2.3-test"

	versionCmd := newVersionCmd()
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)

	if !strings.Contains(out.String(), "1.2.3-test") {
		t.Errorf("Expected output to contain version, got %q", out.String())
	}
}
