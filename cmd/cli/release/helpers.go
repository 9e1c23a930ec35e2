package release

import (
	"context"

	"go.uber.org/zap"

	"github.com/jarrodldavis/npm-version-scripts/internal/execshell"
)

// LoggerProvider yields a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// CommandExecutor runs git, the GitHub CLI, and project tooling.
type CommandExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
	ExecuteGitHubCLI(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
	ExecuteCommand(executionContext context.Context, name execshell.CommandName, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// ToolChecker verifies that required executables are installed.
type ToolChecker interface {
	Require(tools ...execshell.CommandName) error
}

func resolveLogger(provider LoggerProvider) *zap.Logger {
	if provider == nil {
		return zap.NewNop()
	}
	logger := provider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
