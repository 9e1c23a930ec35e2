// Package testsupport provides scripted collaborators shared by package tests.
package testsupport

import (
	"context"
	"strings"
	"sync"

	"github.com/jarrodldavis/npm-version-scripts/internal/execshell"
)

const commandLineSeparatorConstant = " "

// ScriptedResponse pairs a command-line fragment with the outcome returned when it matches.
type ScriptedResponse struct {
	Contains string
	Output   string
	ExitCode int
	Error    error
}

// RecordedCommand is a single invocation observed by CommandExecutorStub.
type RecordedCommand struct {
	Name    execshell.CommandName
	Details execshell.CommandDetails
}

// Line renders the invocation as a single command line.
func (recorded RecordedCommand) Line() string {
	return CommandLine(recorded.Name, recorded.Details.Arguments)
}

// CommandLine joins a command name with its arguments.
func CommandLine(name execshell.CommandName, arguments []string) string {
	return strings.Join(append([]string{string(name)}, arguments...), commandLineSeparatorConstant)
}

// CommandExecutorStub replays scripted results for git, GitHub CLI, and arbitrary commands.
// The first response whose fragment appears in the command line wins; unmatched commands succeed with empty output.
type CommandExecutorStub struct {
	Responses []ScriptedResponse

	mutex    sync.Mutex
	Recorded []RecordedCommand
}

// ExecuteGit records and answers a git invocation.
func (executor *CommandExecutorStub) ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	return executor.ExecuteCommand(executionContext, execshell.CommandGit, details)
}

// ExecuteGitHubCLI records and answers a GitHub CLI invocation.
func (executor *CommandExecutorStub) ExecuteGitHubCLI(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	return executor.ExecuteCommand(executionContext, execshell.CommandGitHub, details)
}

// ExecuteCommand records and answers an invocation of any executable.
func (executor *CommandExecutorStub) ExecuteCommand(_ context.Context, name execshell.CommandName, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.mutex.Lock()
	defer executor.mutex.Unlock()

	command := execshell.ShellCommand{Name: name, Details: details}
	executor.Recorded = append(executor.Recorded, RecordedCommand{Name: name, Details: details})
	commandLine := CommandLine(name, details.Arguments)

	for _, response := range executor.Responses {
		if !strings.Contains(commandLine, response.Contains) {
			continue
		}
		if response.Error != nil {
			return execshell.ExecutionResult{}, response.Error
		}
		result := execshell.ExecutionResult{StandardOutput: response.Output, ExitCode: response.ExitCode}
		if response.ExitCode != 0 {
			result.StandardError = response.Output
			return execshell.ExecutionResult{}, execshell.CommandFailedError{Command: command, Result: result}
		}
		return result, nil
	}
	return execshell.ExecutionResult{}, nil
}

// Lines returns every recorded command line in invocation order.
func (executor *CommandExecutorStub) Lines() []string {
	executor.mutex.Lock()
	defer executor.mutex.Unlock()

	lines := make([]string, 0, len(executor.Recorded))
	for _, recorded := range executor.Recorded {
		lines = append(lines, recorded.Line())
	}
	return lines
}

// LinesWithPrefix returns recorded command lines beginning with the provided prefix.
func (executor *CommandExecutorStub) LinesWithPrefix(prefix string) []string {
	filtered := make([]string, 0)
	for _, line := range executor.Lines() {
		if strings.HasPrefix(line, prefix) {
			filtered = append(filtered, line)
		}
	}
	return filtered
}
