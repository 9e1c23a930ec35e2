package execshell

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"sort"
)

const environmentAssignmentSeparatorConstant = "="

// OSCommandRunner executes commands as child processes of the current process.
type OSCommandRunner struct{}

// NewOSCommandRunner constructs a runner backed by os/exec.
func NewOSCommandRunner() *OSCommandRunner {
	return &OSCommandRunner{}
}

// Run starts the command and waits for it. A non-zero exit is reported through
// ExecutionResult.ExitCode; only failures to start or await the process are returned as errors.
func (runner *OSCommandRunner) Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	executable := exec.CommandContext(executionContext, string(command.Name), command.Details.Arguments...)
	executable.Dir = command.Details.WorkingDirectory
	executable.Env = mergeEnvironment(os.Environ(), command.Details.EnvironmentVariables)

	var standardOutputBuffer bytes.Buffer
	var standardErrorBuffer bytes.Buffer
	executable.Stdout = &standardOutputBuffer
	executable.Stderr = &standardErrorBuffer
	if len(command.Details.StandardInput) > 0 {
		executable.Stdin = bytes.NewReader(command.Details.StandardInput)
	}

	runError := executable.Run()
	executionResult := ExecutionResult{
		StandardOutput: standardOutputBuffer.String(),
		StandardError:  standardErrorBuffer.String(),
	}
	if runError == nil {
		return executionResult, nil
	}

	if contextError := executionContext.Err(); contextError != nil {
		return ExecutionResult{}, contextError
	}

	var exitError *exec.ExitError
	if errors.As(runError, &exitError) {
		executionResult.ExitCode = exitError.ExitCode()
		return executionResult, nil
	}
	return ExecutionResult{}, runError
}

// mergeEnvironment appends overrides after the inherited environment so they take precedence.
func mergeEnvironment(inherited []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return nil
	}
	overrideKeys := make([]string, 0, len(overrides))
	for overrideKey := range overrides {
		overrideKeys = append(overrideKeys, overrideKey)
	}
	sort.Strings(overrideKeys)

	merged := append([]string{}, inherited...)
	for _, overrideKey := range overrideKeys {
		merged = append(merged, overrideKey+environmentAssignmentSeparatorConstant+overrides[overrideKey])
	}
	return merged
}
