package execshell

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	commandGitStringConstant                  = "git"
	commandGitHubStringConstant               = "gh"
	loggerNotConfiguredMessageConstant        = "shell executor logger not configured"
	commandRunnerNotConfiguredMessageConstant = "shell executor command runner not configured"
	commandFailedTemplateConstant             = "%s failed with exit code %d"
	commandFailedWithOutputTemplateConstant   = "%s failed with exit code %d: %s"
	commandExecutionFailedTemplateConstant    = "%s could not be executed: %s"
	logFieldCommandConstant                   = "command"
	logFieldArgumentsConstant                 = "arguments"
	logFieldWorkingDirectoryConstant          = "working_directory"
	logFieldExitCodeConstant                  = "exit_code"
)

// CommandName identifies an executable invoked through the shell executor.
type CommandName string

// Supported command enumerations.
const (
	CommandGit    CommandName = CommandName(commandGitStringConstant)
	CommandGitHub CommandName = CommandName(commandGitHubStringConstant)
)

// CommandDetails describes the arguments and environment of a single invocation.
type CommandDetails struct {
	Arguments            []string
	WorkingDirectory     string
	EnvironmentVariables map[string]string
	StandardInput        []byte
}

// ShellCommand pairs an executable with its invocation details.
type ShellCommand struct {
	Name    CommandName
	Details CommandDetails
}

// ExecutionResult captures the observable outcome of a finished process.
type ExecutionResult struct {
	StandardOutput string
	StandardError  string
	ExitCode       int
}

// CommandRunner executes shell commands.
type CommandRunner interface {
	Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error)
}

var (
	// ErrLoggerNotConfigured indicates the executor was constructed without a logger.
	ErrLoggerNotConfigured = errors.New(loggerNotConfiguredMessageConstant)
	// ErrCommandRunnerNotConfigured indicates the executor was constructed without a runner.
	ErrCommandRunnerNotConfigured = errors.New(commandRunnerNotConfiguredMessageConstant)
)

// CommandFailedError reports a command that ran to completion with a non-zero exit code.
type CommandFailedError struct {
	Command ShellCommand
	Result  ExecutionResult
}

// Error describes the failure and carries the command's diagnostic output.
func (failedError CommandFailedError) Error() string {
	diagnostic := failedError.Diagnostic()
	if len(diagnostic) == 0 {
		return fmt.Sprintf(commandFailedTemplateConstant, describeCommand(failedError.Command), failedError.Result.ExitCode)
	}
	return fmt.Sprintf(commandFailedWithOutputTemplateConstant, describeCommand(failedError.Command), failedError.Result.ExitCode, diagnostic)
}

// Diagnostic returns the trimmed standard error, falling back to standard output.
func (failedError CommandFailedError) Diagnostic() string {
	standardError := strings.TrimSpace(failedError.Result.StandardError)
	if len(standardError) > 0 {
		return standardError
	}
	return strings.TrimSpace(failedError.Result.StandardOutput)
}

// CommandExecutionError reports a command that could not be started or awaited.
type CommandExecutionError struct {
	Command ShellCommand
	Cause   error
}

// Error describes the execution failure.
func (executionError CommandExecutionError) Error() string {
	causeMessage := unknownFailureMessageConstant
	if executionError.Cause != nil {
		causeMessage = executionError.Cause.Error()
	}
	return fmt.Sprintf(commandExecutionFailedTemplateConstant, describeCommand(executionError.Command), causeMessage)
}

// Unwrap exposes the underlying cause.
func (executionError CommandExecutionError) Unwrap() error {
	return executionError.Cause
}

// ShellExecutor runs commands through a CommandRunner and logs their lifecycle.
type ShellExecutor struct {
	logger    *zap.Logger
	runner    CommandRunner
	formatter CommandMessageFormatter
}

// NewShellExecutor constructs a ShellExecutor.
func NewShellExecutor(logger *zap.Logger, runner CommandRunner) (*ShellExecutor, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if runner == nil {
		return nil, ErrCommandRunnerNotConfigured
	}
	return &ShellExecutor{logger: logger, runner: runner, formatter: CommandMessageFormatter{}}, nil
}

// ExecuteGit runs git with the provided details.
func (executor *ShellExecutor) ExecuteGit(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.Execute(executionContext, ShellCommand{Name: CommandGit, Details: details})
}

// ExecuteGitHubCLI runs the GitHub CLI with the provided details.
func (executor *ShellExecutor) ExecuteGitHubCLI(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.Execute(executionContext, ShellCommand{Name: CommandGitHub, Details: details})
}

// ExecuteCommand runs an arbitrary executable, such as the project's test or changelog tooling.
func (executor *ShellExecutor) ExecuteCommand(executionContext context.Context, name CommandName, details CommandDetails) (ExecutionResult, error) {
	return executor.Execute(executionContext, ShellCommand{Name: name, Details: details})
}

// Execute runs the command and converts non-zero exit codes into CommandFailedError.
func (executor *ShellExecutor) Execute(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	commandFields := []zap.Field{
		zap.String(logFieldCommandConstant, string(command.Name)),
		zap.Strings(logFieldArgumentsConstant, command.Details.Arguments),
		zap.String(logFieldWorkingDirectoryConstant, command.Details.WorkingDirectory),
	}

	executor.logger.Debug(executor.formatter.BuildStartedMessage(command), commandFields...)

	executionResult, runError := executor.runner.Run(executionContext, command)
	if runError != nil {
		executor.logger.Error(executor.formatter.BuildExecutionFailureMessage(command, runError), append(commandFields, zap.Error(runError))...)
		return ExecutionResult{}, CommandExecutionError{Command: command, Cause: runError}
	}

	if executionResult.ExitCode != 0 {
		executor.logger.Warn(executor.formatter.BuildFailureMessage(command, executionResult), append(commandFields, zap.Int(logFieldExitCodeConstant, executionResult.ExitCode))...)
		return ExecutionResult{}, CommandFailedError{Command: command, Result: executionResult}
	}

	executor.logger.Info(executor.formatter.BuildSuccessMessage(command, executionResult), commandFields...)
	return executionResult, nil
}

func describeCommand(command ShellCommand) string {
	commandParts := []string{string(command.Name)}
	if len(command.Details.Arguments) > 0 {
		commandParts = append(commandParts, strings.Join(command.Details.Arguments, commandArgumentsJoinSeparatorConstant))
	}
	return strings.Join(commandParts, commandArgumentsJoinSeparatorConstant)
}
