package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	commandLabelTemplateConstant            = "%s%s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	commandArgumentsJoinSeparatorConstant   = " "
	standardErrorSuffixTemplateConstant     = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	emptyStringConstant                     = ""
	defaultWorkingDirectoryLabelConstant    = "current directory"
	fallbackUnknownValueLabelConstant       = "unknown"
	allRemotesLabelConstant                 = "all remotes"
	flagPrefixConstant                      = "-"
)

const (
	gitRevParseSubcommandNameConstant = "rev-parse"
	gitAbbrevRefFlagConstant          = "--abbrev-ref"
	gitSymbolicFullNameFlagConstant   = "--symbolic-full-name"
	gitUpstreamReferenceConstant      = "@{u}"
	gitCheckoutSubcommandNameConstant = "checkout"
	gitCreateBranchFlagConstant       = "-b"
	gitResetBranchFlagConstant        = "-B"
	gitFetchSubcommandNameConstant    = "fetch"
	gitMergeSubcommandNameConstant    = "merge"
	gitFastForwardOnlyFlagConstant    = "--ff-only"
	gitPushSubcommandNameConstant     = "push"
	gitDeleteFlagConstant             = "--delete"
	gitTagSubcommandNameConstant      = "tag"
	gitBranchSubcommandNameConstant   = "branch"
	gitAddSubcommandNameConstant      = "add"
	gitMessageFlagConstant            = "-m"
)

const (
	githubAPICommandNameConstant            = "api"
	githubGraphQLEndpointConstant           = "graphql"
	githubPullRequestSubcommandNameConstant = "pr"
	githubListSubcommandNameConstant        = "list"
	githubCreateSubcommandNameConstant      = "create"
	githubBaseFlagConstant                  = "--base"
	githubHeadFlagConstant                  = "--head"
)

const (
	gitCurrentBranchStartTemplateConstant          = "Identifying current branch in %s"
	gitCurrentBranchSuccessTemplateConstant        = "Current branch in %s is %s"
	gitUpstreamBranchStartTemplateConstant         = "Checking upstream branch configuration in %s"
	gitUpstreamBranchSuccessTemplateConstant       = "Upstream branch in %s is %s"
	gitRevisionStartTemplateConstant               = "Resolving %s in %s"
	gitRevisionSuccessTemplateConstant             = "Resolved %s in %s"
	gitRevisionFailureTemplateConstant             = "Failed to resolve %s in %s (exit code %d%s)"
	gitCheckoutStartTemplateConstant               = "Switching %s to branch %s"
	gitCheckoutSuccessTemplateConstant             = "%s now on branch %s"
	gitCheckoutCreateStartTemplateConstant         = "Creating branch %s in %s"
	gitCheckoutCreateSuccessTemplateConstant       = "Created branch %s in %s"
	gitCheckoutFailureTemplateConstant             = "Failed to switch %s to branch %s (exit code %d%s)"
	gitFetchStartTemplateConstant                  = "Fetching from %s in %s"
	gitFetchSuccessTemplateConstant                = "Fetched from %s in %s"
	gitFetchFailureTemplateConstant                = "Failed to fetch from %s in %s (exit code %d%s)"
	gitFastForwardStartTemplateConstant            = "Fast-forwarding %s to %s"
	gitFastForwardSuccessTemplateConstant          = "Fast-forwarded %s to %s"
	gitFastForwardFailureTemplateConstant          = "Could not fast-forward %s to %s (exit code %d%s)"
	gitMergeStartTemplateConstant                  = "Merging %s in %s"
	gitMergeSuccessTemplateConstant                = "Merged %s in %s"
	gitMergeFailureTemplateConstant                = "Failed to merge %s in %s (exit code %d%s)"
	gitPushStartTemplateConstant                   = "Pushing %s to %s from %s"
	gitPushSuccessTemplateConstant                 = "Pushed %s to %s from %s"
	gitPushFailureTemplateConstant                 = "Failed to push %s to %s from %s (exit code %d%s)"
	gitPushDeletionStartTemplateConstant           = "Deleting %s from %s"
	gitPushDeletionSuccessTemplateConstant         = "Deleted %s from %s"
	gitPushDeletionFailureTemplateConstant         = "Failed to delete %s from %s (exit code %d%s)"
	gitTagListStartTemplateConstant                = "Listing tags in %s"
	gitTagListSuccessTemplateConstant              = "Listed tags in %s"
	gitBranchListStartTemplateConstant             = "Listing branches in %s"
	gitBranchListSuccessTemplateConstant           = "Listed branches in %s"
	gitAddStartTemplateConstant                    = "Staging %s in %s"
	gitAddSuccessTemplateConstant                  = "Staged %s in %s"
	githubGraphQLStartTemplateConstant             = "Querying repository metadata"
	githubGraphQLSuccessTemplateConstant           = "Queried repository metadata"
	githubGraphQLFailureTemplateConstant           = "Repository metadata query failed (exit code %d%s)"
	githubPullRequestListStartTemplateConstant     = "Listing open pull requests"
	githubPullRequestListSuccessTemplateConstant   = "Listed open pull requests"
	githubPullRequestCreateStartTemplateConstant   = "Opening pull request from %s into %s"
	githubPullRequestCreateSuccessTemplateConstant = "Opened pull request from %s into %s"
	githubPullRequestCreateFailureTemplateConstant = "Failed to open pull request from %s into %s (exit code %d%s)"
)

// CommandMessageFormatter builds human-readable messages for command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a completed command with a zero exit code.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that returned a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing an unexpected execution failure.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	if stage == messageStageExecutionFailure {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	var message string
	switch command.Name {
	case CommandGit:
		message = formatter.describeGitMessage(command, result, stage)
	case CommandGitHub:
		message = formatter.describeGitHubMessage(command, result, stage)
	}
	if len(message) == 0 {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
	return message
}

func (formatter CommandMessageFormatter) describeGitMessage(command ShellCommand, result ExecutionResult, stage messageStage) string {
	arguments := command.Details.Arguments
	if len(arguments) == 0 {
		return emptyStringConstant
	}

	workingDirectory := formatter.describeWorkingDirectory(command)
	standardErrorSuffix := formatter.formatStandardErrorSuffix(result.StandardError)

	switch strings.TrimSpace(arguments[0]) {
	case gitRevParseSubcommandNameConstant:
		return formatter.describeGitRevParseMessage(arguments, workingDirectory, result, stage)
	case gitCheckoutSubcommandNameConstant:
		if containsArgument(arguments, gitCreateBranchFlagConstant) || containsArgument(arguments, gitResetBranchFlagConstant) {
			branchName := formatter.ensureValue(formatter.extractFirstNonFlagArgument(arguments[1:]))
			switch stage {
			case messageStageStart:
				return fmt.Sprintf(gitCheckoutCreateStartTemplateConstant, branchName, workingDirectory)
			case messageStageSuccess:
				return fmt.Sprintf(gitCheckoutCreateSuccessTemplateConstant, branchName, workingDirectory)
			}
		}
		branchName := formatter.ensureValue(formatter.extractFirstNonFlagArgument(arguments[1:]))
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(gitCheckoutStartTemplateConstant, workingDirectory, branchName)
		case messageStageSuccess:
			return fmt.Sprintf(gitCheckoutSuccessTemplateConstant, workingDirectory, branchName)
		case messageStageFailure:
			return fmt.Sprintf(gitCheckoutFailureTemplateConstant, workingDirectory, branchName, result.ExitCode, standardErrorSuffix)
		}
	case gitFetchSubcommandNameConstant:
		remoteName := formatter.extractFirstNonFlagArgument(arguments[1:])
		if len(remoteName) == 0 {
			remoteName = allRemotesLabelConstant
		}
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(gitFetchStartTemplateConstant, remoteName, workingDirectory)
		case messageStageSuccess:
			return fmt.Sprintf(gitFetchSuccessTemplateConstant, remoteName, workingDirectory)
		case messageStageFailure:
			return fmt.Sprintf(gitFetchFailureTemplateConstant, remoteName, workingDirectory, result.ExitCode, standardErrorSuffix)
		}
	case gitMergeSubcommandNameConstant:
		target := formatter.ensureValue(formatter.extractMergeTarget(arguments[1:]))
		if containsArgument(arguments, gitFastForwardOnlyFlagConstant) {
			switch stage {
			case messageStageStart:
				return fmt.Sprintf(gitFastForwardStartTemplateConstant, workingDirectory, target)
			case messageStageSuccess:
				return fmt.Sprintf(gitFastForwardSuccessTemplateConstant, workingDirectory, target)
			case messageStageFailure:
				return fmt.Sprintf(gitFastForwardFailureTemplateConstant, workingDirectory, target, result.ExitCode, standardErrorSuffix)
			}
		}
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(gitMergeStartTemplateConstant, target, workingDirectory)
		case messageStageSuccess:
			return fmt.Sprintf(gitMergeSuccessTemplateConstant, target, workingDirectory)
		case messageStageFailure:
			return fmt.Sprintf(gitMergeFailureTemplateConstant, target, workingDirectory, result.ExitCode, standardErrorSuffix)
		}
	case gitPushSubcommandNameConstant:
		return formatter.describeGitPushMessage(arguments, workingDirectory, result, stage)
	case gitTagSubcommandNameConstant:
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(gitTagListStartTemplateConstant, workingDirectory)
		case messageStageSuccess:
			return fmt.Sprintf(gitTagListSuccessTemplateConstant, workingDirectory)
		}
	case gitBranchSubcommandNameConstant:
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(gitBranchListStartTemplateConstant, workingDirectory)
		case messageStageSuccess:
			return fmt.Sprintf(gitBranchListSuccessTemplateConstant, workingDirectory)
		}
	case gitAddSubcommandNameConstant:
		target := formatter.ensureValue(formatter.extractFirstNonFlagArgument(arguments[1:]))
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(gitAddStartTemplateConstant, target, workingDirectory)
		case messageStageSuccess:
			return fmt.Sprintf(gitAddSuccessTemplateConstant, target, workingDirectory)
		}
	}

	return emptyStringConstant
}

func (formatter CommandMessageFormatter) describeGitRevParseMessage(arguments []string, workingDirectory string, result ExecutionResult, stage messageStage) string {
	trimmedOutput := formatter.ensureValue(strings.TrimSpace(result.StandardOutput))

	if containsArgument(arguments, gitAbbrevRefFlagConstant) {
		if containsArgument(arguments, gitSymbolicFullNameFlagConstant) && containsArgument(arguments, gitUpstreamReferenceConstant) {
			switch stage {
			case messageStageStart:
				return fmt.Sprintf(gitUpstreamBranchStartTemplateConstant, workingDirectory)
			case messageStageSuccess:
				return fmt.Sprintf(gitUpstreamBranchSuccessTemplateConstant, workingDirectory, trimmedOutput)
			}
			return emptyStringConstant
		}
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(gitCurrentBranchStartTemplateConstant, workingDirectory)
		case messageStageSuccess:
			return fmt.Sprintf(gitCurrentBranchSuccessTemplateConstant, workingDirectory, trimmedOutput)
		}
		return emptyStringConstant
	}

	references := formatter.ensureValue(formatter.joinNonFlagArguments(arguments[1:]))
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(gitRevisionStartTemplateConstant, references, workingDirectory)
	case messageStageSuccess:
		return fmt.Sprintf(gitRevisionSuccessTemplateConstant, references, workingDirectory)
	case messageStageFailure:
		return fmt.Sprintf(gitRevisionFailureTemplateConstant, references, workingDirectory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	}
	return emptyStringConstant
}

func (formatter CommandMessageFormatter) describeGitPushMessage(arguments []string, workingDirectory string, result ExecutionResult, stage messageStage) string {
	nonFlagArguments := formatter.collectNonFlagArguments(arguments[1:])
	remoteName := formatter.ensureValue(formatter.argumentAtIndex(nonFlagArguments, 0))
	standardErrorSuffix := formatter.formatStandardErrorSuffix(result.StandardError)

	if containsArgument(arguments, gitDeleteFlagConstant) {
		target := formatter.ensureValue(formatter.argumentAtIndex(nonFlagArguments, 1))
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(gitPushDeletionStartTemplateConstant, target, remoteName)
		case messageStageSuccess:
			return fmt.Sprintf(gitPushDeletionSuccessTemplateConstant, target, remoteName)
		case messageStageFailure:
			return fmt.Sprintf(gitPushDeletionFailureTemplateConstant, target, remoteName, result.ExitCode, standardErrorSuffix)
		}
		return emptyStringConstant
	}

	branchName := formatter.ensureValue(formatter.argumentAtIndex(nonFlagArguments, 1))
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(gitPushStartTemplateConstant, branchName, remoteName, workingDirectory)
	case messageStageSuccess:
		return fmt.Sprintf(gitPushSuccessTemplateConstant, branchName, remoteName, workingDirectory)
	case messageStageFailure:
		return fmt.Sprintf(gitPushFailureTemplateConstant, branchName, remoteName, workingDirectory, result.ExitCode, standardErrorSuffix)
	}
	return emptyStringConstant
}

func (formatter CommandMessageFormatter) describeGitHubMessage(command ShellCommand, result ExecutionResult, stage messageStage) string {
	arguments := command.Details.Arguments
	if len(arguments) < 2 {
		return emptyStringConstant
	}

	primary := strings.TrimSpace(arguments[0])
	secondary := strings.TrimSpace(arguments[1])
	standardErrorSuffix := formatter.formatStandardErrorSuffix(result.StandardError)

	switch {
	case primary == githubAPICommandNameConstant && secondary == githubGraphQLEndpointConstant:
		switch stage {
		case messageStageStart:
			return githubGraphQLStartTemplateConstant
		case messageStageSuccess:
			return githubGraphQLSuccessTemplateConstant
		case messageStageFailure:
			return fmt.Sprintf(githubGraphQLFailureTemplateConstant, result.ExitCode, standardErrorSuffix)
		}
	case primary == githubPullRequestSubcommandNameConstant && secondary == githubListSubcommandNameConstant:
		switch stage {
		case messageStageStart:
			return githubPullRequestListStartTemplateConstant
		case messageStageSuccess:
			return githubPullRequestListSuccessTemplateConstant
		}
	case primary == githubPullRequestSubcommandNameConstant && secondary == githubCreateSubcommandNameConstant:
		headBranch := formatter.ensureValue(findFlagValue(arguments, githubHeadFlagConstant))
		baseBranch := formatter.ensureValue(findFlagValue(arguments, githubBaseFlagConstant))
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(githubPullRequestCreateStartTemplateConstant, headBranch, baseBranch)
		case messageStageSuccess:
			return fmt.Sprintf(githubPullRequestCreateSuccessTemplateConstant, headBranch, baseBranch)
		case messageStageFailure:
			return fmt.Sprintf(githubPullRequestCreateFailureTemplateConstant, headBranch, baseBranch, result.ExitCode, standardErrorSuffix)
		}
	}

	return emptyStringConstant
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	commandLabel := formatter.formatCommandLabel(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, commandLabel)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, commandLabel)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, commandLabel, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	default:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, commandLabel, formatter.describeFailure(failure))
	}
}

func (formatter CommandMessageFormatter) formatCommandLabel(command ShellCommand) string {
	return fmt.Sprintf(commandLabelTemplateConstant, describeCommand(command), formatter.formatWorkingDirectorySuffix(command))
}

func (formatter CommandMessageFormatter) formatWorkingDirectorySuffix(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
}

func (formatter CommandMessageFormatter) formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}

func (formatter CommandMessageFormatter) describeWorkingDirectory(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return defaultWorkingDirectoryLabelConstant
	}
	return trimmedWorkingDirectory
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}

func (formatter CommandMessageFormatter) argumentAtIndex(arguments []string, index int) string {
	if index < 0 || index >= len(arguments) {
		return emptyStringConstant
	}
	return strings.TrimSpace(arguments[index])
}

func (formatter CommandMessageFormatter) ensureValue(value string) string {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	return trimmed
}

func (formatter CommandMessageFormatter) collectNonFlagArguments(arguments []string) []string {
	collected := make([]string, 0, len(arguments))
	for _, argument := range arguments {
		trimmed := strings.TrimSpace(argument)
		if len(trimmed) == 0 || strings.HasPrefix(trimmed, flagPrefixConstant) {
			continue
		}
		collected = append(collected, trimmed)
	}
	return collected
}

func (formatter CommandMessageFormatter) extractFirstNonFlagArgument(arguments []string) string {
	return formatter.argumentAtIndex(formatter.collectNonFlagArguments(arguments), 0)
}

func (formatter CommandMessageFormatter) joinNonFlagArguments(arguments []string) string {
	return strings.Join(formatter.collectNonFlagArguments(arguments), ", ")
}

// extractMergeTarget skips the value following -m so commit messages are not mistaken for revisions.
func (formatter CommandMessageFormatter) extractMergeTarget(arguments []string) string {
	for index := 0; index < len(arguments); index++ {
		trimmed := strings.TrimSpace(arguments[index])
		if trimmed == gitMessageFlagConstant {
			index++
			continue
		}
		if len(trimmed) == 0 || strings.HasPrefix(trimmed, flagPrefixConstant) {
			continue
		}
		return trimmed
	}
	return emptyStringConstant
}

func containsArgument(arguments []string, value string) bool {
	for _, argument := range arguments {
		if strings.TrimSpace(argument) == value {
			return true
		}
	}
	return false
}

func findFlagValue(arguments []string, flag string) string {
	for index := 0; index < len(arguments); index++ {
		if strings.TrimSpace(arguments[index]) == flag && index+1 < len(arguments) {
			return strings.TrimSpace(arguments[index+1])
		}
	}
	return emptyStringConstant
}
