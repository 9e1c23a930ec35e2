package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jarrodldavis/npm-version-scripts/internal/execshell"
)

const (
	gitRevParseSubcommandConstant               = "rev-parse"
	gitAbbrevRefFlagConstant                    = "--abbrev-ref"
	gitSymbolicFullNameFlagConstant             = "--symbolic-full-name"
	gitQuietFlagConstant                        = "-q"
	gitHeadReferenceConstant                    = "HEAD"
	gitUpstreamReferenceConstant                = "@{u}"
	gitTagSubcommandConstant                    = "tag"
	gitBranchSubcommandConstant                 = "branch"
	gitMergedFlagConstant                       = "--merged"
	gitNoMergedFlagConstant                     = "--no-merged"
	gitListFlagConstant                         = "--list"
	gitAllFlagConstant                          = "--all"
	gitShortRefnameFormatFlagConstant           = "--format=%(refname:short)"
	gitRemoteSubcommandConstant                 = "remote"
	gitGetURLSubcommandConstant                 = "get-url"
	gitCheckoutSubcommandConstant               = "checkout"
	gitCreateBranchFlagConstant                 = "-b"
	gitResetBranchFlagConstant                  = "-B"
	gitPushSubcommandConstant                   = "push"
	gitFollowTagsFlagConstant                   = "--follow-tags"
	gitSetUpstreamFlagConstant                  = "--set-upstream"
	gitDeleteFlagConstant                       = "--delete"
	gitFetchSubcommandConstant                  = "fetch"
	gitPruneFlagConstant                        = "--prune"
	gitMergeSubcommandConstant                  = "merge"
	gitNoFastForwardFlagConstant                = "--no-ff"
	gitFastForwardOnlyFlagConstant              = "--ff-only"
	gitNoEditFlagConstant                       = "--no-edit"
	gitMessageFlagConstant                      = "-m"
	gitAddSubcommandConstant                    = "add"
	gitTerminalPromptEnvironmentNameConstant    = "GIT_TERMINAL_PROMPT"
	gitTerminalPromptEnvironmentDisableConstant = "0"
	requiredValueMessageConstant                = "value required"
	executorNotConfiguredMessageConstant        = "git executor not configured"
	revisionCountMismatchTemplateConstant       = "expected %d revisions for %s but git returned %d"
	revisionMalformedTemplateConstant           = "git returned malformed revision %q for %s"
	referenceFieldNameConstant                  = "reference"
	branchFieldNameConstant                     = "branch"
	remoteFieldNameConstant                     = "remote"
	pathspecFieldNameConstant                   = "pathspec"
	revisionFieldNameConstant                   = "revision"
	invalidInputTemplateConstant                = "%s: %s"
	revisionJoinSeparatorConstant               = ", "
	minimumRevisionLengthConstant               = 4
)

// ErrGitExecutorNotConfigured indicates the manager was constructed without an executor.
var ErrGitExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)

// GitExecutor is the subset of execshell.ShellExecutor used by RepositoryManager.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// InvalidInputError reports an empty or malformed argument.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputTemplateConstant, inputError.FieldName, inputError.Message)
}

// RevisionParseError reports rev-parse output that does not contain exactly one hash per reference.
type RevisionParseError struct {
	References []string
	Output     []string
}

// Error describes the mismatch.
func (parseError RevisionParseError) Error() string {
	joinedReferences := strings.Join(parseError.References, revisionJoinSeparatorConstant)
	for _, revision := range parseError.Output {
		if len(parseError.Output) == len(parseError.References) && !isRevision(revision) {
			return fmt.Sprintf(revisionMalformedTemplateConstant, revision, joinedReferences)
		}
	}
	return fmt.Sprintf(revisionCountMismatchTemplateConstant, len(parseError.References), joinedReferences, len(parseError.Output))
}

// PushOptions configures RepositoryManager.Push.
type PushOptions struct {
	RemoteName  string
	References  []string
	FollowTags  bool
	SetUpstream bool
}

// RepositoryManager runs git commands against a single working tree.
type RepositoryManager struct {
	executor       GitExecutor
	repositoryPath string
}

// NewRepositoryManager constructs a manager for the working tree at repositoryPath.
// An empty path targets the process working directory.
func NewRepositoryManager(executor GitExecutor, repositoryPath string) (*RepositoryManager, error) {
	if executor == nil {
		return nil, ErrGitExecutorNotConfigured
	}
	return &RepositoryManager{executor: executor, repositoryPath: strings.TrimSpace(repositoryPath)}, nil
}

// RepositoryPath returns the working tree the manager operates on.
func (manager *RepositoryManager) RepositoryPath() string {
	return manager.repositoryPath
}

// CurrentBranch returns the checked-out branch name.
func (manager *RepositoryManager) CurrentBranch(executionContext context.Context) (string, error) {
	return manager.runForValue(executionContext, gitRevParseSubcommandConstant, gitAbbrevRefFlagConstant, gitHeadReferenceConstant)
}

// UpstreamBranch returns the upstream tracking reference of the checked-out branch.
func (manager *RepositoryManager) UpstreamBranch(executionContext context.Context) (string, error) {
	return manager.runForValue(executionContext, gitRevParseSubcommandConstant, gitAbbrevRefFlagConstant, gitSymbolicFullNameFlagConstant, gitUpstreamReferenceConstant)
}

// ResolveRevisions resolves every reference to a commit hash in a single rev-parse call.
// The output must hold exactly one well-formed hash per reference.
func (manager *RepositoryManager) ResolveRevisions(executionContext context.Context, references ...string) ([]string, error) {
	trimmedReferences := make([]string, 0, len(references))
	for _, reference := range references {
		trimmedReference := strings.TrimSpace(reference)
		if len(trimmedReference) == 0 {
			return nil, InvalidInputError{FieldName: referenceFieldNameConstant, Message: requiredValueMessageConstant}
		}
		trimmedReferences = append(trimmedReferences, trimmedReference)
	}
	if len(trimmedReferences) == 0 {
		return nil, InvalidInputError{FieldName: referenceFieldNameConstant, Message: requiredValueMessageConstant}
	}

	arguments := append([]string{gitRevParseSubcommandConstant, gitQuietFlagConstant}, trimmedReferences...)
	revisions, runError := manager.runForLines(executionContext, arguments...)
	if runError != nil {
		return nil, runError
	}

	if len(revisions) != len(trimmedReferences) {
		return nil, RevisionParseError{References: trimmedReferences, Output: revisions}
	}
	for _, revision := range revisions {
		if !isRevision(revision) {
			return nil, RevisionParseError{References: trimmedReferences, Output: revisions}
		}
	}
	return revisions, nil
}

// UnmergedTags lists tags whose commits are not reachable from the target branch.
func (manager *RepositoryManager) UnmergedTags(executionContext context.Context, targetBranch string) ([]string, error) {
	trimmedTarget, validationError := requireValue(branchFieldNameConstant, targetBranch)
	if validationError != nil {
		return nil, validationError
	}
	return manager.runForLines(executionContext, gitTagSubcommandConstant, gitNoMergedFlagConstant, trimmedTarget)
}

// MergedTags lists tags reachable from the target branch, restricted to the provided names or patterns.
func (manager *RepositoryManager) MergedTags(executionContext context.Context, targetBranch string, patterns ...string) ([]string, error) {
	trimmedTarget, validationError := requireValue(branchFieldNameConstant, targetBranch)
	if validationError != nil {
		return nil, validationError
	}
	arguments := []string{gitTagSubcommandConstant, gitMergedFlagConstant, trimmedTarget}
	if len(patterns) > 0 {
		arguments = append(arguments, gitListFlagConstant)
		arguments = append(arguments, patterns...)
	}
	return manager.runForLines(executionContext, arguments...)
}

// UnmergedBranches lists local and remote-tracking branches not reachable from the target branch,
// using their short names (for example "release/1.2.0" and "origin/release/1.2.0").
func (manager *RepositoryManager) UnmergedBranches(executionContext context.Context, targetBranch string) ([]string, error) {
	trimmedTarget, validationError := requireValue(branchFieldNameConstant, targetBranch)
	if validationError != nil {
		return nil, validationError
	}
	return manager.runForLines(executionContext, gitBranchSubcommandConstant, gitAllFlagConstant, gitNoMergedFlagConstant, trimmedTarget, gitShortRefnameFormatFlagConstant)
}

// RemoteURL returns the fetch URL configured for the remote.
func (manager *RepositoryManager) RemoteURL(executionContext context.Context, remoteName string) (string, error) {
	trimmedRemote, validationError := requireValue(remoteFieldNameConstant, remoteName)
	if validationError != nil {
		return "", validationError
	}
	return manager.runForValue(executionContext, gitRemoteSubcommandConstant, gitGetURLSubcommandConstant, trimmedRemote)
}

// Checkout switches the working tree to an existing branch.
func (manager *RepositoryManager) Checkout(executionContext context.Context, branchName string) error {
	trimmedBranch, validationError := requireValue(branchFieldNameConstant, branchName)
	if validationError != nil {
		return validationError
	}
	return manager.run(executionContext, gitCheckoutSubcommandConstant, trimmedBranch)
}

// CreateBranch creates and checks out a new branch from the current HEAD.
func (manager *RepositoryManager) CreateBranch(executionContext context.Context, branchName string) error {
	trimmedBranch, validationError := requireValue(branchFieldNameConstant, branchName)
	if validationError != nil {
		return validationError
	}
	return manager.run(executionContext, gitCheckoutSubcommandConstant, gitCreateBranchFlagConstant, trimmedBranch)
}

// ResetBranch creates or re-points a branch at startPoint and checks it out.
func (manager *RepositoryManager) ResetBranch(executionContext context.Context, branchName string, startPoint string) error {
	trimmedBranch, validationError := requireValue(branchFieldNameConstant, branchName)
	if validationError != nil {
		return validationError
	}
	trimmedStartPoint, startPointError := requireValue(revisionFieldNameConstant, startPoint)
	if startPointError != nil {
		return startPointError
	}
	return manager.run(executionContext, gitCheckoutSubcommandConstant, gitResetBranchFlagConstant, trimmedBranch, trimmedStartPoint)
}

// Fetch downloads objects and refs from the remote, pruning deleted remote branches.
func (manager *RepositoryManager) Fetch(executionContext context.Context, remoteName string, references ...string) error {
	trimmedRemote, validationError := requireValue(remoteFieldNameConstant, remoteName)
	if validationError != nil {
		return validationError
	}
	arguments := append([]string{gitFetchSubcommandConstant, gitPruneFlagConstant, trimmedRemote}, references...)
	return manager.run(executionContext, arguments...)
}

// FastForward advances the checked-out branch to its upstream; non-fast-forward histories fail.
func (manager *RepositoryManager) FastForward(executionContext context.Context) error {
	return manager.run(executionContext, gitMergeSubcommandConstant, gitFastForwardOnlyFlagConstant, gitUpstreamReferenceConstant)
}

// MergeCommit merges revision into the checked-out branch, always producing a merge commit.
func (manager *RepositoryManager) MergeCommit(executionContext context.Context, revision string, message string) error {
	trimmedRevision, validationError := requireValue(revisionFieldNameConstant, revision)
	if validationError != nil {
		return validationError
	}
	arguments := []string{gitMergeSubcommandConstant, gitNoFastForwardFlagConstant, gitNoEditFlagConstant}
	if len(strings.TrimSpace(message)) > 0 {
		arguments = append(arguments, gitMessageFlagConstant, message)
	}
	arguments = append(arguments, trimmedRevision)
	return manager.run(executionContext, arguments...)
}

// Push publishes references to the remote.
func (manager *RepositoryManager) Push(executionContext context.Context, options PushOptions) error {
	trimmedRemote, validationError := requireValue(remoteFieldNameConstant, options.RemoteName)
	if validationError != nil {
		return validationError
	}
	arguments := []string{gitPushSubcommandConstant}
	if options.FollowTags {
		arguments = append(arguments, gitFollowTagsFlagConstant)
	}
	if options.SetUpstream {
		arguments = append(arguments, gitSetUpstreamFlagConstant)
	}
	arguments = append(arguments, trimmedRemote)
	arguments = append(arguments, options.References...)
	return manager.run(executionContext, arguments...)
}

// DeleteRemoteBranch removes a branch from the remote.
func (manager *RepositoryManager) DeleteRemoteBranch(executionContext context.Context, remoteName string, branchName string) error {
	trimmedRemote, validationError := requireValue(remoteFieldNameConstant, remoteName)
	if validationError != nil {
		return validationError
	}
	trimmedBranch, branchError := requireValue(branchFieldNameConstant, branchName)
	if branchError != nil {
		return branchError
	}
	return manager.run(executionContext, gitPushSubcommandConstant, trimmedRemote, gitDeleteFlagConstant, trimmedBranch)
}

// Stage adds the pathspecs to the index.
func (manager *RepositoryManager) Stage(executionContext context.Context, pathspecs ...string) error {
	if len(pathspecs) == 0 {
		return InvalidInputError{FieldName: pathspecFieldNameConstant, Message: requiredValueMessageConstant}
	}
	return manager.run(executionContext, append([]string{gitAddSubcommandConstant}, pathspecs...)...)
}

func (manager *RepositoryManager) run(executionContext context.Context, arguments ...string) error {
	_, executionError := manager.execute(executionContext, arguments)
	return executionError
}

func (manager *RepositoryManager) runForValue(executionContext context.Context, arguments ...string) (string, error) {
	executionResult, executionError := manager.execute(executionContext, arguments)
	if executionError != nil {
		return "", executionError
	}
	return strings.TrimSpace(executionResult.StandardOutput), nil
}

func (manager *RepositoryManager) runForLines(executionContext context.Context, arguments ...string) ([]string, error) {
	executionResult, executionError := manager.execute(executionContext, arguments)
	if executionError != nil {
		return nil, executionError
	}
	return splitLines(executionResult.StandardOutput), nil
}

func (manager *RepositoryManager) execute(executionContext context.Context, arguments []string) (execshell.ExecutionResult, error) {
	return manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        arguments,
		WorkingDirectory: manager.repositoryPath,
		EnvironmentVariables: map[string]string{
			gitTerminalPromptEnvironmentNameConstant: gitTerminalPromptEnvironmentDisableConstant,
		},
	})
}

func splitLines(output string) []string {
	lines := make([]string, 0)
	for _, line := range strings.Split(output, "\n") {
		trimmedLine := strings.TrimSpace(line)
		if len(trimmedLine) == 0 {
			continue
		}
		lines = append(lines, trimmedLine)
	}
	return lines
}

func requireValue(fieldName string, value string) (string, error) {
	trimmedValue := strings.TrimSpace(value)
	if len(trimmedValue) == 0 {
		return "", InvalidInputError{FieldName: fieldName, Message: requiredValueMessageConstant}
	}
	return trimmedValue, nil
}

func isRevision(candidate string) bool {
	if len(candidate) < minimumRevisionLengthConstant {
		return false
	}
	for _, character := range candidate {
		isDigit := character >= '0' && character <= '9'
		isHexLetter := character >= 'a' && character <= 'f'
		if !isDigit && !isHexLetter {
			return false
		}
	}
	return true
}
