package releases

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/jarrodldavis/npm-version-scripts/internal/branches/refresh"
	"github.com/jarrodldavis/npm-version-scripts/internal/execshell"
	"github.com/jarrodldavis/npm-version-scripts/internal/githubcli"
	"github.com/jarrodldavis/npm-version-scripts/internal/gitrepo"
	"github.com/jarrodldavis/npm-version-scripts/internal/pullrequests"
	"github.com/jarrodldavis/npm-version-scripts/internal/safety"
)

const (
	// VersionPlaceholder is replaced by the package version in changelog command arguments.
	VersionPlaceholder = "{version}"
	// FilePlaceholder is replaced by the changelog file in changelog command arguments.
	FilePlaceholder = "{file}"

	repositoryManagerMissingMessageConstant = "repository manager not configured"
	pullRequestsMissingMessageConstant      = "pull request publisher not configured"
	mergerMissingMessageConstant            = "pull request merger not configured"
	commandExecutorMissingMessageConstant   = "command executor not configured"
	packageVersionRequiredMessageConstant   = "package version must be provided"
	emptyCommandTemplateConstant            = "%s command is not configured"
	changelogMissingTemplateConstant        = "changelog %s does not exist"
	changelogInspectTemplateConstant        = "failed to inspect changelog %s: %w"
	refreshFailureTemplateConstant          = "failed to update %s: %w"
	synchronizationFailureTemplateConstant  = "refusing to release from %s: %w"
	commandFailureTemplateConstant          = "%s command failed: %w"
	createBranchFailureTemplateConstant     = "failed to create %s: %w"
	stageFailureTemplateConstant            = "failed to stage %s: %w"
	pushFailureTemplateConstant             = "failed to push %s: %w"
	pullRequestFailureTemplateConstant      = "failed to open pull request from %s into %s: %w"
	findFailureTemplateConstant             = "failed to find release pull request: %w"
	mergeFailureTemplateConstant            = "failed to merge release pull request: %w"
	resetFailureTemplateConstant            = "failed to move %s to %s: %w"
	testCommandLabelConstant                = "test"
	changelogCommandLabelConstant           = "changelog"
	defaultChangelogFileConstant            = "CHANGELOG.md"
	phasePreflightConstant                  = "preflight"
	phaseBumpConstant                       = "bump"
	phasePublishConstant                    = "publish"
	phaseMergeConstant                      = "merge"
	phaseStartedMessageConstant             = "Release phase started"
	phaseCompletedMessageConstant           = "Release phase completed"
	logFieldPhaseConstant                   = "phase"
	logFieldBranchConstant                  = "branch"
	logFieldMilestoneConstant               = "milestone"
	logFieldPullRequestConstant             = "pull_request"
)

var (
	// ErrRepositoryManagerNotConfigured indicates the repository manager dependency was missing.
	ErrRepositoryManagerNotConfigured = errors.New(repositoryManagerMissingMessageConstant)
	// ErrPullRequestsNotConfigured indicates the pull request publisher dependency was missing.
	ErrPullRequestsNotConfigured = errors.New(pullRequestsMissingMessageConstant)
	// ErrMergerNotConfigured indicates the pull request merger dependency was missing.
	ErrMergerNotConfigured = errors.New(mergerMissingMessageConstant)
	// ErrCommandExecutorNotConfigured indicates the command executor dependency was missing.
	ErrCommandExecutorNotConfigured = errors.New(commandExecutorMissingMessageConstant)
	// ErrPackageVersionRequired indicates Bump was called without a version.
	ErrPackageVersionRequired = errors.New(packageVersionRequiredMessageConstant)
)

// RepositoryManager is the subset of gitrepo.RepositoryManager the release phases use.
type RepositoryManager interface {
	refresh.BranchSynchronizer
	safety.RevisionReader
	safety.ReleaseStateReader
	CreateBranch(executionContext context.Context, branchName string) error
	ResetBranch(executionContext context.Context, branchName string, startPoint string) error
	Stage(executionContext context.Context, pathspecs ...string) error
	Push(executionContext context.Context, options gitrepo.PushOptions) error
}

// PullRequestPublisher opens pull requests.
type PullRequestPublisher interface {
	CreatePullRequest(executionContext context.Context, options githubcli.PullRequestCreateOptions) (string, error)
}

// PullRequestMerger locates and merges pull requests.
type PullRequestMerger interface {
	Find(executionContext context.Context, headBranch string, baseBranch string) (pullrequests.Details, error)
	Merge(executionContext context.Context, options pullrequests.Options) (pullrequests.Details, error)
}

// CommandExecutor runs project tooling such as the test suite and the changelog tool.
type CommandExecutor interface {
	ExecuteCommand(executionContext context.Context, name execshell.CommandName, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// Dependencies enumerates the collaborators required by Service.
type Dependencies struct {
	RepositoryManager RepositoryManager
	PullRequests      PullRequestPublisher
	Merger            PullRequestMerger
	CommandExecutor   CommandExecutor
	FileSystem        afero.Fs
	Logger            *zap.Logger
}

// Settings configures the project tooling the phases invoke.
type Settings struct {
	RepositoryPath   string
	TestCommand      []string
	ChangelogFile    string
	ChangelogCommand []string
}

// MergeResult reports the pull requests touched by the merge phase.
type MergeResult struct {
	ProductionPullRequest pullrequests.Details
	DefaultPullRequestURL string
}

// Service runs the release phases.
type Service struct {
	repositoryManager RepositoryManager
	pullRequests      PullRequestPublisher
	merger            PullRequestMerger
	commandExecutor   CommandExecutor
	fileSystem        afero.Fs
	refresher         *refresh.Service
	synchronization   *safety.SynchronizationGuard
	concurrency       *safety.ConcurrencyGuard
	settings          Settings
	logger            *zap.Logger
}

// NewService constructs a Service. A nil FileSystem uses the operating system's filesystem.
func NewService(dependencies Dependencies, settings Settings) (*Service, error) {
	if dependencies.RepositoryManager == nil {
		return nil, ErrRepositoryManagerNotConfigured
	}
	if dependencies.PullRequests == nil {
		return nil, ErrPullRequestsNotConfigured
	}
	if dependencies.Merger == nil {
		return nil, ErrMergerNotConfigured
	}
	if dependencies.CommandExecutor == nil {
		return nil, ErrCommandExecutorNotConfigured
	}
	fileSystem := dependencies.FileSystem
	if fileSystem == nil {
		fileSystem = afero.NewOsFs()
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(strings.TrimSpace(settings.ChangelogFile)) == 0 {
		settings.ChangelogFile = defaultChangelogFileConstant
	}

	refresher, refresherError := refresh.NewService(refresh.Dependencies{RepositoryManager: dependencies.RepositoryManager, Logger: logger})
	if refresherError != nil {
		return nil, refresherError
	}
	synchronization, synchronizationError := safety.NewSynchronizationGuard(dependencies.RepositoryManager, logger)
	if synchronizationError != nil {
		return nil, synchronizationError
	}
	concurrency, concurrencyError := safety.NewConcurrencyGuard(dependencies.RepositoryManager, logger)
	if concurrencyError != nil {
		return nil, concurrencyError
	}

	return &Service{
		repositoryManager: dependencies.RepositoryManager,
		pullRequests:      dependencies.PullRequests,
		merger:            dependencies.Merger,
		commandExecutor:   dependencies.CommandExecutor,
		fileSystem:        fileSystem,
		refresher:         refresher,
		synchronization:   synchronization,
		concurrency:       concurrency,
		settings:          settings,
		logger:            logger,
	}, nil
}

// PreflightOptions locates the branches pre-flight inspects. Pre-flight runs before npm writes the
// new version, so ReleaseVersion is only set when the caller names the release explicitly.
type PreflightOptions struct {
	RemoteName       string
	DefaultBranch    string
	ProductionBranch string
	ReleaseVersion   string
	VersionPrefix    string
}

// Preflight updates the default branch, refuses to continue when it diverges from upstream or a
// release is already underway, and runs the test suite. A known ReleaseVersion is also checked
// against the tags already merged into the default branch.
func (service *Service) Preflight(executionContext context.Context, options PreflightOptions) error {
	service.logPhaseStarted(phasePreflightConstant, options.DefaultBranch, "")

	if _, refreshError := service.refresher.Refresh(executionContext, refresh.Options{RemoteName: options.RemoteName, BranchName: options.DefaultBranch}); refreshError != nil {
		return fmt.Errorf(refreshFailureTemplateConstant, options.DefaultBranch, refreshError)
	}
	if synchronizationError := service.synchronization.EnsureSynchronized(executionContext); synchronizationError != nil {
		return fmt.Errorf(synchronizationFailureTemplateConstant, options.DefaultBranch, synchronizationError)
	}
	if bumpError := service.concurrency.EnsureNoOtherBumps(executionContext, options.RemoteName, options.DefaultBranch, options.ProductionBranch); bumpError != nil {
		return bumpError
	}
	if releaseVersion := strings.TrimSpace(options.ReleaseVersion); len(releaseVersion) > 0 {
		if releasedError := service.concurrency.EnsureUnreleased(executionContext, releaseVersion, options.DefaultBranch, options.VersionPrefix+releaseVersion); releasedError != nil {
			return releasedError
		}
	}
	if testError := service.runProjectCommand(executionContext, testCommandLabelConstant, service.settings.TestCommand, nil); testError != nil {
		return testError
	}

	service.logPhaseCompleted(phasePreflightConstant, options.DefaultBranch)
	return nil
}

// Bump creates the release branch for packageVersion, records the version in the changelog, and
// stages the changelog. The commit is left to the caller's version tooling.
func (service *Service) Bump(executionContext context.Context, packageVersion string) (string, error) {
	trimmedVersion := strings.TrimSpace(packageVersion)
	if len(trimmedVersion) == 0 {
		return "", ErrPackageVersionRequired
	}
	releaseBranch := ReleaseBranchName(trimmedVersion)
	service.logPhaseStarted(phaseBumpConstant, releaseBranch, "")

	if createError := service.repositoryManager.CreateBranch(executionContext, releaseBranch); createError != nil {
		return "", fmt.Errorf(createBranchFailureTemplateConstant, releaseBranch, createError)
	}

	changelogFile := service.settings.ChangelogFile
	changelogPath := filepath.Join(service.settings.RepositoryPath, changelogFile)
	exists, inspectError := afero.Exists(service.fileSystem, changelogPath)
	if inspectError != nil {
		return "", fmt.Errorf(changelogInspectTemplateConstant, changelogFile, inspectError)
	}
	if !exists {
		return "", fmt.Errorf(changelogMissingTemplateConstant, changelogFile)
	}

	replacer := strings.NewReplacer(VersionPlaceholder, trimmedVersion, FilePlaceholder, changelogFile)
	if changelogError := service.runProjectCommand(executionContext, changelogCommandLabelConstant, service.settings.ChangelogCommand, replacer); changelogError != nil {
		return "", changelogError
	}

	if stageError := service.repositoryManager.Stage(executionContext, changelogFile); stageError != nil {
		return "", fmt.Errorf(stageFailureTemplateConstant, changelogFile, stageError)
	}

	service.logPhaseCompleted(phaseBumpConstant, releaseBranch)
	return releaseBranch, nil
}

// Publish refuses versions whose tag already reached the default branch, then pushes the release
// branch with its tags and opens a pull request into the production branch.
func (service *Service) Publish(executionContext context.Context, releaseContext Context) (string, error) {
	service.logPhaseStarted(phasePublishConstant, releaseContext.ReleaseBranch, releaseContext.Milestone)

	if releasedError := service.concurrency.EnsureUnreleased(executionContext, releaseContext.ReleaseVersion, releaseContext.DefaultBranch, releaseContext.VersionPrefix+releaseContext.ReleaseVersion); releasedError != nil {
		return "", releasedError
	}

	pushOptions := gitrepo.PushOptions{
		RemoteName:  releaseContext.RemoteName,
		References:  []string{releaseContext.ReleaseBranch},
		FollowTags:  true,
		SetUpstream: true,
	}
	if pushError := service.repositoryManager.Push(executionContext, pushOptions); pushError != nil {
		return "", fmt.Errorf(pushFailureTemplateConstant, releaseContext.ReleaseBranch, pushError)
	}

	pullRequestURL, pullRequestError := service.openPullRequest(executionContext, releaseContext, releaseContext.ProductionBranch)
	if pullRequestError != nil {
		return "", pullRequestError
	}

	service.logPhaseCompleted(phasePublishConstant, releaseContext.ReleaseBranch, zap.String(logFieldPullRequestConstant, pullRequestURL))
	return pullRequestURL, nil
}

// Merge merges the release pull request into the production branch, moves the release branch to
// the merged production branch, and opens a pull request carrying it back into the default branch.
func (service *Service) Merge(executionContext context.Context, releaseContext Context) (MergeResult, error) {
	service.logPhaseStarted(phaseMergeConstant, releaseContext.ReleaseBranch, releaseContext.Milestone)

	releasePullRequest, findError := service.merger.Find(executionContext, releaseContext.ReleaseBranch, releaseContext.ProductionBranch)
	if findError != nil {
		return MergeResult{}, fmt.Errorf(findFailureTemplateConstant, findError)
	}

	mergedPullRequest, mergeError := service.merger.Merge(executionContext, pullrequests.Options{
		PullRequestID: releasePullRequest.ID,
		RemoteName:    releaseContext.RemoteName,
		DefaultBranch: releaseContext.DefaultBranch,
		ReleasePhase:  true,
	})
	if mergeError != nil {
		return MergeResult{}, fmt.Errorf(mergeFailureTemplateConstant, mergeError)
	}

	if resetError := service.repositoryManager.ResetBranch(executionContext, releaseContext.ReleaseBranch, releaseContext.ProductionBranch); resetError != nil {
		return MergeResult{}, fmt.Errorf(resetFailureTemplateConstant, releaseContext.ReleaseBranch, releaseContext.ProductionBranch, resetError)
	}
	pushOptions := gitrepo.PushOptions{
		RemoteName:  releaseContext.RemoteName,
		References:  []string{releaseContext.ReleaseBranch},
		SetUpstream: true,
	}
	if pushError := service.repositoryManager.Push(executionContext, pushOptions); pushError != nil {
		return MergeResult{}, fmt.Errorf(pushFailureTemplateConstant, releaseContext.ReleaseBranch, pushError)
	}

	pullRequestURL, pullRequestError := service.openPullRequest(executionContext, releaseContext, releaseContext.DefaultBranch)
	if pullRequestError != nil {
		return MergeResult{}, pullRequestError
	}

	service.logPhaseCompleted(phaseMergeConstant, releaseContext.ReleaseBranch, zap.String(logFieldPullRequestConstant, pullRequestURL))
	return MergeResult{ProductionPullRequest: mergedPullRequest, DefaultPullRequestURL: pullRequestURL}, nil
}

func (service *Service) openPullRequest(executionContext context.Context, releaseContext Context, baseBranch string) (string, error) {
	pullRequestURL, createError := service.pullRequests.CreatePullRequest(executionContext, githubcli.PullRequestCreateOptions{
		BaseBranch: baseBranch,
		HeadBranch: releaseContext.ReleaseBranch,
		Title:      releaseContext.PullRequestTitle,
		Milestone:  releaseContext.Milestone,
	})
	if createError != nil {
		return "", fmt.Errorf(pullRequestFailureTemplateConstant, releaseContext.ReleaseBranch, baseBranch, createError)
	}
	return pullRequestURL, nil
}

func (service *Service) runProjectCommand(executionContext context.Context, label string, command []string, replacer *strings.Replacer) error {
	if len(command) == 0 || len(strings.TrimSpace(command[0])) == 0 {
		return fmt.Errorf(emptyCommandTemplateConstant, label)
	}
	arguments := make([]string, 0, len(command)-1)
	for _, argument := range command[1:] {
		if replacer != nil {
			argument = replacer.Replace(argument)
		}
		arguments = append(arguments, argument)
	}

	_, executionError := service.commandExecutor.ExecuteCommand(executionContext, execshell.CommandName(strings.TrimSpace(command[0])), execshell.CommandDetails{
		Arguments:        arguments,
		WorkingDirectory: service.settings.RepositoryPath,
	})
	if executionError != nil {
		return fmt.Errorf(commandFailureTemplateConstant, label, executionError)
	}
	return nil
}

func (service *Service) logPhaseStarted(phase string, branch string, milestone string) {
	fields := []zap.Field{zap.String(logFieldPhaseConstant, phase), zap.String(logFieldBranchConstant, branch)}
	if len(milestone) > 0 {
		fields = append(fields, zap.String(logFieldMilestoneConstant, milestone))
	}
	service.logger.Info(phaseStartedMessageConstant, fields...)
}

func (service *Service) logPhaseCompleted(phase string, branch string, additionalFields ...zap.Field) {
	fields := append([]zap.Field{zap.String(logFieldPhaseConstant, phase), zap.String(logFieldBranchConstant, branch)}, additionalFields...)
	service.logger.Info(phaseCompletedMessageConstant, fields...)
}
