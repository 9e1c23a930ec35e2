package pullrequests

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/jarrodldavis/npm-version-scripts/internal/branches/refresh"
	"github.com/jarrodldavis/npm-version-scripts/internal/execshell"
	"github.com/jarrodldavis/npm-version-scripts/internal/githubcli"
	"github.com/jarrodldavis/npm-version-scripts/internal/gitrepo"
	"github.com/jarrodldavis/npm-version-scripts/internal/safety"
)

const (
	// DefaultRemoteName is used when no remote is supplied.
	DefaultRemoteName = "origin"

	pullRequestIDRequiredMessageConstant    = "you must specify a pull request number"
	gatewayMissingMessageConstant           = "pull request gateway not configured"
	branchResolverMissingMessageConstant    = "default branch resolver not configured"
	repositoryManagerMissingMessageConstant = "repository manager not configured"
	pullRequestNotFoundTemplateConstant     = "%s - not an open pull request number"
	pullRequestPairNotFoundTemplateConstant = "no open pull request from %s into %s"
	ambiguousPullRequestTemplateConstant    = "multiple open pull requests match %s: %s"
	releaseBranchPolicyMessageConstant      = "use the dedicated merge command for release branches"
	failingStatusTemplateConstant           = "status checks for %s are %s:\n%s"
	unknownStatusStateConstant              = "not successful"
	mergeMessageTemplateConstant            = "Merge pull request #%s from %s\n\n%s"
	pullRequestReferenceTemplateConstant    = "pull/%s/head"
	pairDescriptionTemplateConstant         = "%s into %s"
	pullRequestNumberPrefixConstant         = "#"
	numberSeparatorConstant                 = ", "
	releaseBranchPrefixConstant             = "release"
	listFailureTemplateConstant             = "failed to list open pull requests: %w"
	viewFailureTemplateConstant             = "failed to read pull request #%s: %w"
	defaultBranchFailureTemplateConstant    = "failed to resolve default branch: %w"
	statusFailureTemplateConstant           = "failed to read status checks for %s: %w"
	baseRefreshFailureTemplateConstant      = "failed to update %s: %w"
	synchronizationFailureTemplateConstant  = "refusing to merge into %s: %w"
	fetchFailureTemplateConstant            = "failed to fetch pull request #%s: %w"
	mergeFailureTemplateConstant            = "failed to merge pull request #%s: %w"
	pushFailureTemplateConstant             = "failed to push %s: %w"
	deleteFailureTemplateConstant           = "failed to delete %s from %s: %w"
	finalRefreshFailureTemplateConstant     = "failed to update local branch after merge: %w"
	pullRequestMergedMessageConstant        = "Merged pull request"
	statusCheckedMessageConstant            = "Status checks passed"
	logFieldPullRequestConstant             = "pull_request"
	logFieldBaseBranchConstant              = "base"
	logFieldHeadBranchConstant              = "head"
	logFieldCommitConstant                  = "commit"
	logFieldRemoteConstant                  = "remote"
)

var (
	// ErrPullRequestIDRequired indicates Merge was called without an identifier.
	ErrPullRequestIDRequired = errors.New(pullRequestIDRequiredMessageConstant)
	// ErrGatewayNotConfigured indicates the pull request gateway dependency was missing.
	ErrGatewayNotConfigured = errors.New(gatewayMissingMessageConstant)
	// ErrBranchResolverNotConfigured indicates the default branch resolver dependency was missing.
	ErrBranchResolverNotConfigured = errors.New(branchResolverMissingMessageConstant)
	// ErrRepositoryManagerNotConfigured indicates the repository manager dependency was missing.
	ErrRepositoryManagerNotConfigured = errors.New(repositoryManagerMissingMessageConstant)
)

// Gateway lists and reads pull requests and their CI status.
type Gateway interface {
	ListPullRequests(executionContext context.Context, options githubcli.PullRequestListOptions) ([]githubcli.PullRequest, error)
	ViewPullRequest(executionContext context.Context, number int) (githubcli.PullRequest, githubcli.PullRequestState, error)
	CommitStatus(executionContext context.Context, commit string) (githubcli.CommitStatus, error)
}

// DefaultBranchResolver reports the repository's default branch.
type DefaultBranchResolver interface {
	DefaultBranch(executionContext context.Context) (string, error)
}

// RepositoryManager is the subset of gitrepo.RepositoryManager used to merge locally.
type RepositoryManager interface {
	refresh.BranchSynchronizer
	safety.RevisionReader
	MergeCommit(executionContext context.Context, revision string, message string) error
	Push(executionContext context.Context, options gitrepo.PushOptions) error
	DeleteRemoteBranch(executionContext context.Context, remoteName string, branchName string) error
}

// Dependencies enumerates the collaborators required by Service.
type Dependencies struct {
	Gateway           Gateway
	BranchResolver    DefaultBranchResolver
	RepositoryManager RepositoryManager
	Logger            *zap.Logger
}

// Options configures a merge.
type Options struct {
	PullRequestID string
	RemoteName    string
	// DefaultBranch skips the default branch lookup when already known.
	DefaultBranch string
	// ReleasePhase permits merging release branches into a non-default base.
	ReleasePhase bool
	// ResultLimit bounds the open pull request listing; numbers outside it are read individually.
	ResultLimit int
}

// Details describes the pull request a merge acted on.
type Details struct {
	ID         string
	Title      string
	BaseBranch string
	HeadBranch string
	URL        string
	SHA        string
}

func newDetails(pullRequest githubcli.PullRequest) Details {
	return Details{
		ID:         pullRequest.ID(),
		Title:      pullRequest.Title,
		BaseBranch: pullRequest.BaseRefName,
		HeadBranch: pullRequest.HeadRefName,
		URL:        pullRequest.URL,
		SHA:        pullRequest.HeadRefOid,
	}
}

// PullRequestNotFoundError reports that no open pull request matched.
type PullRequestNotFoundError struct {
	ID         string
	HeadBranch string
	BaseBranch string
}

// Error describes the identifier or branch pair that matched nothing.
func (notFoundError PullRequestNotFoundError) Error() string {
	if len(notFoundError.ID) > 0 {
		return fmt.Sprintf(pullRequestNotFoundTemplateConstant, notFoundError.ID)
	}
	return fmt.Sprintf(pullRequestPairNotFoundTemplateConstant, notFoundError.HeadBranch, notFoundError.BaseBranch)
}

// AmbiguousPullRequestError reports more than one open pull request matching a lookup.
type AmbiguousPullRequestError struct {
	Description string
	Numbers     []string
}

// Error lists the competing pull request numbers.
func (ambiguousError AmbiguousPullRequestError) Error() string {
	return fmt.Sprintf(ambiguousPullRequestTemplateConstant, ambiguousError.Description, strings.Join(ambiguousError.Numbers, numberSeparatorConstant))
}

// ReleaseBranchPolicyError reports an attempt to merge a release branch outside the merge phase.
type ReleaseBranchPolicyError struct {
	HeadBranch    string
	BaseBranch    string
	DefaultBranch string
}

// Error points at the merge command.
func (ReleaseBranchPolicyError) Error() string {
	return releaseBranchPolicyMessageConstant
}

// FailingStatusError carries the CI summary for a pull request whose checks did not succeed.
type FailingStatusError struct {
	PullRequestID string
	State         string
	Summary       string
}

// Error describes the rollup state followed by one line per check.
func (statusError FailingStatusError) Error() string {
	state := statusError.State
	if len(state) == 0 {
		state = unknownStatusStateConstant
	}
	return fmt.Sprintf(failingStatusTemplateConstant, pullRequestNumberPrefixConstant+statusError.PullRequestID, state, statusError.Summary)
}

// Service merges pull requests.
type Service struct {
	gateway           Gateway
	branchResolver    DefaultBranchResolver
	repositoryManager RepositoryManager
	refresher         *refresh.Service
	synchronization   *safety.SynchronizationGuard
	logger            *zap.Logger
}

// NewService constructs a Service from the provided dependencies.
func NewService(dependencies Dependencies) (*Service, error) {
	if dependencies.Gateway == nil {
		return nil, ErrGatewayNotConfigured
	}
	if dependencies.BranchResolver == nil {
		return nil, ErrBranchResolverNotConfigured
	}
	if dependencies.RepositoryManager == nil {
		return nil, ErrRepositoryManagerNotConfigured
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	refresher, refresherError := refresh.NewService(refresh.Dependencies{RepositoryManager: dependencies.RepositoryManager, Logger: logger})
	if refresherError != nil {
		return nil, refresherError
	}
	synchronization, synchronizationError := safety.NewSynchronizationGuard(dependencies.RepositoryManager, logger)
	if synchronizationError != nil {
		return nil, synchronizationError
	}

	return &Service{
		gateway:           dependencies.Gateway,
		branchResolver:    dependencies.BranchResolver,
		repositoryManager: dependencies.RepositoryManager,
		refresher:         refresher,
		synchronization:   synchronization,
		logger:            logger,
	}, nil
}

// Find returns the single open pull request from headBranch into baseBranch.
func (service *Service) Find(executionContext context.Context, headBranch string, baseBranch string) (Details, error) {
	pullRequests, listError := service.gateway.ListPullRequests(executionContext, githubcli.PullRequestListOptions{
		State:      githubcli.PullRequestStateOpen,
		HeadBranch: headBranch,
		BaseBranch: baseBranch,
	})
	if listError != nil {
		return Details{}, fmt.Errorf(listFailureTemplateConstant, listError)
	}

	matches := make([]githubcli.PullRequest, 0, 1)
	for _, pullRequest := range pullRequests {
		if pullRequest.HeadRefName == headBranch && pullRequest.BaseRefName == baseBranch {
			matches = append(matches, pullRequest)
		}
	}
	switch len(matches) {
	case 0:
		return Details{}, PullRequestNotFoundError{HeadBranch: headBranch, BaseBranch: baseBranch}
	case 1:
		return newDetails(matches[0]), nil
	default:
		return Details{}, AmbiguousPullRequestError{Description: fmt.Sprintf(pairDescriptionTemplateConstant, headBranch, baseBranch), Numbers: pullRequestNumbers(matches)}
	}
}

// Merge merges the identified pull request into its base branch, deletes the remote head branch,
// and refreshes the local base branch. Steps are not rolled back when a later step fails.
func (service *Service) Merge(executionContext context.Context, options Options) (Details, error) {
	pullRequestID := strings.TrimPrefix(strings.TrimSpace(options.PullRequestID), pullRequestNumberPrefixConstant)
	if len(pullRequestID) == 0 {
		return Details{}, ErrPullRequestIDRequired
	}
	remoteName := strings.TrimSpace(options.RemoteName)
	if len(remoteName) == 0 {
		remoteName = DefaultRemoteName
	}

	details, lookupError := service.lookup(executionContext, pullRequestID, options.ResultLimit)
	if lookupError != nil {
		return Details{}, lookupError
	}

	if policyError := service.enforceBranchPolicy(executionContext, details, options); policyError != nil {
		return Details{}, policyError
	}

	status, statusError := service.gateway.CommitStatus(executionContext, details.SHA)
	if statusError != nil {
		return Details{}, fmt.Errorf(statusFailureTemplateConstant, details.SHA, statusError)
	}
	if !status.Successful() {
		return Details{}, FailingStatusError{PullRequestID: details.ID, State: status.State, Summary: status.Summary()}
	}
	service.logger.Debug(statusCheckedMessageConstant, zap.String(logFieldPullRequestConstant, details.ID), zap.String(logFieldCommitConstant, details.SHA))

	if _, refreshError := service.refresher.Refresh(executionContext, refresh.Options{RemoteName: remoteName, BranchName: details.BaseBranch}); refreshError != nil {
		return Details{}, fmt.Errorf(baseRefreshFailureTemplateConstant, details.BaseBranch, refreshError)
	}
	if synchronizationError := service.synchronization.EnsureSynchronized(executionContext); synchronizationError != nil {
		return Details{}, fmt.Errorf(synchronizationFailureTemplateConstant, details.BaseBranch, synchronizationError)
	}

	if fetchError := service.repositoryManager.Fetch(executionContext, remoteName, fmt.Sprintf(pullRequestReferenceTemplateConstant, details.ID)); fetchError != nil {
		return Details{}, fmt.Errorf(fetchFailureTemplateConstant, details.ID, fetchError)
	}
	mergeMessage := fmt.Sprintf(mergeMessageTemplateConstant, details.ID, details.HeadBranch, details.Title)
	if mergeError := service.repositoryManager.MergeCommit(executionContext, details.SHA, mergeMessage); mergeError != nil {
		return Details{}, fmt.Errorf(mergeFailureTemplateConstant, details.ID, mergeError)
	}
	if pushError := service.repositoryManager.Push(executionContext, gitrepo.PushOptions{RemoteName: remoteName, References: []string{details.BaseBranch}}); pushError != nil {
		return Details{}, fmt.Errorf(pushFailureTemplateConstant, details.BaseBranch, pushError)
	}
	if deleteError := service.repositoryManager.DeleteRemoteBranch(executionContext, remoteName, details.HeadBranch); deleteError != nil {
		return Details{}, fmt.Errorf(deleteFailureTemplateConstant, details.HeadBranch, remoteName, deleteError)
	}
	if _, refreshError := service.refresher.Refresh(executionContext, refresh.Options{RemoteName: remoteName}); refreshError != nil {
		return Details{}, fmt.Errorf(finalRefreshFailureTemplateConstant, refreshError)
	}

	service.logger.Info(pullRequestMergedMessageConstant,
		zap.String(logFieldPullRequestConstant, details.ID),
		zap.String(logFieldBaseBranchConstant, details.BaseBranch),
		zap.String(logFieldHeadBranchConstant, details.HeadBranch),
		zap.String(logFieldRemoteConstant, remoteName),
	)
	return details, nil
}

func (service *Service) lookup(executionContext context.Context, pullRequestID string, resultLimit int) (Details, error) {
	pullRequests, listError := service.gateway.ListPullRequests(executionContext, githubcli.PullRequestListOptions{
		State:       githubcli.PullRequestStateOpen,
		ResultLimit: resultLimit,
	})
	if listError != nil {
		return Details{}, fmt.Errorf(listFailureTemplateConstant, listError)
	}

	matches := make([]githubcli.PullRequest, 0, 1)
	for _, pullRequest := range pullRequests {
		if pullRequest.ID() == pullRequestID {
			matches = append(matches, pullRequest)
		}
	}
	switch len(matches) {
	case 0:
		return service.view(executionContext, pullRequestID)
	case 1:
		return newDetails(matches[0]), nil
	default:
		return Details{}, AmbiguousPullRequestError{Description: pullRequestNumberPrefixConstant + pullRequestID, Numbers: pullRequestNumbers(matches)}
	}
}

// view reads a pull request that fell outside the listing. The listing already proved gh works, so a
// failing gh pr view means the number does not resolve.
func (service *Service) view(executionContext context.Context, pullRequestID string) (Details, error) {
	number, parseError := strconv.Atoi(pullRequestID)
	if parseError != nil || number <= 0 {
		return Details{}, PullRequestNotFoundError{ID: pullRequestID}
	}

	pullRequest, state, viewError := service.gateway.ViewPullRequest(executionContext, number)
	var failedError execshell.CommandFailedError
	switch {
	case errors.As(viewError, &failedError):
		return Details{}, PullRequestNotFoundError{ID: pullRequestID}
	case viewError != nil:
		return Details{}, fmt.Errorf(viewFailureTemplateConstant, pullRequestID, viewError)
	case state != githubcli.PullRequestStateOpen:
		return Details{}, PullRequestNotFoundError{ID: pullRequestID}
	}
	return newDetails(pullRequest), nil
}

// enforceBranchPolicy rejects release branches headed anywhere but the default branch unless
// the merge runs as part of the release merge phase.
func (service *Service) enforceBranchPolicy(executionContext context.Context, details Details, options Options) error {
	if !strings.HasPrefix(details.HeadBranch, releaseBranchPrefixConstant) || options.ReleasePhase {
		return nil
	}

	defaultBranch := strings.TrimSpace(options.DefaultBranch)
	if len(defaultBranch) == 0 {
		resolvedBranch, resolveError := service.branchResolver.DefaultBranch(executionContext)
		if resolveError != nil {
			return fmt.Errorf(defaultBranchFailureTemplateConstant, resolveError)
		}
		defaultBranch = resolvedBranch
	}

	if details.BaseBranch == defaultBranch {
		return nil
	}
	return ReleaseBranchPolicyError{HeadBranch: details.HeadBranch, BaseBranch: details.BaseBranch, DefaultBranch: defaultBranch}
}

func pullRequestNumbers(pullRequests []githubcli.PullRequest) []string {
	numbers := make([]string, 0, len(pullRequests))
	for _, pullRequest := range pullRequests {
		numbers = append(numbers, pullRequestNumberPrefixConstant+pullRequest.ID())
	}
	return numbers
}
