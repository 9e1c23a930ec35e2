// Package refresh brings a local branch up to date with its upstream.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jarrodldavis/npm-version-scripts/internal/execshell"
)

const (
	remoteNameRequiredMessageConstant       = "remote name must be provided"
	repositoryManagerMissingMessageConstant = "repository manager not configured"
	gitFetchFailureTemplateConstant         = "failed to fetch updates: %w"
	gitCheckoutFailureTemplateConstant      = "failed to checkout branch %q: %w"
	gitCurrentBranchFailureTemplateConstant = "failed to identify current branch: %w"
	gitFastForwardFailureTemplateConstant   = "failed to fast-forward branch %q: %w"
	fastForwardSkippedMessageConstant       = "Branch could not be fast-forwarded to its upstream"
	branchRefreshedMessageConstant          = "Branch refreshed"
	logFieldBranchConstant                  = "branch"
	logFieldRemoteConstant                  = "remote"
	logFieldReasonConstant                  = "reason"
)

// ErrRemoteNameRequired indicates the remote option was empty.
var ErrRemoteNameRequired = errors.New(remoteNameRequiredMessageConstant)

// ErrRepositoryManagerNotConfigured indicates the repository manager dependency was missing.
var ErrRepositoryManagerNotConfigured = errors.New(repositoryManagerMissingMessageConstant)

// BranchSynchronizer is the subset of gitrepo.RepositoryManager used to refresh a branch.
type BranchSynchronizer interface {
	Fetch(executionContext context.Context, remoteName string, references ...string) error
	Checkout(executionContext context.Context, branchName string) error
	CurrentBranch(executionContext context.Context) (string, error)
	FastForward(executionContext context.Context) error
}

// Dependencies enumerates external collaborators required for refresh operations.
type Dependencies struct {
	RepositoryManager BranchSynchronizer
	Logger            *zap.Logger
}

// Options configures a branch refresh. An empty BranchName refreshes the checked-out branch.
type Options struct {
	RemoteName string
	BranchName string
}

// Result captures the observable outcomes of a refresh.
type Result struct {
	BranchName    string
	FastForwarded bool
}

// Service coordinates branch refresh operations through git.
type Service struct {
	repositoryManager BranchSynchronizer
	logger            *zap.Logger
}

// NewService constructs a Service from the provided dependencies.
func NewService(dependencies Dependencies) (*Service, error) {
	if dependencies.RepositoryManager == nil {
		return nil, ErrRepositoryManagerNotConfigured
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repositoryManager: dependencies.RepositoryManager, logger: logger}, nil
}

// Refresh fetches from the remote, optionally checks out a branch, and fast-forwards it to its upstream.
// A branch that cannot be fast-forwarded is reported with a warning rather than an error; callers
// that need a hard guarantee follow up with a synchronization check.
func (service *Service) Refresh(executionContext context.Context, options Options) (Result, error) {
	trimmedRemoteName := strings.TrimSpace(options.RemoteName)
	if len(trimmedRemoteName) == 0 {
		return Result{}, ErrRemoteNameRequired
	}

	if fetchError := service.repositoryManager.Fetch(executionContext, trimmedRemoteName); fetchError != nil {
		return Result{}, fmt.Errorf(gitFetchFailureTemplateConstant, fetchError)
	}

	branchName := strings.TrimSpace(options.BranchName)
	if len(branchName) > 0 {
		if checkoutError := service.repositoryManager.Checkout(executionContext, branchName); checkoutError != nil {
			return Result{}, fmt.Errorf(gitCheckoutFailureTemplateConstant, branchName, checkoutError)
		}
	} else {
		currentBranch, currentError := service.repositoryManager.CurrentBranch(executionContext)
		if currentError != nil {
			return Result{}, fmt.Errorf(gitCurrentBranchFailureTemplateConstant, currentError)
		}
		branchName = currentBranch
	}

	fastForwardError := service.repositoryManager.FastForward(executionContext)
	if fastForwardError != nil {
		var failedError execshell.CommandFailedError
		if !errors.As(fastForwardError, &failedError) {
			return Result{}, fmt.Errorf(gitFastForwardFailureTemplateConstant, branchName, fastForwardError)
		}
		service.logger.Warn(fastForwardSkippedMessageConstant,
			zap.String(logFieldBranchConstant, branchName),
			zap.String(logFieldRemoteConstant, trimmedRemoteName),
			zap.String(logFieldReasonConstant, failedError.Diagnostic()),
		)
		return Result{BranchName: branchName}, nil
	}

	service.logger.Info(branchRefreshedMessageConstant, zap.String(logFieldBranchConstant, branchName), zap.String(logFieldRemoteConstant, trimmedRemoteName))
	return Result{BranchName: branchName, FastForwarded: true}, nil
}
