package safety

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

const (
	revisionReaderMissingMessageConstant   = "revision reader not configured"
	unsynchronizedBranchTemplateConstant   = "local branch is not in sync with upstream: %s is at %s but %s is at %s"
	currentBranchFailureTemplateConstant   = "failed to identify current branch: %w"
	upstreamBranchFailureTemplateConstant  = "failed to identify upstream of %s: %w"
	revisionResolveFailureTemplateConstant = "failed to compare %s with %s: %w"
	branchSynchronizedMessageConstant      = "Local branch matches upstream"
	logFieldBranchConstant                 = "branch"
	logFieldUpstreamConstant               = "upstream"
	logFieldRevisionConstant               = "revision"
	localRevisionIndexConstant             = 0
	upstreamRevisionIndexConstant          = 1
)

// ErrRevisionReaderNotConfigured indicates the guard was constructed without a revision reader.
var ErrRevisionReaderNotConfigured = errors.New(revisionReaderMissingMessageConstant)

// RevisionReader is the subset of gitrepo.RepositoryManager needed to compare a branch with its upstream.
type RevisionReader interface {
	CurrentBranch(executionContext context.Context) (string, error)
	UpstreamBranch(executionContext context.Context) (string, error)
	ResolveRevisions(executionContext context.Context, references ...string) ([]string, error)
}

// UnsynchronizedBranchError reports a local branch whose commit differs from its upstream's.
type UnsynchronizedBranchError struct {
	Branch           string
	Upstream         string
	LocalRevision    string
	UpstreamRevision string
}

// Error describes the divergence.
func (unsynchronizedError UnsynchronizedBranchError) Error() string {
	return fmt.Sprintf(unsynchronizedBranchTemplateConstant, unsynchronizedError.Branch, unsynchronizedError.LocalRevision, unsynchronizedError.Upstream, unsynchronizedError.UpstreamRevision)
}

// SynchronizationGuard turns upstream divergence into a hard failure.
type SynchronizationGuard struct {
	revisions RevisionReader
	logger    *zap.Logger
}

// NewSynchronizationGuard constructs a SynchronizationGuard. A nil logger disables logging.
func NewSynchronizationGuard(revisions RevisionReader, logger *zap.Logger) (*SynchronizationGuard, error) {
	if revisions == nil {
		return nil, ErrRevisionReaderNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SynchronizationGuard{revisions: revisions, logger: logger}, nil
}

// EnsureSynchronized succeeds only when the checked-out branch and its upstream resolve to the same commit.
func (guard *SynchronizationGuard) EnsureSynchronized(executionContext context.Context) error {
	currentBranch, currentError := guard.revisions.CurrentBranch(executionContext)
	if currentError != nil {
		return fmt.Errorf(currentBranchFailureTemplateConstant, currentError)
	}

	upstreamBranch, upstreamError := guard.revisions.UpstreamBranch(executionContext)
	if upstreamError != nil {
		return fmt.Errorf(upstreamBranchFailureTemplateConstant, currentBranch, upstreamError)
	}

	revisions, resolveError := guard.revisions.ResolveRevisions(executionContext, currentBranch, upstreamBranch)
	if resolveError != nil {
		return fmt.Errorf(revisionResolveFailureTemplateConstant, currentBranch, upstreamBranch, resolveError)
	}

	localRevision := revisions[localRevisionIndexConstant]
	upstreamRevision := revisions[upstreamRevisionIndexConstant]
	if localRevision != upstreamRevision {
		return UnsynchronizedBranchError{
			Branch:           currentBranch,
			Upstream:         upstreamBranch,
			LocalRevision:    localRevision,
			UpstreamRevision: upstreamRevision,
		}
	}

	guard.logger.Debug(branchSynchronizedMessageConstant,
		zap.String(logFieldBranchConstant, currentBranch),
		zap.String(logFieldUpstreamConstant, upstreamBranch),
		zap.String(logFieldRevisionConstant, localRevision),
	)
	return nil
}
