package safety

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	releaseStateReaderMissingMessageConstant = "release state reader not configured"
	releaseInProgressPrefixConstant          = "a release is already in progress: "
	unmergedTagsReasonTemplateConstant       = "unmerged tags (%s)"
	unmergedReleaseReasonTemplateConstant    = "unmerged release branches (%s)"
	unmergedProductionReasonTemplateConstant = "unmerged production branch (%s)"
	alreadyReleasedTemplateConstant          = "version %s has already been released: tag %s is merged into %s"
	reasonSeparatorConstant                  = "; "
	nameSeparatorConstant                    = ", "
	releaseBranchPrefixConstant              = "release/"
	remoteBranchSeparatorConstant            = "/"
	unmergedTagsFailureTemplateConstant      = "failed to list tags not merged into %s: %w"
	unmergedBranchesFailureTemplateConstant  = "failed to list branches not merged into %s: %w"
	mergedTagsFailureTemplateConstant        = "failed to list tags merged into %s: %w"
	noReleaseInProgressMessageConstant       = "No release in progress"
	logFieldDefaultBranchConstant            = "default_branch"
	logFieldProductionBranchConstant         = "production_branch"
	releaseCandidateCapacityConstant         = 2
)

// ErrReleaseStateReaderNotConfigured indicates the guard was constructed without a release state reader.
var ErrReleaseStateReaderNotConfigured = errors.New(releaseStateReaderMissingMessageConstant)

// ReleaseStateReader is the subset of gitrepo.RepositoryManager needed to inspect tag and branch state.
type ReleaseStateReader interface {
	UnmergedTags(executionContext context.Context, targetBranch string) ([]string, error)
	MergedTags(executionContext context.Context, targetBranch string, patterns ...string) ([]string, error)
	UnmergedBranches(executionContext context.Context, targetBranch string) ([]string, error)
}

// ReleaseState lists the artifacts of earlier releases that have not reached the default branch.
type ReleaseState struct {
	UnmergedTags               []string
	UnmergedReleaseBranches    []string
	UnmergedProductionBranches []string
}

// ReleaseStatus conveys whether a new release may start.
type ReleaseStatus struct {
	SafeToStart     bool
	BlockingReasons []string
}

// ReleaseEvaluator turns a ReleaseState into a ReleaseStatus.
type ReleaseEvaluator struct{}

// Evaluate reports one blocking reason per non-empty category.
func (ReleaseEvaluator) Evaluate(state ReleaseState) ReleaseStatus {
	blockingReasons := make([]string, 0, 3)
	if len(state.UnmergedTags) > 0 {
		blockingReasons = append(blockingReasons, fmt.Sprintf(unmergedTagsReasonTemplateConstant, strings.Join(state.UnmergedTags, nameSeparatorConstant)))
	}
	if len(state.UnmergedReleaseBranches) > 0 {
		blockingReasons = append(blockingReasons, fmt.Sprintf(unmergedReleaseReasonTemplateConstant, strings.Join(state.UnmergedReleaseBranches, nameSeparatorConstant)))
	}
	if len(state.UnmergedProductionBranches) > 0 {
		blockingReasons = append(blockingReasons, fmt.Sprintf(unmergedProductionReasonTemplateConstant, strings.Join(state.UnmergedProductionBranches, nameSeparatorConstant)))
	}
	return ReleaseStatus{SafeToStart: len(blockingReasons) == 0, BlockingReasons: blockingReasons}
}

// ReleaseInProgressError reports leftover artifacts of an unfinished release.
type ReleaseInProgressError struct {
	State  ReleaseState
	Status ReleaseStatus
}

// Error enumerates every offending artifact.
func (progressError ReleaseInProgressError) Error() string {
	return releaseInProgressPrefixConstant + strings.Join(progressError.Status.BlockingReasons, reasonSeparatorConstant)
}

// AlreadyReleasedError reports a release version whose tag already reached the default branch.
type AlreadyReleasedError struct {
	Version       string
	Tag           string
	DefaultBranch string
}

// Error describes the duplicate release.
func (releasedError AlreadyReleasedError) Error() string {
	return fmt.Sprintf(alreadyReleasedTemplateConstant, releasedError.Version, releasedError.Tag, releasedError.DefaultBranch)
}

// ConcurrencyGuard detects releases already in flight from durable repository state.
type ConcurrencyGuard struct {
	repository ReleaseStateReader
	evaluator  ReleaseEvaluator
	logger     *zap.Logger
}

// NewConcurrencyGuard constructs a ConcurrencyGuard. A nil logger disables logging.
func NewConcurrencyGuard(repository ReleaseStateReader, logger *zap.Logger) (*ConcurrencyGuard, error) {
	if repository == nil {
		return nil, ErrReleaseStateReaderNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConcurrencyGuard{repository: repository, logger: logger}, nil
}

// InspectReleaseState collects unmerged tags, release branches, and production branches, local and remote.
func (guard *ConcurrencyGuard) InspectReleaseState(executionContext context.Context, remoteName string, defaultBranch string, productionBranch string) (ReleaseState, error) {
	unmergedTags, tagsError := guard.repository.UnmergedTags(executionContext, defaultBranch)
	if tagsError != nil {
		return ReleaseState{}, fmt.Errorf(unmergedTagsFailureTemplateConstant, defaultBranch, tagsError)
	}

	unmergedBranches, branchesError := guard.repository.UnmergedBranches(executionContext, defaultBranch)
	if branchesError != nil {
		return ReleaseState{}, fmt.Errorf(unmergedBranchesFailureTemplateConstant, defaultBranch, branchesError)
	}

	remoteReleasePrefix := remoteName + remoteBranchSeparatorConstant + releaseBranchPrefixConstant
	remoteProductionBranch := remoteName + remoteBranchSeparatorConstant + productionBranch

	state := ReleaseState{}
	if len(unmergedTags) > 0 {
		state.UnmergedTags = unmergedTags
	}
	for _, branchName := range unmergedBranches {
		switch {
		case strings.HasPrefix(branchName, releaseBranchPrefixConstant), strings.HasPrefix(branchName, remoteReleasePrefix):
			state.UnmergedReleaseBranches = append(state.UnmergedReleaseBranches, branchName)
		case branchName == productionBranch, branchName == remoteProductionBranch:
			state.UnmergedProductionBranches = append(state.UnmergedProductionBranches, branchName)
		}
	}
	return state, nil
}

// EnsureNoOtherBumps fails when any tag, release branch, or production branch has not been merged
// into the default branch.
func (guard *ConcurrencyGuard) EnsureNoOtherBumps(executionContext context.Context, remoteName string, defaultBranch string, productionBranch string) error {
	state, inspectError := guard.InspectReleaseState(executionContext, remoteName, defaultBranch, productionBranch)
	if inspectError != nil {
		return inspectError
	}

	status := guard.evaluator.Evaluate(state)
	if !status.SafeToStart {
		return ReleaseInProgressError{State: state, Status: status}
	}

	guard.logger.Debug(noReleaseInProgressMessageConstant,
		zap.String(logFieldDefaultBranchConstant, defaultBranch),
		zap.String(logFieldProductionBranchConstant, productionBranch),
	)
	return nil
}

// EnsureUnreleased fails when a tag named after the release version is already merged into the default branch.
// Additional tag names (for example the prefixed form) are checked alongside the bare version.
func (guard *ConcurrencyGuard) EnsureUnreleased(executionContext context.Context, releaseVersion string, defaultBranch string, additionalTags ...string) error {
	candidateTags := make([]string, 0, releaseCandidateCapacityConstant+len(additionalTags))
	candidateTags = append(candidateTags, releaseVersion)
	for _, additionalTag := range additionalTags {
		if len(strings.TrimSpace(additionalTag)) > 0 && additionalTag != releaseVersion {
			candidateTags = append(candidateTags, additionalTag)
		}
	}

	mergedTags, mergedError := guard.repository.MergedTags(executionContext, defaultBranch, candidateTags...)
	if mergedError != nil {
		return fmt.Errorf(mergedTagsFailureTemplateConstant, defaultBranch, mergedError)
	}

	for _, mergedTag := range mergedTags {
		for _, candidateTag := range candidateTags {
			if mergedTag == candidateTag {
				return AlreadyReleasedError{Version: releaseVersion, Tag: mergedTag, DefaultBranch: defaultBranch}
			}
		}
	}
	return nil
}
