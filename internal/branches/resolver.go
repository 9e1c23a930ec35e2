package branches

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	defaultBranchFragmentConstant            = "defaultBranchRef{name}"
	protectedBranchesFragmentConstant        = "branchProtectionRules(first:3){nodes{matchingRefs(first:2){nodes{name}}}}"
	expectedProtectedBranchCountConstant     = 2
	querierNotConfiguredMessageConstant      = "repository querier not configured"
	defaultBranchMissingMessageConstant      = "repository does not report a default branch"
	protectedBranchCountTemplateConstant     = "expected two protected branches but found %d"
	productionBranchMismatchMessageConstant  = "could not determine production branch because neither protected branch matches the default branch"
	duplicateProtectedBranchTemplateConstant = "could not determine production branch because both protection rules match %s"
	defaultBranchQueryErrorTemplateConstant  = "failed to resolve default branch: %w"
	protectionQueryErrorTemplateConstant     = "failed to read branch protection rules: %w"
	logMessageBranchesResolvedConstant       = "Resolved branch roles"
	logFieldDefaultBranchConstant            = "default_branch"
	logFieldProductionBranchConstant         = "production_branch"
)

var (
	// ErrQuerierNotConfigured indicates the resolver was constructed without a repository querier.
	ErrQuerierNotConfigured = errors.New(querierNotConfiguredMessageConstant)
	// ErrDefaultBranchMissing indicates the forge returned no default branch name.
	ErrDefaultBranchMissing = errors.New(defaultBranchMissingMessageConstant)
)

// RepositoryQuerier runs a repository-scoped metadata query and decodes the payload.
type RepositoryQuerier interface {
	DecodeRepository(executionContext context.Context, fragment string, target any) error
}

// ProtectedBranchCountError reports protection rules that do not match exactly two branches.
type ProtectedBranchCountError struct {
	Branches []string
}

// Error describes the unexpected count.
func (countError ProtectedBranchCountError) Error() string {
	return fmt.Sprintf(protectedBranchCountTemplateConstant, len(countError.Branches))
}

// ProductionBranchMismatchError reports protected branches unrelated to the default branch.
type ProductionBranchMismatchError struct {
	DefaultBranch     string
	ProtectedBranches []string
}

// Error describes the mismatch.
func (mismatchError ProductionBranchMismatchError) Error() string {
	return productionBranchMismatchMessageConstant
}

// DuplicateProtectedBranchError reports both protection rules resolving to the same branch.
type DuplicateProtectedBranchError struct {
	Branch string
}

// Error describes the duplicate.
func (duplicateError DuplicateProtectedBranchError) Error() string {
	return fmt.Sprintf(duplicateProtectedBranchTemplateConstant, duplicateError.Branch)
}

// BranchPair holds the resolved development (default) and production branches.
type BranchPair struct {
	Default    string
	Production string
}

// Resolver determines branch roles from repository metadata.
type Resolver struct {
	querier RepositoryQuerier
	logger  *zap.Logger
}

// NewResolver constructs a Resolver. A nil logger disables logging.
func NewResolver(querier RepositoryQuerier, logger *zap.Logger) (*Resolver, error) {
	if querier == nil {
		return nil, ErrQuerierNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{querier: querier, logger: logger}, nil
}

// DefaultBranch returns the repository's default branch. Results are not cached.
func (resolver *Resolver) DefaultBranch(executionContext context.Context) (string, error) {
	var response struct {
		DefaultBranchRef *struct {
			Name string `json:"name"`
		} `json:"defaultBranchRef"`
	}
	if queryError := resolver.querier.DecodeRepository(executionContext, defaultBranchFragmentConstant, &response); queryError != nil {
		return "", fmt.Errorf(defaultBranchQueryErrorTemplateConstant, queryError)
	}
	if response.DefaultBranchRef == nil || len(strings.TrimSpace(response.DefaultBranchRef.Name)) == 0 {
		return "", ErrDefaultBranchMissing
	}
	return strings.TrimSpace(response.DefaultBranchRef.Name), nil
}

// ProtectedBranches flattens the branch names matched by up to three protection rules.
func (resolver *Resolver) ProtectedBranches(executionContext context.Context) ([]string, error) {
	var response struct {
		BranchProtectionRules struct {
			Nodes []struct {
				MatchingRefs struct {
					Nodes []struct {
						Name string `json:"name"`
					} `json:"nodes"`
				} `json:"matchingRefs"`
			} `json:"nodes"`
		} `json:"branchProtectionRules"`
	}
	if queryError := resolver.querier.DecodeRepository(executionContext, protectedBranchesFragmentConstant, &response); queryError != nil {
		return nil, fmt.Errorf(protectionQueryErrorTemplateConstant, queryError)
	}

	protectedBranches := make([]string, 0, expectedProtectedBranchCountConstant)
	for _, rule := range response.BranchProtectionRules.Nodes {
		for _, reference := range rule.MatchingRefs.Nodes {
			protectedBranches = append(protectedBranches, reference.Name)
		}
	}
	return protectedBranches, nil
}

// ProductionBranch returns the protected branch that is not the default branch.
func (resolver *Resolver) ProductionBranch(executionContext context.Context) (string, error) {
	branchPair, resolveError := resolver.Branches(executionContext)
	if resolveError != nil {
		return "", resolveError
	}
	return branchPair.Production, nil
}

// Branches resolves both branch roles. The protection rule count is checked before the default branch is queried.
func (resolver *Resolver) Branches(executionContext context.Context) (BranchPair, error) {
	protectedBranches, protectedError := resolver.ProtectedBranches(executionContext)
	if protectedError != nil {
		return BranchPair{}, protectedError
	}
	if len(protectedBranches) != expectedProtectedBranchCountConstant {
		return BranchPair{}, ProtectedBranchCountError{Branches: protectedBranches}
	}

	defaultBranch, defaultError := resolver.DefaultBranch(executionContext)
	if defaultError != nil {
		return BranchPair{}, defaultError
	}

	productionBranch, selectionError := SelectProductionBranch(defaultBranch, protectedBranches)
	if selectionError != nil {
		return BranchPair{}, selectionError
	}

	resolver.logger.Debug(logMessageBranchesResolvedConstant,
		zap.String(logFieldDefaultBranchConstant, defaultBranch),
		zap.String(logFieldProductionBranchConstant, productionBranch),
	)
	return BranchPair{Default: defaultBranch, Production: productionBranch}, nil
}

// SelectProductionBranch picks the candidate that is not defaultBranch. It requires exactly two
// distinct candidates, exactly one of which equals defaultBranch.
func SelectProductionBranch(defaultBranch string, protectedBranches []string) (string, error) {
	if len(protectedBranches) != expectedProtectedBranchCountConstant {
		return "", ProtectedBranchCountError{Branches: protectedBranches}
	}
	firstBranch, secondBranch := protectedBranches[0], protectedBranches[1]
	if firstBranch == secondBranch {
		return "", DuplicateProtectedBranchError{Branch: firstBranch}
	}
	switch defaultBranch {
	case firstBranch:
		return secondBranch, nil
	case secondBranch:
		return firstBranch, nil
	default:
		return "", ProductionBranchMismatchError{DefaultBranch: defaultBranch, ProtectedBranches: protectedBranches}
	}
}
