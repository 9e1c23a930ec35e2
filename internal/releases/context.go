package releases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jarrodldavis/npm-version-scripts/internal/branches"
	"github.com/jarrodldavis/npm-version-scripts/internal/environment"
)

const (
	releaseBranchTemplateConstant           = "release/%s"
	versionPlaceholderConstant              = "%s"
	milestonesFragmentTemplateConstant      = "milestones(first:%d,orderBy:{field:CREATED_AT,direction:DESC},states:[OPEN]){nodes{title}}"
	milestoneMissingTemplateConstant        = "milestone %s does not exist"
	milestoneQueryFailureTemplateConstant   = "failed to list open milestones: %w"
	branchResolutionFailureTemplateConstant = "failed to resolve branch roles: %w"
	defaultMilestoneLimitConstant           = 100
	defaultRemoteNameConstant               = "origin"
	branchResolverMissingMessageConstant    = "branch resolver not configured"
	milestoneQuerierMissingMessageConstant  = "milestone querier not configured"
)

var (
	// ErrBranchResolverNotConfigured indicates NewContext was called without a branch resolver.
	ErrBranchResolverNotConfigured = errors.New(branchResolverMissingMessageConstant)
	// ErrMilestoneQuerierNotConfigured indicates NewContext was called without a milestone querier.
	ErrMilestoneQuerierNotConfigured = errors.New(milestoneQuerierMissingMessageConstant)
)

// BranchRoleResolver resolves the default and production branches.
type BranchRoleResolver interface {
	Branches(executionContext context.Context) (branches.BranchPair, error)
}

// RepositoryQuerier runs repository metadata queries.
type RepositoryQuerier interface {
	DecodeRepository(executionContext context.Context, fragment string, target any) error
}

// MilestoneMissingError reports that no open milestone carries the expected title.
type MilestoneMissingError struct {
	Milestone string
}

// Error names the missing milestone.
func (missingError MilestoneMissingError) Error() string {
	return fmt.Sprintf(milestoneMissingTemplateConstant, missingError.Milestone)
}

// ContextDependencies enumerates the collaborators NewContext queries.
type ContextDependencies struct {
	BranchResolver BranchRoleResolver
	Querier        RepositoryQuerier
}

// ContextOptions carries the inputs of a release context.
type ContextOptions struct {
	Inputs environment.Inputs
	// ReleaseVersion overrides Inputs.PackageVersion when set.
	ReleaseVersion string
	RemoteName     string
	MilestoneLimit int
}

// Context is the resolved state shared by every release phase. It is a value; phases receive copies.
type Context struct {
	PackageVersion   string
	VersionPrefix    string
	CommitMessage    string
	ReleaseVersion   string
	ReleaseBranch    string
	PullRequestTitle string
	DefaultBranch    string
	ProductionBranch string
	Milestone        string
	RemoteName       string
}

// ReleaseBranchName returns the release branch for version.
func ReleaseBranchName(version string) string {
	return fmt.Sprintf(releaseBranchTemplateConstant, version)
}

// PullRequestTitle substitutes version for every %s in commitMessage.
func PullRequestTitle(commitMessage string, version string) string {
	return strings.ReplaceAll(commitMessage, versionPlaceholderConstant, version)
}

// NewContext resolves branch roles and confirms the release milestone is open.
func NewContext(executionContext context.Context, dependencies ContextDependencies, options ContextOptions) (Context, error) {
	if dependencies.BranchResolver == nil {
		return Context{}, ErrBranchResolverNotConfigured
	}
	if dependencies.Querier == nil {
		return Context{}, ErrMilestoneQuerierNotConfigured
	}

	releaseVersion := strings.TrimSpace(options.ReleaseVersion)
	if len(releaseVersion) == 0 {
		releaseVersion = options.Inputs.PackageVersion
	}
	remoteName := strings.TrimSpace(options.RemoteName)
	if len(remoteName) == 0 {
		remoteName = defaultRemoteNameConstant
	}

	branchPair, branchError := dependencies.BranchResolver.Branches(executionContext)
	if branchError != nil {
		return Context{}, fmt.Errorf(branchResolutionFailureTemplateConstant, branchError)
	}

	milestone := options.Inputs.VersionPrefix + releaseVersion
	if milestoneError := ensureMilestone(executionContext, dependencies.Querier, milestone, options.MilestoneLimit); milestoneError != nil {
		return Context{}, milestoneError
	}

	return Context{
		PackageVersion:   options.Inputs.PackageVersion,
		VersionPrefix:    options.Inputs.VersionPrefix,
		CommitMessage:    options.Inputs.CommitMessage,
		ReleaseVersion:   releaseVersion,
		ReleaseBranch:    ReleaseBranchName(releaseVersion),
		PullRequestTitle: PullRequestTitle(options.Inputs.CommitMessage, releaseVersion),
		DefaultBranch:    branchPair.Default,
		ProductionBranch: branchPair.Production,
		Milestone:        milestone,
		RemoteName:       remoteName,
	}, nil
}

func ensureMilestone(executionContext context.Context, querier RepositoryQuerier, milestone string, limit int) error {
	if limit <= 0 {
		limit = defaultMilestoneLimitConstant
	}

	var response struct {
		Milestones struct {
			Nodes []struct {
				Title string `json:"title"`
			} `json:"nodes"`
		} `json:"milestones"`
	}
	if queryError := querier.DecodeRepository(executionContext, fmt.Sprintf(milestonesFragmentTemplateConstant, limit), &response); queryError != nil {
		return fmt.Errorf(milestoneQueryFailureTemplateConstant, queryError)
	}

	for _, node := range response.Milestones.Nodes {
		if node.Title == milestone {
			return nil
		}
	}
	return MilestoneMissingError{Milestone: milestone}
}
