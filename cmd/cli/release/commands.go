package release

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/jarrodldavis/npm-version-scripts/internal/environment"
	"github.com/jarrodldavis/npm-version-scripts/internal/pullrequests"
	"github.com/jarrodldavis/npm-version-scripts/internal/releases"
)

const (
	preflightUseConstant             = "preflight"
	preflightAliasConstant           = "preversion"
	preflightShortDescription        = "Verify the default branch is ready for a release and run the tests"
	preflightLongDescription         = "preflight checks out and updates the default branch, refuses to continue when it diverges from upstream or another release is in progress, and runs the test command. It runs before npm writes the new version, so the version is only checked against existing tags when --release-version names it."
	bumpUseConstant                  = "bump"
	bumpAliasConstant                = "version"
	bumpShortDescription             = "Create the release branch and record the version in the changelog"
	bumpLongDescription              = "bump creates release/<version> from the current branch, runs the changelog command for the package version, and stages the changelog for the version commit."
	publishUseConstant               = "publish"
	publishAliasConstant             = "postversion"
	publishShortDescription          = "Push the release branch and open its pull request"
	publishLongDescription           = "publish pushes the release branch with its tags and opens a pull request into the production branch, titled from the commit message and assigned to the release milestone."
	mergeUseConstant                 = "merge"
	mergeAliasConstant               = "mergeversion"
	mergeShortDescription            = "Merge the release into production and open the pull request back into the default branch"
	mergeLongDescription             = "merge merges the release pull request into the production branch, moves the release branch to the merged production branch, and opens a pull request into the default branch."
	mergePullRequestUseConstant      = "merge-pr <id> [remote]"
	mergePullRequestShortDescription = "Merge an open pull request after its status checks pass"
	mergePullRequestLongDescription  = "merge-pr merges the open pull request with the given number into its base branch, deletes its head branch from the remote (default origin), and updates the local base branch. Release branches can only be merged this way from the mergeversion lifecycle script."
	mergePullRequestExample          = "version-scripts merge-pr 42 upstream"
	contextUseConstant               = "context"
	contextShortDescription          = "Print the resolved release context"
	pullRequestURLTemplateConstant   = "%s\n"
	branchRolesFailureTemplate       = "failed to resolve branch roles: %w"
)

// CommandBuilder assembles the release commands.
type CommandBuilder struct {
	LoggerProvider         LoggerProvider
	ConfigurationProvider  func() CommandConfiguration
	ReleaseVersionProvider func() string
	Executor               CommandExecutor
	ToolChecker            ToolChecker
	FileSystem             afero.Fs
	WorkingDirectory       string
}

// Build constructs every release command.
func (builder *CommandBuilder) Build() ([]*cobra.Command, error) {
	return []*cobra.Command{
		{
			Use:     preflightUseConstant,
			Aliases: []string{preflightAliasConstant},
			Short:   preflightShortDescription,
			Long:    preflightLongDescription,
			Args:    cobra.NoArgs,
			RunE:    builder.runPreflight,
		},
		{
			Use:     bumpUseConstant,
			Aliases: []string{bumpAliasConstant},
			Short:   bumpShortDescription,
			Long:    bumpLongDescription,
			Args:    cobra.NoArgs,
			RunE:    builder.runBump,
		},
		{
			Use:     publishUseConstant,
			Aliases: []string{publishAliasConstant},
			Short:   publishShortDescription,
			Long:    publishLongDescription,
			Args:    cobra.NoArgs,
			RunE:    builder.runPublish,
		},
		{
			Use:     mergeUseConstant,
			Aliases: []string{mergeAliasConstant},
			Short:   mergeShortDescription,
			Long:    mergeLongDescription,
			Args:    cobra.NoArgs,
			RunE:    builder.runMerge,
		},
		{
			Use:     mergePullRequestUseConstant,
			Short:   mergePullRequestShortDescription,
			Long:    mergePullRequestLongDescription,
			Example: mergePullRequestExample,
			Args:    cobra.RangeArgs(1, 2),
			RunE:    builder.runMergePullRequest,
		},
		{
			Use:   contextUseConstant,
			Short: contextShortDescription,
			Args:  cobra.NoArgs,
			RunE:  builder.runContext,
		},
	}, nil
}

func (builder *CommandBuilder) runPreflight(command *cobra.Command, _ []string) error {
	openedWorkspace, workspaceError := builder.openWorkspace(command.Context(), resolveLogger(builder.LoggerProvider))
	if workspaceError != nil {
		return workspaceError
	}
	branchPair, branchError := openedWorkspace.resolver.Branches(command.Context())
	if branchError != nil {
		return fmt.Errorf(branchRolesFailureTemplate, branchError)
	}

	options := releases.PreflightOptions{
		RemoteName:       openedWorkspace.configuration.RemoteName,
		DefaultBranch:    branchPair.Default,
		ProductionBranch: branchPair.Production,
	}
	if releaseVersion := strings.TrimSpace(builder.resolveReleaseVersion()); len(releaseVersion) > 0 {
		options.ReleaseVersion = releaseVersion
		options.VersionPrefix = environment.NewLoader().VersionPrefix()
	}
	return openedWorkspace.releases.Preflight(command.Context(), options)
}

func (builder *CommandBuilder) runBump(command *cobra.Command, _ []string) error {
	inputs, inputsError := environment.NewLoader().Load()
	if inputsError != nil {
		return inputsError
	}
	openedWorkspace, workspaceError := builder.openWorkspace(command.Context(), resolveLogger(builder.LoggerProvider))
	if workspaceError != nil {
		return workspaceError
	}
	_, bumpError := openedWorkspace.releases.Bump(command.Context(), inputs.PackageVersion)
	return bumpError
}

func (builder *CommandBuilder) runPublish(command *cobra.Command, _ []string) error {
	openedWorkspace, releaseContext, prepareError := builder.prepareRelease(command)
	if prepareError != nil {
		return prepareError
	}
	pullRequestURL, publishError := openedWorkspace.releases.Publish(command.Context(), releaseContext)
	if publishError != nil {
		return publishError
	}
	fmt.Fprintf(command.OutOrStdout(), pullRequestURLTemplateConstant, pullRequestURL)
	return nil
}

func (builder *CommandBuilder) runMerge(command *cobra.Command, _ []string) error {
	openedWorkspace, releaseContext, prepareError := builder.prepareRelease(command)
	if prepareError != nil {
		return prepareError
	}
	mergeResult, mergeError := openedWorkspace.releases.Merge(command.Context(), releaseContext)
	if mergeError != nil {
		return mergeError
	}
	fmt.Fprintf(command.OutOrStdout(), pullRequestURLTemplateConstant, mergeResult.DefaultPullRequestURL)
	return nil
}

func (builder *CommandBuilder) runMergePullRequest(command *cobra.Command, arguments []string) error {
	options := pullrequests.Options{
		PullRequestID: arguments[0],
		ReleasePhase:  environment.NewLoader().MergePhase(),
	}
	if len(arguments) > 1 {
		options.RemoteName = arguments[1]
	}

	openedWorkspace, workspaceError := builder.openWorkspace(command.Context(), resolveLogger(builder.LoggerProvider))
	if workspaceError != nil {
		return workspaceError
	}
	if len(options.RemoteName) == 0 {
		options.RemoteName = openedWorkspace.configuration.RemoteName
	}
	options.ResultLimit = openedWorkspace.configuration.PullRequestLimit

	details, mergeError := openedWorkspace.pullRequests.Merge(command.Context(), options)
	if mergeError != nil {
		return mergeError
	}
	fmt.Fprintf(command.OutOrStdout(), pullRequestURLTemplateConstant, details.URL)
	return nil
}

func (builder *CommandBuilder) runContext(command *cobra.Command, _ []string) error {
	_, releaseContext, prepareError := builder.prepareRelease(command)
	if prepareError != nil {
		return prepareError
	}
	renderContext(command.OutOrStdout(), releaseContext)
	return nil
}

// prepareRelease validates the environment before touching git or the forge, then resolves the context.
func (builder *CommandBuilder) prepareRelease(command *cobra.Command) (workspace, releases.Context, error) {
	inputs, inputsError := environment.NewLoader().Load()
	if inputsError != nil {
		return workspace{}, releases.Context{}, inputsError
	}
	openedWorkspace, workspaceError := builder.openWorkspace(command.Context(), resolveLogger(builder.LoggerProvider))
	if workspaceError != nil {
		return workspace{}, releases.Context{}, workspaceError
	}
	releaseContext, contextError := builder.releaseContext(command.Context(), openedWorkspace, inputs)
	if contextError != nil {
		return workspace{}, releases.Context{}, contextError
	}
	return openedWorkspace, releaseContext, nil
}
