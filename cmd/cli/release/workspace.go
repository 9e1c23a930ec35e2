package release

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/jarrodldavis/npm-version-scripts/internal/branches"
	"github.com/jarrodldavis/npm-version-scripts/internal/environment"
	"github.com/jarrodldavis/npm-version-scripts/internal/execshell"
	"github.com/jarrodldavis/npm-version-scripts/internal/githubcli"
	"github.com/jarrodldavis/npm-version-scripts/internal/gitrepo"
	"github.com/jarrodldavis/npm-version-scripts/internal/pullrequests"
	"github.com/jarrodldavis/npm-version-scripts/internal/releases"
)

const (
	remoteURLFailureTemplateConstant    = "failed to read url of remote %s: %w"
	repositoryDetectionTemplateConstant = "failed to determine repository from remote %s: %w"
)

// workspace bundles the collaborators wired for one command invocation.
type workspace struct {
	configuration CommandConfiguration
	client        *githubcli.Client
	resolver      *branches.Resolver
	pullRequests  *pullrequests.Service
	releases      *releases.Service
}

func (builder *CommandBuilder) openWorkspace(executionContext context.Context, logger *zap.Logger) (workspace, error) {
	configuration := builder.resolveConfiguration()

	if toolError := builder.resolveToolChecker().Require(execshell.CommandGit, execshell.CommandGitHub); toolError != nil {
		return workspace{}, toolError
	}

	executor, executorError := builder.resolveExecutor(logger)
	if executorError != nil {
		return workspace{}, executorError
	}

	repositoryManager, managerError := gitrepo.NewRepositoryManager(executor, builder.WorkingDirectory)
	if managerError != nil {
		return workspace{}, managerError
	}

	repository := configuration.Repository
	if len(repository) == 0 {
		remoteURL, remoteError := repositoryManager.RemoteURL(executionContext, configuration.RemoteName)
		if remoteError != nil {
			return workspace{}, fmt.Errorf(remoteURLFailureTemplateConstant, configuration.RemoteName, remoteError)
		}
		parsedRemote, parseError := gitrepo.ParseRemoteURL(remoteURL)
		if parseError != nil {
			return workspace{}, fmt.Errorf(repositoryDetectionTemplateConstant, configuration.RemoteName, parseError)
		}
		repository = parsedRemote.NameWithOwner()
	}

	client, clientError := githubcli.NewClient(executor, repository)
	if clientError != nil {
		return workspace{}, clientError
	}
	resolver, resolverError := branches.NewResolver(client, logger)
	if resolverError != nil {
		return workspace{}, resolverError
	}

	pullRequestService, pullRequestError := pullrequests.NewService(pullrequests.Dependencies{
		Gateway:           client,
		BranchResolver:    resolver,
		RepositoryManager: repositoryManager,
		Logger:            logger,
	})
	if pullRequestError != nil {
		return workspace{}, pullRequestError
	}

	fileSystem := builder.FileSystem
	if fileSystem == nil {
		fileSystem = afero.NewOsFs()
	}
	releaseService, releaseError := releases.NewService(releases.Dependencies{
		RepositoryManager: repositoryManager,
		PullRequests:      client,
		Merger:            pullRequestService,
		CommandExecutor:   executor,
		FileSystem:        fileSystem,
		Logger:            logger,
	}, releases.Settings{
		RepositoryPath:   builder.WorkingDirectory,
		TestCommand:      configuration.TestCommand,
		ChangelogFile:    configuration.ChangelogFile,
		ChangelogCommand: configuration.ChangelogCommand,
	})
	if releaseError != nil {
		return workspace{}, releaseError
	}

	return workspace{
		configuration: configuration,
		client:        client,
		resolver:      resolver,
		pullRequests:  pullRequestService,
		releases:      releaseService,
	}, nil
}

// releaseContext resolves the release context once for the invocation.
func (builder *CommandBuilder) releaseContext(executionContext context.Context, openedWorkspace workspace, inputs environment.Inputs) (releases.Context, error) {
	return releases.NewContext(executionContext, releases.ContextDependencies{
		BranchResolver: openedWorkspace.resolver,
		Querier:        openedWorkspace.client,
	}, releases.ContextOptions{
		Inputs:         inputs,
		ReleaseVersion: builder.resolveReleaseVersion(),
		RemoteName:     openedWorkspace.configuration.RemoteName,
		MilestoneLimit: openedWorkspace.configuration.MilestoneLimit,
	})
}

func (builder *CommandBuilder) resolveExecutor(logger *zap.Logger) (CommandExecutor, error) {
	if builder.Executor != nil {
		return builder.Executor, nil
	}
	shellExecutor, creationError := execshell.NewShellExecutor(logger, execshell.NewOSCommandRunner())
	if creationError != nil {
		return nil, creationError
	}
	return shellExecutor, nil
}

func (builder *CommandBuilder) resolveToolChecker() ToolChecker {
	if builder.ToolChecker != nil {
		return builder.ToolChecker
	}
	return execshell.NewToolLocator()
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}
	return builder.ConfigurationProvider().Sanitize()
}

func (builder *CommandBuilder) resolveReleaseVersion() string {
	if builder.ReleaseVersionProvider == nil {
		return ""
	}
	return builder.ReleaseVersionProvider()
}
