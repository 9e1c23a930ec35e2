package release_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/jarrodldavis/npm-version-scripts/cmd/cli/release"
	"github.com/jarrodldavis/npm-version-scripts/internal/execshell"
	"github.com/jarrodldavis/npm-version-scripts/internal/testsupport"
)

const (
	testWorkingDirectoryConstant = "/workspace/example"
	testRemoteURLConstant        = "git@github.com:jarrodldavis/example.git\n"
	testProtectionResponse       = `{"data":{"repository":{"branchProtectionRules":{"nodes":[{"matchingRefs":{"nodes":[{"name":"main"}]}},{"matchingRefs":{"nodes":[{"name":"prod"}]}}]}}}}`
	testDefaultBranchResponse    = `{"data":{"repository":{"defaultBranchRef":{"name":"main"}}}}`
	testMilestonesResponse       = `{"data":{"repository":{"milestones":{"nodes":[{"title":"v1.2.0"}]}}}}`
	testPullRequestURLConstant   = "https://github.com/jarrodldavis/example/pull/43"
	testReleasePullRequestJSON   = `[{"number":42,"title":"Release 1.2.0","baseRefName":"develop","headRefName":"release/1.2.0","url":"https://github.com/jarrodldavis/example/pull/42","headRefOid":"abc1234"}]`
)

type toolCheckerStub struct {
	missing   execshell.CommandName
	requested []execshell.CommandName
}

func (checker *toolCheckerStub) Require(tools ...execshell.CommandName) error {
	checker.requested = append(checker.requested, tools...)
	if len(checker.missing) > 0 {
		return execshell.MissingToolError{Tool: checker.missing}
	}
	return nil
}

type commandFixture struct {
	executor    *testsupport.CommandExecutorStub
	toolChecker *toolCheckerStub
	fileSystem  afero.Fs
	output      *bytes.Buffer
	builder     *release.CommandBuilder
}

func newCommandFixture(testInstance *testing.T, responses ...testsupport.ScriptedResponse) commandFixture {
	testInstance.Helper()
	fixture := commandFixture{
		executor:    &testsupport.CommandExecutorStub{Responses: responses},
		toolChecker: &toolCheckerStub{},
		fileSystem:  afero.NewMemMapFs(),
		output:      &bytes.Buffer{},
	}
	fixture.builder = &release.CommandBuilder{
		Executor:         fixture.executor,
		ToolChecker:      fixture.toolChecker,
		FileSystem:       fixture.fileSystem,
		WorkingDirectory: testWorkingDirectoryConstant,
	}
	return fixture
}

func (fixture commandFixture) run(testInstance *testing.T, arguments ...string) error {
	testInstance.Helper()
	commands, buildError := fixture.builder.Build()
	require.NoError(testInstance, buildError)

	rootCommand := &cobra.Command{Use: "version-scripts", SilenceUsage: true, SilenceErrors: true}
	rootCommand.AddCommand(commands...)
	rootCommand.SetOut(fixture.output)
	rootCommand.SetErr(&bytes.Buffer{})
	rootCommand.SetArgs(arguments)
	return rootCommand.ExecuteContext(context.Background())
}

func setReleaseEnvironment(testInstance *testing.T) {
	testInstance.Helper()
	testInstance.Setenv("npm_package_version", "1.2.0")
	testInstance.Setenv("npm_config_tag_version_prefix", "v")
	testInstance.Setenv("npm_config_message", "Release %s!")
	testInstance.Setenv("npm_lifecycle_event", "")
}

func contextResponses() []testsupport.ScriptedResponse {
	return []testsupport.ScriptedResponse{
		{Contains: "remote get-url origin", Output: testRemoteURLConstant},
		{Contains: "branchProtectionRules", Output: testProtectionResponse},
		{Contains: "defaultBranchRef", Output: testDefaultBranchResponse},
		{Contains: "milestones(", Output: testMilestonesResponse},
	}
}

func TestBuildRegistersLifecycleAliases(testInstance *testing.T) {
	commands, buildError := (&release.CommandBuilder{}).Build()
	require.NoError(testInstance, buildError)

	aliases := map[string][]string{}
	for _, command := range commands {
		aliases[command.Name()] = command.Aliases
	}
	require.Equal(testInstance, map[string][]string{
		"preflight": {"preversion"},
		"bump":      {"version"},
		"publish":   {"postversion"},
		"merge":     {"mergeversion"},
		"merge-pr":  nil,
		"context":   nil,
	}, aliases)
}

func TestCommandsRequireEnvironmentBeforeRunningTools(testInstance *testing.T) {
	for _, commandName := range []string{"version", "postversion", "mergeversion", "context"} {
		testInstance.Run(commandName, func(testInstance *testing.T) {
			setReleaseEnvironment(testInstance)
			testInstance.Setenv("npm_package_version", "")
			fixture := newCommandFixture(testInstance)

			runError := fixture.run(testInstance, commandName)
			require.EqualError(testInstance, runError, "$npm_package_version must be set")
			require.Empty(testInstance, fixture.executor.Recorded)
			require.Empty(testInstance, fixture.toolChecker.requested)
		})
	}
}

func TestCommandsRequireTools(testInstance *testing.T) {
	setReleaseEnvironment(testInstance)
	fixture := newCommandFixture(testInstance)
	fixture.toolChecker.missing = execshell.CommandGitHub

	runError := fixture.run(testInstance, "publish")
	require.EqualError(testInstance, runError, "gh must be installed and available on PATH")
	require.Equal(testInstance, []execshell.CommandName{execshell.CommandGit, execshell.CommandGitHub}, fixture.toolChecker.requested)
	require.Empty(testInstance, fixture.executor.Recorded)
}

func TestPublishPrintsPullRequestURL(testInstance *testing.T) {
	setReleaseEnvironment(testInstance)
	responses := append(contextResponses(), testsupport.ScriptedResponse{Contains: "pr create", Output: testPullRequestURLConstant})
	fixture := newCommandFixture(testInstance, responses...)

	require.NoError(testInstance, fixture.run(testInstance, "postversion"))
	require.Equal(testInstance, testPullRequestURLConstant+"\n", fixture.output.String())
	require.Equal(testInstance, []string{
		"git remote get-url origin",
		"git tag --merged main --list 1.2.0 v1.2.0",
		"git push --follow-tags --set-upstream origin release/1.2.0",
	}, fixture.executor.LinesWithPrefix("git "))
	require.Equal(testInstance, []string{
		"gh pr create --repo jarrodldavis/example --base prod --head release/1.2.0 --title Release 1.2.0! --body  --milestone v1.2.0",
	}, fixture.executor.LinesWithPrefix("gh pr"))
}

func TestPublishUsesConfiguredRepository(testInstance *testing.T) {
	setReleaseEnvironment(testInstance)
	responses := append(contextResponses()[1:], testsupport.ScriptedResponse{Contains: "pr create", Output: testPullRequestURLConstant})
	fixture := newCommandFixture(testInstance, responses...)
	fixture.builder.ConfigurationProvider = func() release.CommandConfiguration {
		return release.CommandConfiguration{Repository: "jarrodldavis/fork", RemoteName: "upstream"}
	}

	require.NoError(testInstance, fixture.run(testInstance, "publish"))
	require.Empty(testInstance, fixture.executor.LinesWithPrefix("git remote"))
	require.Contains(testInstance, fixture.executor.Lines(), "git push --follow-tags --set-upstream upstream release/1.2.0")
	require.Len(testInstance, fixture.executor.LinesWithPrefix("gh pr create --repo jarrodldavis/fork"), 1)
}

func TestReleaseVersionOverride(testInstance *testing.T) {
	setReleaseEnvironment(testInstance)
	fixture := newCommandFixture(testInstance, contextResponses()...)
	fixture.builder.ReleaseVersionProvider = func() string {
		return "1.3.0"
	}

	runError := fixture.run(testInstance, "context")
	require.EqualError(testInstance, runError, "milestone v1.3.0 does not exist")
	require.Empty(testInstance, fixture.output.String())
}

func TestContextRendersTable(testInstance *testing.T) {
	setReleaseEnvironment(testInstance)
	fixture := newCommandFixture(testInstance, contextResponses()...)

	require.NoError(testInstance, fixture.run(testInstance, "context"))
	rendered := fixture.output.String()
	for _, expectedValue := range []string{"release/1.2.0", "prod", "main", "v1.2.0", "Release 1.2.0!", "origin"} {
		require.Contains(testInstance, rendered, expectedValue)
	}
}

func TestBumpRunsChangelogCommand(testInstance *testing.T) {
	setReleaseEnvironment(testInstance)
	fixture := newCommandFixture(testInstance, testsupport.ScriptedResponse{Contains: "remote get-url", Output: testRemoteURLConstant})
	require.NoError(testInstance, afero.WriteFile(fixture.fileSystem, testWorkingDirectoryConstant+"/CHANGELOG.md", []byte("# Changelog\n"), 0o644))

	require.NoError(testInstance, fixture.run(testInstance, "version"))
	require.Equal(testInstance, []string{
		"git remote get-url origin",
		"git checkout -b release/1.2.0",
		"remark CHANGELOG.md -o --use @jarrodldavis/changelog-version-bump=version:'1.2.0'",
		"git add CHANGELOG.md",
	}, fixture.executor.Lines())
}

func TestMergePullRequestRejectsReleaseBranchOutsideMergePhase(testInstance *testing.T) {
	testCases := []struct {
		name           string
		lifecycleEvent string
		expectedError  string
	}{
		{
			name:          "ad_hoc",
			expectedError: "use the dedicated merge command for release branches",
		},
		{
			name:           "mergeversion_script",
			lifecycleEvent: "mergeversion",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			testInstance.Setenv("npm_lifecycle_event", testCase.lifecycleEvent)
			fixture := newCommandFixture(testInstance,
				testsupport.ScriptedResponse{Contains: "remote get-url", Output: testRemoteURLConstant},
				testsupport.ScriptedResponse{Contains: "pr list", Output: testReleasePullRequestJSON},
				testsupport.ScriptedResponse{Contains: "defaultBranchRef", Output: testDefaultBranchResponse},
				testsupport.ScriptedResponse{Contains: "statusCheckRollup", Output: `{"data":{"repository":{"object":{"statusCheckRollup":{"state":"SUCCESS","contexts":{"nodes":[]}}}}}}`},
				testsupport.ScriptedResponse{Contains: "--symbolic-full-name @{u}", Output: "origin/develop\n"},
				testsupport.ScriptedResponse{Contains: "--abbrev-ref HEAD", Output: "develop\n"},
				testsupport.ScriptedResponse{Contains: "rev-parse -q", Output: "abc1234\nabc1234\n"},
			)

			runError := fixture.run(testInstance, "merge-pr", "42", "upstream")
			if len(testCase.expectedError) > 0 {
				require.EqualError(testInstance, runError, testCase.expectedError)
				require.Equal(testInstance, []string{"git remote get-url origin"}, fixture.executor.LinesWithPrefix("git "))
				return
			}
			require.NoError(testInstance, runError)
			require.Equal(testInstance, "https://github.com/jarrodldavis/example/pull/42\n", fixture.output.String())
			require.Contains(testInstance, fixture.executor.Lines(), "git push upstream --delete release/1.2.0")
		})
	}
}

func TestMergePullRequestRequiresIdentifier(testInstance *testing.T) {
	fixture := newCommandFixture(testInstance)

	runError := fixture.run(testInstance, "merge-pr")
	require.Error(testInstance, runError)
	require.True(testInstance, strings.Contains(runError.Error(), "accepts between 1 and 2 arg(s)"))
	require.Empty(testInstance, fixture.executor.Recorded)
}

func synchronizedMainResponses() []testsupport.ScriptedResponse {
	return []testsupport.ScriptedResponse{
		{Contains: "--symbolic-full-name @{u}", Output: "origin/main\n"},
		{Contains: "--abbrev-ref HEAD", Output: "main\n"},
		{Contains: "rev-parse -q", Output: "abc1234\nabc1234\n"},
	}
}

func TestPreflightRunsBeforeVersionIsWritten(testInstance *testing.T) {
	setReleaseEnvironment(testInstance)
	testInstance.Setenv("npm_package_version", "1.1.0")
	responses := append(contextResponses(), synchronizedMainResponses()...)
	responses = append(responses, testsupport.ScriptedResponse{Contains: "tag --merged", Output: "v1.1.0\n"})
	fixture := newCommandFixture(testInstance, responses...)

	require.NoError(testInstance, fixture.run(testInstance, "preversion"))
	lines := fixture.executor.Lines()
	require.Contains(testInstance, lines, "git checkout main")
	require.Contains(testInstance, lines, "npm test")
	require.Empty(testInstance, fixture.executor.LinesWithPrefix("git tag --merged"))
	for _, line := range lines {
		require.NotContains(testInstance, line, "milestones(")
	}
}

func TestPreflightDoesNotRequireEnvironment(testInstance *testing.T) {
	testInstance.Setenv("npm_package_version", "")
	testInstance.Setenv("npm_config_tag_version_prefix", "")
	testInstance.Setenv("npm_config_message", "")
	fixture := newCommandFixture(testInstance, append(contextResponses(), synchronizedMainResponses()...)...)

	require.NoError(testInstance, fixture.run(testInstance, "preflight"))
	require.Contains(testInstance, fixture.executor.Lines(), "npm test")
}

func TestPreflightChecksReleaseVersionOverride(testInstance *testing.T) {
	setReleaseEnvironment(testInstance)
	testInstance.Setenv("npm_package_version", "1.1.0")
	responses := append(contextResponses(), synchronizedMainResponses()...)
	responses = append(responses, testsupport.ScriptedResponse{Contains: "tag --merged main --list 1.2.0 v1.2.0", Output: "v1.2.0\n"})
	fixture := newCommandFixture(testInstance, responses...)
	fixture.builder.ReleaseVersionProvider = func() string {
		return "1.2.0"
	}

	runError := fixture.run(testInstance, "preflight")
	require.Error(testInstance, runError)
	require.Contains(testInstance, runError.Error(), "1.2.0")
	require.Equal(testInstance, []string{"git tag --merged main --list 1.2.0 v1.2.0"}, fixture.executor.LinesWithPrefix("git tag --merged"))
	require.NotContains(testInstance, fixture.executor.Lines(), "npm test")
}

func TestPreflightSurfacesCommandFailures(testInstance *testing.T) {
	testInstance.Setenv("npm_package_version", "1.1.0")
	responses := append(contextResponses(), synchronizedMainResponses()...)
	responses = append(responses, testsupport.ScriptedResponse{Contains: "npm test", Output: "1 failing", ExitCode: 1})
	fixture := newCommandFixture(testInstance, responses...)

	runError := fixture.run(testInstance, "preflight")
	var failedError execshell.CommandFailedError
	require.True(testInstance, errors.As(runError, &failedError))
	require.Equal(testInstance, "1 failing", failedError.Diagnostic())
}
