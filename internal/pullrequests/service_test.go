package pullrequests_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jarrodldavis/npm-version-scripts/internal/branches"
	"github.com/jarrodldavis/npm-version-scripts/internal/githubcli"
	"github.com/jarrodldavis/npm-version-scripts/internal/gitrepo"
	"github.com/jarrodldavis/npm-version-scripts/internal/pullrequests"
	"github.com/jarrodldavis/npm-version-scripts/internal/testsupport"
)

const (
	testRepositoryConstant      = "jarrodldavis/example"
	testCommitConstant          = "abc1234"
	testFeaturePullRequestJSON  = `[{"number":7,"title":"Add login","baseRefName":"main","headRefName":"feature/login","url":"https://github.com/jarrodldavis/example/pull/7","headRefOid":"abc1234"}]`
	testReleasePullRequestJSON  = `[{"number":42,"title":"Release 1.2.0","baseRefName":"develop","headRefName":"release/1.2.0","url":"https://github.com/jarrodldavis/example/pull/42","headRefOid":"abc1234"}]`
	testClosedPullRequestJSON   = `{"number":8,"title":"Old idea","baseRefName":"main","headRefName":"old/idea","url":"https://github.com/jarrodldavis/example/pull/8","headRefOid":"abc1234","state":"CLOSED"}`
	testOlderPullRequestJSON    = `{"number":3,"title":"Fix typo","baseRefName":"main","headRefName":"fix/typo","url":"https://github.com/jarrodldavis/example/pull/3","headRefOid":"abc1234","state":"OPEN"}`
	testDefaultBranchResponse   = `{"data":{"repository":{"defaultBranchRef":{"name":"main"}}}}`
	testSuccessfulStatusPayload = `{"data":{"repository":{"object":{"statusCheckRollup":{"state":"SUCCESS","contexts":{"nodes":[{"__typename":"CheckRun","name":"build","status":"COMPLETED","conclusion":"SUCCESS","detailsUrl":"https://ci.example.com/1"}]}}}}}}`
	testFailingStatusPayload    = `{"data":{"repository":{"object":{"statusCheckRollup":{"state":"FAILURE","contexts":{"nodes":[{"__typename":"CheckRun","name":"build","status":"COMPLETED","conclusion":"FAILURE","detailsUrl":"https://ci.example.com/1"}]}}}}}}`
)

func synchronizedResponses() []testsupport.ScriptedResponse {
	return []testsupport.ScriptedResponse{
		{Contains: "--symbolic-full-name @{u}", Output: "origin/main\n"},
		{Contains: "--abbrev-ref HEAD", Output: "main\n"},
		{Contains: "rev-parse -q", Output: "abc1234\nabc1234\n"},
	}
}

func newTestService(testInstance *testing.T, responses ...testsupport.ScriptedResponse) (*pullrequests.Service, *testsupport.CommandExecutorStub) {
	testInstance.Helper()
	executor := &testsupport.CommandExecutorStub{Responses: responses}
	client, clientError := githubcli.NewClient(executor, testRepositoryConstant)
	require.NoError(testInstance, clientError)
	resolver, resolverError := branches.NewResolver(client, nil)
	require.NoError(testInstance, resolverError)
	repositoryManager, managerError := gitrepo.NewRepositoryManager(executor, "")
	require.NoError(testInstance, managerError)

	service, serviceError := pullrequests.NewService(pullrequests.Dependencies{
		Gateway:           client,
		BranchResolver:    resolver,
		RepositoryManager: repositoryManager,
	})
	require.NoError(testInstance, serviceError)
	return service, executor
}

func TestNewServiceValidatesDependencies(testInstance *testing.T) {
	executor := &testsupport.CommandExecutorStub{}
	client, clientError := githubcli.NewClient(executor, testRepositoryConstant)
	require.NoError(testInstance, clientError)
	resolver, resolverError := branches.NewResolver(client, nil)
	require.NoError(testInstance, resolverError)

	testCases := []struct {
		name          string
		dependencies  pullrequests.Dependencies
		expectedError error
	}{
		{
			name:          "missing_gateway",
			dependencies:  pullrequests.Dependencies{},
			expectedError: pullrequests.ErrGatewayNotConfigured,
		},
		{
			name:          "missing_resolver",
			dependencies:  pullrequests.Dependencies{Gateway: client},
			expectedError: pullrequests.ErrBranchResolverNotConfigured,
		},
		{
			name:          "missing_repository_manager",
			dependencies:  pullrequests.Dependencies{Gateway: client, BranchResolver: resolver},
			expectedError: pullrequests.ErrRepositoryManagerNotConfigured,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			service, serviceError := pullrequests.NewService(testCase.dependencies)
			require.ErrorIs(testInstance, serviceError, testCase.expectedError)
			require.Nil(testInstance, service)
		})
	}
}

func TestMergeRequiresPullRequestID(testInstance *testing.T) {
	service, executor := newTestService(testInstance)

	_, mergeError := service.Merge(context.Background(), pullrequests.Options{PullRequestID: "  "})
	require.ErrorIs(testInstance, mergeError, pullrequests.ErrPullRequestIDRequired)
	require.EqualError(testInstance, mergeError, "you must specify a pull request number")
	require.Empty(testInstance, executor.Recorded)
}

func TestMergeRejectsUnknownPullRequest(testInstance *testing.T) {
	testCases := []struct {
		name          string
		pullRequestID string
		viewResponse  testsupport.ScriptedResponse
		expectedView  bool
	}{
		{
			name:          "number_does_not_resolve",
			pullRequestID: "8",
			viewResponse:  testsupport.ScriptedResponse{Contains: "pr view", Output: "GraphQL: Could not resolve to a PullRequest with the number of 8.", ExitCode: 1},
			expectedView:  true,
		},
		{
			name:          "closed_pull_request",
			pullRequestID: "8",
			viewResponse:  testsupport.ScriptedResponse{Contains: "pr view", Output: testClosedPullRequestJSON},
			expectedView:  true,
		},
		{
			name:          "not_a_number",
			pullRequestID: "feature/login",
			viewResponse:  testsupport.ScriptedResponse{Contains: "pr view", Output: testClosedPullRequestJSON},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			service, executor := newTestService(testInstance,
				testsupport.ScriptedResponse{Contains: "pr list", Output: testFeaturePullRequestJSON},
				testCase.viewResponse,
			)

			_, mergeError := service.Merge(context.Background(), pullrequests.Options{PullRequestID: testCase.pullRequestID})
			require.EqualError(testInstance, mergeError, testCase.pullRequestID+" - not an open pull request number")
			var notFoundError pullrequests.PullRequestNotFoundError
			require.ErrorAs(testInstance, mergeError, &notFoundError)
			require.Empty(testInstance, executor.LinesWithPrefix("git "))
			require.Equal(testInstance, testCase.expectedView, len(executor.LinesWithPrefix("gh pr view")) == 1)
		})
	}
}

func TestMergeReadsPullRequestsBeyondListing(testInstance *testing.T) {
	responses := append([]testsupport.ScriptedResponse{
		{Contains: "pr list", Output: testFeaturePullRequestJSON},
		{Contains: "pr view", Output: testOlderPullRequestJSON},
		{Contains: "statusCheckRollup", Output: testSuccessfulStatusPayload},
	}, synchronizedResponses()...)
	service, executor := newTestService(testInstance, responses...)

	details, mergeError := service.Merge(context.Background(), pullrequests.Options{PullRequestID: "#3", ResultLimit: 1})
	require.NoError(testInstance, mergeError)
	require.Equal(testInstance, "3", details.ID)
	require.Equal(testInstance, []string{
		"gh pr list --repo jarrodldavis/example --state open --json number,title,baseRefName,headRefName,url,headRefOid --limit 1",
		"gh pr view 3 --repo jarrodldavis/example --json number,title,baseRefName,headRefName,url,headRefOid,state",
	}, executor.LinesWithPrefix("gh pr"))
	require.Contains(testInstance, executor.Lines(), "git fetch --prune origin pull/3/head")
	require.Contains(testInstance, executor.Lines(), "git push origin --delete fix/typo")
}

func TestMergeRejectsAmbiguousPullRequest(testInstance *testing.T) {
	duplicated := strings.Replace(testFeaturePullRequestJSON, "]", ","+strings.Trim(testFeaturePullRequestJSON, "[]")+"]", 1)
	service, _ := newTestService(testInstance, testsupport.ScriptedResponse{Contains: "pr list", Output: duplicated})

	_, mergeError := service.Merge(context.Background(), pullrequests.Options{PullRequestID: "7"})
	var ambiguousError pullrequests.AmbiguousPullRequestError
	require.ErrorAs(testInstance, mergeError, &ambiguousError)
	require.Equal(testInstance, []string{"#7", "#7"}, ambiguousError.Numbers)
}

func TestMergeReleaseBranchPolicy(testInstance *testing.T) {
	testCases := []struct {
		name          string
		releasePhase  bool
		expectedError string
	}{
		{
			name:          "outside_merge_phase",
			expectedError: "use the dedicated merge command for release branches",
		},
		{
			name:         "inside_merge_phase",
			releasePhase: true,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			responses := append([]testsupport.ScriptedResponse{
				{Contains: "pr list", Output: testReleasePullRequestJSON},
				{Contains: "defaultBranchRef", Output: testDefaultBranchResponse},
				{Contains: "statusCheckRollup", Output: testSuccessfulStatusPayload},
			}, synchronizedResponses()...)
			service, executor := newTestService(testInstance, responses...)

			details, mergeError := service.Merge(context.Background(), pullrequests.Options{PullRequestID: "42", ReleasePhase: testCase.releasePhase})
			if len(testCase.expectedError) > 0 {
				require.EqualError(testInstance, mergeError, testCase.expectedError)
				var policyError pullrequests.ReleaseBranchPolicyError
				require.ErrorAs(testInstance, mergeError, &policyError)
				require.Equal(testInstance, "develop", policyError.BaseBranch)
				require.Equal(testInstance, "main", policyError.DefaultBranch)
				require.Empty(testInstance, executor.LinesWithPrefix("git "))
				return
			}
			require.NoError(testInstance, mergeError)
			require.Equal(testInstance, "release/1.2.0", details.HeadBranch)
			require.Contains(testInstance, executor.Lines(), "git push origin --delete release/1.2.0")
			for _, commandLine := range executor.Lines() {
				require.NotContains(testInstance, commandLine, "defaultBranchRef")
			}
		})
	}
}

func TestMergeReleaseBranchIntoDefaultBranchIsAllowed(testInstance *testing.T) {
	intoDefault := strings.ReplaceAll(testReleasePullRequestJSON, `"baseRefName":"develop"`, `"baseRefName":"main"`)
	responses := append([]testsupport.ScriptedResponse{
		{Contains: "pr list", Output: intoDefault},
		{Contains: "statusCheckRollup", Output: testSuccessfulStatusPayload},
	}, synchronizedResponses()...)
	service, _ := newTestService(testInstance, responses...)

	_, mergeError := service.Merge(context.Background(), pullrequests.Options{PullRequestID: "42", DefaultBranch: "main"})
	require.NoError(testInstance, mergeError)
}

func TestMergeStopsOnFailingStatus(testInstance *testing.T) {
	service, executor := newTestService(testInstance,
		testsupport.ScriptedResponse{Contains: "pr list", Output: testFeaturePullRequestJSON},
		testsupport.ScriptedResponse{Contains: "statusCheckRollup", Output: testFailingStatusPayload},
	)

	_, mergeError := service.Merge(context.Background(), pullrequests.Options{PullRequestID: "7"})
	var statusError pullrequests.FailingStatusError
	require.ErrorAs(testInstance, mergeError, &statusError)
	require.Equal(testInstance, "FAILURE\tbuild\thttps://ci.example.com/1", statusError.Summary)
	require.Contains(testInstance, mergeError.Error(), statusError.Summary)
	require.Empty(testInstance, executor.LinesWithPrefix("git "))
}

func TestMergeStopsWhenBaseIsNotSynchronized(testInstance *testing.T) {
	service, executor := newTestService(testInstance,
		testsupport.ScriptedResponse{Contains: "pr list", Output: testFeaturePullRequestJSON},
		testsupport.ScriptedResponse{Contains: "statusCheckRollup", Output: testSuccessfulStatusPayload},
		testsupport.ScriptedResponse{Contains: "--symbolic-full-name @{u}", Output: "origin/main\n"},
		testsupport.ScriptedResponse{Contains: "--abbrev-ref HEAD", Output: "main\n"},
		testsupport.ScriptedResponse{Contains: "rev-parse -q", Output: "abc1234\ndef4567\n"},
	)

	_, mergeError := service.Merge(context.Background(), pullrequests.Options{PullRequestID: "7"})
	require.ErrorContains(testInstance, mergeError, "local branch is not in sync with upstream")
	require.Empty(testInstance, executor.LinesWithPrefix("git merge --no-ff"))
	require.Empty(testInstance, executor.LinesWithPrefix("git push"))
}

func TestMergeExecutesMergeSequence(testInstance *testing.T) {
	responses := append([]testsupport.ScriptedResponse{
		{Contains: "pr list", Output: testFeaturePullRequestJSON},
		{Contains: "statusCheckRollup", Output: testSuccessfulStatusPayload},
	}, synchronizedResponses()...)
	service, executor := newTestService(testInstance, responses...)

	details, mergeError := service.Merge(context.Background(), pullrequests.Options{PullRequestID: "#7", RemoteName: "upstream"})
	require.NoError(testInstance, mergeError)
	require.Equal(testInstance, pullrequests.Details{
		ID:         "7",
		Title:      "Add login",
		BaseBranch: "main",
		HeadBranch: "feature/login",
		URL:        "https://github.com/jarrodldavis/example/pull/7",
		SHA:        testCommitConstant,
	}, details)

	require.Equal(testInstance, []string{
		"git fetch --prune upstream",
		"git checkout main",
		"git merge --ff-only @{u}",
		"git rev-parse --abbrev-ref HEAD",
		"git rev-parse --abbrev-ref --symbolic-full-name @{u}",
		"git rev-parse -q main origin/main",
		"git fetch --prune upstream pull/7/head",
		"git merge --no-ff --no-edit -m Merge pull request #7 from feature/login\n\nAdd login abc1234",
		"git push upstream main",
		"git push upstream --delete feature/login",
		"git fetch --prune upstream",
		"git rev-parse --abbrev-ref HEAD",
		"git merge --ff-only @{u}",
	}, executor.LinesWithPrefix("git "))
}

func TestFind(testInstance *testing.T) {
	testCases := []struct {
		name          string
		output        string
		expectedID    string
		expectedError string
	}{
		{
			name:       "single_match",
			output:     testReleasePullRequestJSON,
			expectedID: "42",
		},
		{
			name:          "no_match",
			output:        "[]",
			expectedError: "no open pull request from release/1.2.0 into develop",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			service, executor := newTestService(testInstance, testsupport.ScriptedResponse{Contains: "pr list", Output: testCase.output})

			details, findError := service.Find(context.Background(), "release/1.2.0", "develop")
			require.Equal(testInstance, []string{
				"gh pr list --repo jarrodldavis/example --state open --base develop --head release/1.2.0 --json number,title,baseRefName,headRefName,url,headRefOid --limit 100",
			}, executor.Lines())
			if len(testCase.expectedError) > 0 {
				require.EqualError(testInstance, findError, testCase.expectedError)
				return
			}
			require.NoError(testInstance, findError)
			require.Equal(testInstance, testCase.expectedID, details.ID)
		})
	}
}
