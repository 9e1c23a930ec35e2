package githubcli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jarrodldavis/npm-version-scripts/internal/execshell"
)

const (
	pullRequestSubcommandConstant          = "pr"
	listSubcommandConstant                 = "list"
	createSubcommandConstant               = "create"
	viewSubcommandConstant                 = "view"
	jsonFlagConstant                       = "--json"
	repoFlagConstant                       = "--repo"
	stateFlagConstant                      = "--state"
	baseFlagConstant                       = "--base"
	headFlagConstant                       = "--head"
	limitFlagConstant                      = "--limit"
	titleFlagConstant                      = "--title"
	bodyFlagConstant                       = "--body"
	milestoneFlagConstant                  = "--milestone"
	pullRequestLimitDefaultValueConstant   = 100
	pullRequestJSONFieldsConstant          = "number,title,baseRefName,headRefName,url,headRefOid"
	pullRequestViewJSONFieldsConstant      = pullRequestJSONFieldsConstant + ",state"
	baseBranchFieldNameConstant            = "base"
	headBranchFieldNameConstant            = "head"
	titleFieldNameConstant                 = "title"
	malformedPullRequestTemplateConstant   = "pull request entry %d is missing %s"
	missingPullRequestURLMessageConstant   = "gh pr create did not print a pull request url"
	pullRequestNumberFieldConstant         = "number"
	pullRequestBaseFieldConstant           = "baseRefName"
	pullRequestHeadFieldConstant           = "headRefName"
	pullRequestURLFieldConstant            = "url"
	pullRequestHeadOidFieldConstant        = "headRefOid"
	pullRequestNumberMessageConstant       = "expected a positive pull request number"
	listPullRequestsOperationNameConstant  = OperationName("ListPullRequests")
	viewPullRequestOperationNameConstant   = OperationName("ViewPullRequest")
	createPullRequestOperationNameConstant = OperationName("CreatePullRequest")
)

// PullRequestState describes acceptable GitHub pull request states.
type PullRequestState string

// Pull request state enumerations.
const (
	PullRequestStateOpen   PullRequestState = PullRequestState("open")
	PullRequestStateClosed PullRequestState = PullRequestState("closed")
	PullRequestStateMerged PullRequestState = PullRequestState("merged")
)

// PullRequest is a validated pull request record.
type PullRequest struct {
	Number      int
	Title       string
	BaseRefName string
	HeadRefName string
	URL         string
	HeadRefOid  string
}

// ID returns the pull request number in its string form.
func (pullRequest PullRequest) ID() string {
	return strconv.Itoa(pullRequest.Number)
}

// PullRequestListOptions configures ListPullRequests queries. Empty branch filters match any branch.
type PullRequestListOptions struct {
	State       PullRequestState
	BaseBranch  string
	HeadBranch  string
	ResultLimit int
}

// PullRequestCreateOptions configures CreatePullRequest.
type PullRequestCreateOptions struct {
	BaseBranch string
	HeadBranch string
	Title      string
	Body       string
	Milestone  string
}

type malformedPullRequestError struct {
	index int
	field string
}

func (malformedError malformedPullRequestError) Error() string {
	return fmt.Sprintf(malformedPullRequestTemplateConstant, malformedError.index, malformedError.field)
}

// ListPullRequests enumerates pull requests using gh pr list. Entries missing any field are rejected.
func (client *Client) ListPullRequests(executionContext context.Context, options PullRequestListOptions) ([]PullRequest, error) {
	state := options.State
	if len(state) == 0 {
		state = PullRequestStateOpen
	}

	resultLimit := options.ResultLimit
	if resultLimit <= 0 {
		resultLimit = pullRequestLimitDefaultValueConstant
	}

	arguments := []string{
		pullRequestSubcommandConstant,
		listSubcommandConstant,
		repoFlagConstant,
		client.repository,
		stateFlagConstant,
		string(state),
	}
	if trimmedBase := strings.TrimSpace(options.BaseBranch); len(trimmedBase) > 0 {
		arguments = append(arguments, baseFlagConstant, trimmedBase)
	}
	if trimmedHead := strings.TrimSpace(options.HeadBranch); len(trimmedHead) > 0 {
		arguments = append(arguments, headFlagConstant, trimmedHead)
	}
	arguments = append(arguments, jsonFlagConstant, pullRequestJSONFieldsConstant, limitFlagConstant, strconv.Itoa(resultLimit))

	executionResult, executionError := client.executor.ExecuteGitHubCLI(executionContext, execshell.CommandDetails{Arguments: arguments})
	if executionError != nil {
		return nil, OperationError{Operation: listPullRequestsOperationNameConstant, Cause: executionError}
	}

	var response []pullRequestEntry
	if decodingError := json.Unmarshal([]byte(executionResult.StandardOutput), &response); decodingError != nil {
		return nil, ResponseDecodingError{Operation: listPullRequestsOperationNameConstant, Cause: decodingError}
	}

	pullRequests := make([]PullRequest, 0, len(response))
	for entryIndex, entry := range response {
		pullRequest, validationError := entry.validate(entryIndex)
		if validationError != nil {
			return nil, ResponseDecodingError{Operation: listPullRequestsOperationNameConstant, Cause: validationError}
		}
		pullRequests = append(pullRequests, pullRequest)
	}

	return pullRequests, nil
}

// ViewPullRequest reads a single pull request by number with gh pr view, regardless of its state.
func (client *Client) ViewPullRequest(executionContext context.Context, number int) (PullRequest, PullRequestState, error) {
	if number <= 0 {
		return PullRequest{}, "", InvalidInputError{FieldName: pullRequestNumberFieldConstant, Message: pullRequestNumberMessageConstant}
	}

	arguments := []string{
		pullRequestSubcommandConstant,
		viewSubcommandConstant,
		strconv.Itoa(number),
		repoFlagConstant,
		client.repository,
		jsonFlagConstant,
		pullRequestViewJSONFieldsConstant,
	}
	executionResult, executionError := client.executor.ExecuteGitHubCLI(executionContext, execshell.CommandDetails{Arguments: arguments})
	if executionError != nil {
		return PullRequest{}, "", OperationError{Operation: viewPullRequestOperationNameConstant, Cause: executionError}
	}

	var entry pullRequestEntry
	if decodingError := json.Unmarshal([]byte(executionResult.StandardOutput), &entry); decodingError != nil {
		return PullRequest{}, "", ResponseDecodingError{Operation: viewPullRequestOperationNameConstant, Cause: decodingError}
	}
	pullRequest, validationError := entry.validate(0)
	if validationError != nil {
		return PullRequest{}, "", ResponseDecodingError{Operation: viewPullRequestOperationNameConstant, Cause: validationError}
	}
	return pullRequest, PullRequestState(strings.ToLower(strings.TrimSpace(entry.State))), nil
}

type pullRequestEntry struct {
	Number      int    `json:"number"`
	Title       string `json:"title"`
	BaseRefName string `json:"baseRefName"`
	HeadRefName string `json:"headRefName"`
	URL         string `json:"url"`
	HeadRefOid  string `json:"headRefOid"`
	State       string `json:"state"`
}

// validate rejects entries missing any field a merge depends on.
func (entry pullRequestEntry) validate(entryIndex int) (PullRequest, error) {
	missingField := ""
	switch {
	case entry.Number <= 0:
		missingField = pullRequestNumberFieldConstant
	case len(strings.TrimSpace(entry.BaseRefName)) == 0:
		missingField = pullRequestBaseFieldConstant
	case len(strings.TrimSpace(entry.HeadRefName)) == 0:
		missingField = pullRequestHeadFieldConstant
	case len(strings.TrimSpace(entry.URL)) == 0:
		missingField = pullRequestURLFieldConstant
	case len(strings.TrimSpace(entry.HeadRefOid)) == 0:
		missingField = pullRequestHeadOidFieldConstant
	}
	if len(missingField) > 0 {
		return PullRequest{}, malformedPullRequestError{index: entryIndex, field: missingField}
	}

	return PullRequest{
		Number:      entry.Number,
		Title:       entry.Title,
		BaseRefName: strings.TrimSpace(entry.BaseRefName),
		HeadRefName: strings.TrimSpace(entry.HeadRefName),
		URL:         strings.TrimSpace(entry.URL),
		HeadRefOid:  strings.TrimSpace(entry.HeadRefOid),
	}, nil
}

// CreatePullRequest opens a pull request with gh pr create and returns its URL.
func (client *Client) CreatePullRequest(executionContext context.Context, options PullRequestCreateOptions) (string, error) {
	baseBranch := strings.TrimSpace(options.BaseBranch)
	if len(baseBranch) == 0 {
		return "", InvalidInputError{FieldName: baseBranchFieldNameConstant, Message: requiredValueMessageConstant}
	}
	headBranch := strings.TrimSpace(options.HeadBranch)
	if len(headBranch) == 0 {
		return "", InvalidInputError{FieldName: headBranchFieldNameConstant, Message: requiredValueMessageConstant}
	}
	title := strings.TrimSpace(options.Title)
	if len(title) == 0 {
		return "", InvalidInputError{FieldName: titleFieldNameConstant, Message: requiredValueMessageConstant}
	}

	arguments := []string{
		pullRequestSubcommandConstant,
		createSubcommandConstant,
		repoFlagConstant,
		client.repository,
		baseFlagConstant,
		baseBranch,
		headFlagConstant,
		headBranch,
		titleFlagConstant,
		title,
		bodyFlagConstant,
		options.Body,
	}
	if milestone := strings.TrimSpace(options.Milestone); len(milestone) > 0 {
		arguments = append(arguments, milestoneFlagConstant, milestone)
	}

	executionResult, executionError := client.executor.ExecuteGitHubCLI(executionContext, execshell.CommandDetails{Arguments: arguments})
	if executionError != nil {
		return "", OperationError{Operation: createPullRequestOperationNameConstant, Cause: executionError}
	}

	outputLines := strings.Split(strings.TrimSpace(executionResult.StandardOutput), "\n")
	pullRequestURL := strings.TrimSpace(outputLines[len(outputLines)-1])
	if len(pullRequestURL) == 0 {
		return "", ResponseDecodingError{Operation: createPullRequestOperationNameConstant, Cause: errors.New(missingPullRequestURLMessageConstant)}
	}
	return pullRequestURL, nil
}
