package githubcli

import (
	"context"
	"fmt"
	"strings"
)

const (
	commitStatusFragmentTemplateConstant = `object(expression:"%s"){... on Commit{statusCheckRollup{state contexts(first:100){nodes{__typename ... on CheckRun{name status conclusion detailsUrl} ... on StatusContext{context state targetUrl}}}}}}`
	commitFieldNameConstant              = "commit"
	invalidCommitMessageConstant         = "expected a hexadecimal commit hash"
	missingCommitTemplateConstant        = "commit %s not found"
	noChecksReportedMessageConstant      = "no status checks reported"
	statusLineTemplateConstant           = "%s\t%s\t%s"
	statusStateSuccessConstant           = "SUCCESS"
	checkRunTypeNameConstant             = "CheckRun"
	checkRunCompletedStatusConstant      = "COMPLETED"
	commitStatusOperationNameConstant    = OperationName("CommitStatus")
)

// StatusContext is one check run or commit status contributing to a rollup.
type StatusContext struct {
	Name  string
	State string
	URL   string
}

// CommitStatus is the combined CI state of a commit.
type CommitStatus struct {
	Commit   string
	State    string
	Contexts []StatusContext
}

// Successful reports whether every check passed. Commits without checks are not successful.
func (status CommitStatus) Successful() bool {
	return status.State == statusStateSuccessConstant
}

// Summary renders one line per context, mirroring a verbose CI status listing.
func (status CommitStatus) Summary() string {
	if len(status.Contexts) == 0 {
		return noChecksReportedMessageConstant
	}
	lines := make([]string, 0, len(status.Contexts))
	for _, statusContext := range status.Contexts {
		lines = append(lines, strings.TrimSpace(fmt.Sprintf(statusLineTemplateConstant, statusContext.State, statusContext.Name, statusContext.URL)))
	}
	return strings.Join(lines, "\n")
}

// CommitStatus reads the status check rollup for commit.
func (client *Client) CommitStatus(executionContext context.Context, commit string) (CommitStatus, error) {
	trimmedCommit := strings.ToLower(strings.TrimSpace(commit))
	if len(trimmedCommit) == 0 {
		return CommitStatus{}, InvalidInputError{FieldName: commitFieldNameConstant, Message: requiredValueMessageConstant}
	}
	for _, character := range trimmedCommit {
		if !strings.ContainsRune("0123456789abcdef", character) {
			return CommitStatus{}, InvalidInputError{FieldName: commitFieldNameConstant, Message: invalidCommitMessageConstant}
		}
	}

	var response struct {
		Object *struct {
			StatusCheckRollup *struct {
				State    string `json:"state"`
				Contexts struct {
					Nodes []struct {
						TypeName   string `json:"__typename"`
						Name       string `json:"name"`
						Status     string `json:"status"`
						Conclusion string `json:"conclusion"`
						DetailsURL string `json:"detailsUrl"`
						Context    string `json:"context"`
						State      string `json:"state"`
						TargetURL  string `json:"targetUrl"`
					} `json:"nodes"`
				} `json:"contexts"`
			} `json:"statusCheckRollup"`
		} `json:"object"`
	}

	if queryError := client.DecodeRepository(executionContext, fmt.Sprintf(commitStatusFragmentTemplateConstant, trimmedCommit), &response); queryError != nil {
		return CommitStatus{}, queryError
	}
	if response.Object == nil {
		return CommitStatus{}, OperationError{Operation: commitStatusOperationNameConstant, Cause: fmt.Errorf(missingCommitTemplateConstant, trimmedCommit)}
	}

	status := CommitStatus{Commit: trimmedCommit}
	if response.Object.StatusCheckRollup == nil {
		return status, nil
	}

	status.State = response.Object.StatusCheckRollup.State
	for _, node := range response.Object.StatusCheckRollup.Contexts.Nodes {
		if node.TypeName == checkRunTypeNameConstant {
			checkState := node.Conclusion
			if node.Status != checkRunCompletedStatusConstant || len(checkState) == 0 {
				checkState = node.Status
			}
			status.Contexts = append(status.Contexts, StatusContext{Name: node.Name, State: checkState, URL: node.DetailsURL})
			continue
		}
		status.Contexts = append(status.Contexts, StatusContext{Name: node.Context, State: node.State, URL: node.TargetURL})
	}
	return status, nil
}
