package githubcli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jarrodldavis/npm-version-scripts/internal/execshell"
)

const (
	apiSubcommandConstant                = "api"
	graphQLEndpointConstant              = "graphql"
	rawFieldFlagConstant                 = "-f"
	queryFieldTemplateConstant           = "query=%s"
	ownerFieldTemplateConstant           = "owner=%s"
	nameFieldTemplateConstant            = "name=%s"
	repositoryQueryTemplateConstant      = "query($owner:String!,$name:String!){repository(owner:$owner,name:$name){%s}}"
	fragmentFieldNameConstant            = "fragment"
	queryErrorTemplateConstant           = "graphql query returned errors: %s"
	queryErrorSeparatorConstant          = "; "
	missingRepositoryMessageConstant     = "graphql response did not contain a repository object"
	jsonNullLiteralConstant              = "null"
	jsonObjectPrefixConstant             = "{"
	queryRepositoryOperationNameConstant = OperationName("QueryRepository")
)

// QueryError reports a GraphQL response carrying a top-level errors array.
type QueryError struct {
	Messages []string
}

// Error joins the reported messages.
func (queryError QueryError) Error() string {
	return fmt.Sprintf(queryErrorTemplateConstant, strings.Join(queryError.Messages, queryErrorSeparatorConstant))
}

// MissingRepositoryError reports a response whose data.repository is absent or not an object.
type MissingRepositoryError struct{}

// Error describes the missing payload.
func (MissingRepositoryError) Error() string {
	return missingRepositoryMessageConstant
}

type graphQLEnvelope struct {
	Data *struct {
		Repository json.RawMessage `json:"repository"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// QueryRepository wraps fragment in the repository query, runs it, and returns the repository payload.
// Decoding failures, error arrays, and missing repository objects are all terminal.
func (client *Client) QueryRepository(executionContext context.Context, fragment string) (json.RawMessage, error) {
	trimmedFragment := strings.TrimSpace(fragment)
	if len(trimmedFragment) == 0 {
		return nil, InvalidInputError{FieldName: fragmentFieldNameConstant, Message: requiredValueMessageConstant}
	}

	commandDetails := execshell.CommandDetails{
		Arguments: []string{
			apiSubcommandConstant,
			graphQLEndpointConstant,
			rawFieldFlagConstant,
			fmt.Sprintf(queryFieldTemplateConstant, fmt.Sprintf(repositoryQueryTemplateConstant, trimmedFragment)),
			rawFieldFlagConstant,
			fmt.Sprintf(ownerFieldTemplateConstant, client.owner),
			rawFieldFlagConstant,
			fmt.Sprintf(nameFieldTemplateConstant, client.name),
		},
	}

	executionResult, executionError := client.executor.ExecuteGitHubCLI(executionContext, commandDetails)
	if executionError != nil {
		// gh exits non-zero on GraphQL errors but still prints the response body.
		var failedError execshell.CommandFailedError
		if errors.As(executionError, &failedError) {
			var envelope graphQLEnvelope
			if json.Unmarshal([]byte(failedError.Result.StandardOutput), &envelope) == nil && len(envelope.Errors) > 0 {
				return nil, newQueryError(envelope)
			}
		}
		return nil, OperationError{Operation: queryRepositoryOperationNameConstant, Cause: executionError}
	}

	var envelope graphQLEnvelope
	if decodingError := json.Unmarshal([]byte(executionResult.StandardOutput), &envelope); decodingError != nil {
		return nil, ResponseDecodingError{Operation: queryRepositoryOperationNameConstant, Cause: decodingError}
	}
	if len(envelope.Errors) > 0 {
		return nil, newQueryError(envelope)
	}
	if envelope.Data == nil {
		return nil, MissingRepositoryError{}
	}

	repositoryPayload := bytes.TrimSpace(envelope.Data.Repository)
	if len(repositoryPayload) == 0 || string(repositoryPayload) == jsonNullLiteralConstant || !bytes.HasPrefix(repositoryPayload, []byte(jsonObjectPrefixConstant)) {
		return nil, MissingRepositoryError{}
	}
	return json.RawMessage(repositoryPayload), nil
}

// DecodeRepository runs QueryRepository and decodes the payload into target.
func (client *Client) DecodeRepository(executionContext context.Context, fragment string, target any) error {
	repositoryPayload, queryError := client.QueryRepository(executionContext, fragment)
	if queryError != nil {
		return queryError
	}
	if decodingError := json.Unmarshal(repositoryPayload, target); decodingError != nil {
		return ResponseDecodingError{Operation: queryRepositoryOperationNameConstant, Cause: decodingError}
	}
	return nil
}

func newQueryError(envelope graphQLEnvelope) QueryError {
	messages := make([]string, 0, len(envelope.Errors))
	for _, reportedError := range envelope.Errors {
		messages = append(messages, strings.TrimSpace(reportedError.Message))
	}
	return QueryError{Messages: messages}
}
