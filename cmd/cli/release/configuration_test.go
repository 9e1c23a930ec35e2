package release_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jarrodldavis/npm-version-scripts/cmd/cli/release"
)

func TestCommandConfigurationSanitize(testInstance *testing.T) {
	defaults := release.DefaultCommandConfiguration()

	testCases := []struct {
		name     string
		input    release.CommandConfiguration
		expected release.CommandConfiguration
	}{
		{
			name:     "empty_restores_defaults",
			input:    release.CommandConfiguration{},
			expected: defaults,
		},
		{
			name: "trims_values",
			input: release.CommandConfiguration{
				RemoteName:       "  upstream ",
				Repository:       " jarrodldavis/example ",
				ChangelogFile:    " HISTORY.md",
				ChangelogCommand: []string{" ./bin/changelog ", "", "{version}"},
				TestCommand:      []string{"yarn", "  ", "test"},
				PullRequestLimit: 20,
				MilestoneLimit:   -1,
			},
			expected: release.CommandConfiguration{
				RemoteName:       "upstream",
				Repository:       "jarrodldavis/example",
				ChangelogFile:    "HISTORY.md",
				ChangelogCommand: []string{"./bin/changelog", "{version}"},
				TestCommand:      []string{"yarn", "test"},
				PullRequestLimit: 20,
				MilestoneLimit:   defaults.MilestoneLimit,
			},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expected, testCase.input.Sanitize())
		})
	}
}

func TestDefaultConfigurationValues(testInstance *testing.T) {
	values := release.DefaultConfigurationValues("release")
	require.Equal(testInstance, "origin", values["release.remote"])
	require.Equal(testInstance, "CHANGELOG.md", values["release.changelog_file"])
	require.Equal(testInstance, []string{"npm", "test"}, values["release.test_command"])
	require.Equal(testInstance, 100, values["release.milestone_limit"])
	require.Len(testInstance, values, 7)
}
