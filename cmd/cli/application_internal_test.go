package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testConfigurationFileNameConstant = "config.yaml"
	testConfigurationContentConstant  = "common:\n  log_level: debug\n  log_format: console\nrelease:\n  remote: upstream\n  repository: jarrodldavis/example\n  test_command:\n    - yarn\n    - test\n"
)

func newTestApplication(testInstance *testing.T, arguments ...string) (*Application, *bytes.Buffer) {
	testInstance.Helper()
	testInstance.Setenv("XDG_CONFIG_HOME", testInstance.TempDir())
	originalWorkingDirectory, workingDirectoryError := os.Getwd()
	require.NoError(testInstance, workingDirectoryError)
	require.NoError(testInstance, os.Chdir(testInstance.TempDir()))
	testInstance.Cleanup(func() {
		require.NoError(testInstance, os.Chdir(originalWorkingDirectory))
	})

	application := NewApplication()
	output := &bytes.Buffer{}
	application.rootCommand.SetOut(output)
	application.rootCommand.SetErr(output)
	application.rootCommand.SetArgs(arguments)
	return application, output
}

func writeTestConfiguration(testInstance *testing.T, content string) string {
	testInstance.Helper()
	configurationPath := filepath.Join(testInstance.TempDir(), testConfigurationFileNameConstant)
	require.NoError(testInstance, os.WriteFile(configurationPath, []byte(content), 0o600))
	return configurationPath
}

func TestApplicationRegistersReleaseCommands(testInstance *testing.T) {
	application, _ := newTestApplication(testInstance)

	for _, commandName := range []string{"preflight", "preversion", "bump", "version", "publish", "postversion", "merge", "mergeversion", "merge-pr", "context"} {
		command, _, findError := application.rootCommand.Find([]string{commandName})
		require.NoError(testInstance, findError, commandName)
		require.NotEqual(testInstance, application.rootCommand, command, commandName)
	}
}

func TestApplicationLoadsEmbeddedDefaults(testInstance *testing.T) {
	application, output := newTestApplication(testInstance)

	require.NoError(testInstance, application.Execute())
	require.Contains(testInstance, output.String(), "version-scripts")
	require.Equal(testInstance, "info", application.configuration.Common.LogLevel)
	require.Equal(testInstance, "structured", application.configuration.Common.LogFormat)
	require.Equal(testInstance, "origin", application.configuration.Release.RemoteName)
	require.Equal(testInstance, []string{"npm", "test"}, application.configuration.Release.TestCommand)
	require.Empty(testInstance, application.configurationMetadata.ConfigFileUsed)
}

func TestApplicationConfigurationPrecedence(testInstance *testing.T) {
	testCases := []struct {
		name              string
		arguments         []string
		environment       map[string]string
		expectedLogLevel  string
		expectedLogFormat string
		expectedRemote    string
	}{
		{
			name:              "configuration_file",
			expectedLogLevel:  "debug",
			expectedLogFormat: "console",
			expectedRemote:    "upstream",
		},
		{
			name:              "environment_overrides_file",
			environment:       map[string]string{"VERSIONSCRIPTS_RELEASE_REMOTE": "fork", "VERSIONSCRIPTS_COMMON_LOG_LEVEL": "warn"},
			expectedLogLevel:  "warn",
			expectedLogFormat: "console",
			expectedRemote:    "fork",
		},
		{
			name:              "flags_override_environment",
			arguments:         []string{"--log-level", "ERROR", "--log-format", "structured"},
			environment:       map[string]string{"VERSIONSCRIPTS_COMMON_LOG_LEVEL": "warn"},
			expectedLogLevel:  "error",
			expectedLogFormat: "structured",
			expectedRemote:    "upstream",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			for name, value := range testCase.environment {
				testInstance.Setenv(name, value)
			}
			configurationPath := writeTestConfiguration(testInstance, testConfigurationContentConstant)
			arguments := append([]string{"--config", configurationPath}, testCase.arguments...)
			application, _ := newTestApplication(testInstance, arguments...)

			require.NoError(testInstance, application.Execute())
			require.Equal(testInstance, testCase.expectedLogLevel, application.configuration.Common.LogLevel)
			require.Equal(testInstance, testCase.expectedLogFormat, application.configuration.Common.LogFormat)
			require.Equal(testInstance, testCase.expectedRemote, application.configuration.Release.RemoteName)
			require.Equal(testInstance, "jarrodldavis/example", application.configuration.Release.Repository)
			require.Equal(testInstance, []string{"yarn", "test"}, application.configuration.Release.TestCommand)
			require.Equal(testInstance, "CHANGELOG.md", application.configuration.Release.ChangelogFile)
			require.Equal(testInstance, configurationPath, application.configurationMetadata.ConfigFileUsed)
		})
	}
}

func TestApplicationExecuteReportsCommandPath(testInstance *testing.T) {
	testCases := []struct {
		name          string
		arguments     []string
		expectedError string
	}{
		{
			name:          "argument_validation",
			arguments:     []string{"merge-pr"},
			expectedError: "version-scripts merge-pr: accepts between 1 and 2 arg(s), received 0",
		},
		{
			name:          "invalid_log_level",
			arguments:     []string{"--log-level", "verbose", "context"},
			expectedError: "version-scripts context: invalid argument \"verbose\" for \"--log-level\" flag: invalid value \"verbose\": expected one of debug, info, warn, error",
		},
		{
			name:          "missing_configuration_file",
			arguments:     []string{"--config", "/nonexistent/config.yaml", "context"},
			expectedError: "version-scripts context: unable to load configuration",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			application, _ := newTestApplication(testInstance, testCase.arguments...)

			executionError := application.Execute()
			require.Error(testInstance, executionError)
			require.Contains(testInstance, executionError.Error(), testCase.expectedError)
			var commandError CommandError
			require.ErrorAs(testInstance, executionError, &commandError)
		})
	}
}

func TestApplicationRejectsUnsupportedConfiguredLogFormat(testInstance *testing.T) {
	configurationPath := writeTestConfiguration(testInstance, "common:\n  log_format: xml\n")
	application, _ := newTestApplication(testInstance, "--config", configurationPath)

	executionError := application.Execute()
	require.ErrorContains(testInstance, executionError, "unable to create logger: unsupported log format: xml")
}
