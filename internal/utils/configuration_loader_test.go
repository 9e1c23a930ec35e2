package utils_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jarrodldavis/npm-version-scripts/internal/utils"
)

const (
	testEnvironmentPrefixConstant                     = "TESTVERSIONSCRIPTS"
	testRemoteKeyConstant                             = "release.remote"
	testRemoteEnvironmentVariableConstant             = testEnvironmentPrefixConstant + "_RELEASE_REMOTE"
	testTestCommandEnvironmentVariableConstant        = testEnvironmentPrefixConstant + "_RELEASE_TEST_COMMAND"
	testDefaultRemoteConstant                         = "origin"
	testEmbeddedRemoteConstant                        = "embedded"
	testFileRemoteConstant                            = "upstream"
	testEnvironmentRemoteConstant                     = "fork"
	testConfigFileNameConstant                        = "config.yaml"
	testConfigContentTemplateConstant                 = "release:\n  remote: %s\n  test_command: [npm, test]\n"
	testConfigurationNameConstant                     = "config"
	testConfigurationTypeConstant                     = "yaml"
	configurationLoaderSubtestNameTemplateConstant    = "%d_%s"
	testUserConfigurationDirectoryNameConstant        = "version-scripts"
	testCaseSearchPathWorkingDirectoryMessageConstant = "searches working directory"
	testCaseSearchPathHomeDirectoryMessageConstant    = "searches user configuration directory"
)

type configurationFixture struct {
	Release releaseFixture `mapstructure:"release"`
}

type releaseFixture struct {
	Remote      string   `mapstructure:"remote"`
	TestCommand []string `mapstructure:"test_command"`
}

func TestConfigurationLoaderLoadConfiguration(testInstance *testing.T) {
	testCases := []struct {
		name                string
		embeddedRemote      string
		fileRemote          string
		environmentRemote   string
		environmentCommand  string
		expectedRemote      string
		expectedTestCommand []string
	}{
		{
			name:                "embedded configuration merges",
			embeddedRemote:      testEmbeddedRemoteConstant,
			expectedRemote:      testEmbeddedRemoteConstant,
			expectedTestCommand: []string{"npm", "test"},
		},
		{
			name:                "config file overrides embedded",
			embeddedRemote:      testEmbeddedRemoteConstant,
			fileRemote:          testFileRemoteConstant,
			expectedRemote:      testFileRemoteConstant,
			expectedTestCommand: []string{"npm", "test"},
		},
		{
			name:                "environment overrides file",
			embeddedRemote:      testEmbeddedRemoteConstant,
			fileRemote:          testFileRemoteConstant,
			environmentRemote:   testEnvironmentRemoteConstant,
			environmentCommand:  "yarn,test,--ci",
			expectedRemote:      testEnvironmentRemoteConstant,
			expectedTestCommand: []string{"yarn", "test", "--ci"},
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(configurationLoaderSubtestNameTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			tempDirectory := testInstance.TempDir()
			configurationFilePath := ""
			if len(testCase.fileRemote) > 0 {
				configurationFilePath = filepath.Join(tempDirectory, testConfigFileNameConstant)
				configurationContent := fmt.Sprintf(testConfigContentTemplateConstant, testCase.fileRemote)
				require.NoError(testInstance, os.WriteFile(configurationFilePath, []byte(configurationContent), 0o600))
			}
			if len(testCase.environmentRemote) > 0 {
				testInstance.Setenv(testRemoteEnvironmentVariableConstant, testCase.environmentRemote)
			}
			if len(testCase.environmentCommand) > 0 {
				testInstance.Setenv(testTestCommandEnvironmentVariableConstant, testCase.environmentCommand)
			}

			configurationLoader := utils.NewConfigurationLoader(testConfigurationNameConstant, testConfigurationTypeConstant, testEnvironmentPrefixConstant, []string{tempDirectory})
			configurationLoader.SetEmbeddedConfiguration([]byte(fmt.Sprintf(testConfigContentTemplateConstant, testCase.embeddedRemote)), testConfigurationTypeConstant)

			loadedConfiguration := configurationFixture{}
			metadata, loadError := configurationLoader.LoadConfiguration(configurationFilePath, map[string]any{testRemoteKeyConstant: testDefaultRemoteConstant}, &loadedConfiguration)
			require.NoError(testInstance, loadError)
			require.Equal(testInstance, testCase.expectedRemote, loadedConfiguration.Release.Remote)
			require.Equal(testInstance, testCase.expectedTestCommand, loadedConfiguration.Release.TestCommand)

			if len(configurationFilePath) > 0 {
				require.Equal(testInstance, configurationFilePath, metadata.ConfigFileUsed)
			} else {
				require.Empty(testInstance, metadata.ConfigFileUsed)
			}
		})
	}
}

func TestConfigurationLoaderAppliesDefaults(testInstance *testing.T) {
	configurationLoader := utils.NewConfigurationLoader(testConfigurationNameConstant, testConfigurationTypeConstant, testEnvironmentPrefixConstant, []string{testInstance.TempDir()})

	loadedConfiguration := configurationFixture{}
	_, loadError := configurationLoader.LoadConfiguration("", map[string]any{testRemoteKeyConstant: testDefaultRemoteConstant}, &loadedConfiguration)
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, testDefaultRemoteConstant, loadedConfiguration.Release.Remote)
}

func TestConfigurationLoaderRejectsMissingExplicitFile(testInstance *testing.T) {
	configurationLoader := utils.NewConfigurationLoader(testConfigurationNameConstant, testConfigurationTypeConstant, testEnvironmentPrefixConstant, nil)

	_, loadError := configurationLoader.LoadConfiguration(filepath.Join(testInstance.TempDir(), "missing.yaml"), nil, &configurationFixture{})
	require.ErrorContains(testInstance, loadError, "failed to read configuration")
}

func TestConfigurationLoaderSearchPaths(testInstance *testing.T) {
	testCases := []struct {
		name                         string
		configurationDirectorySelect func(workingDirectoryPath string, userConfigurationDirectoryPath string) string
	}{
		{
			name: testCaseSearchPathWorkingDirectoryMessageConstant,
			configurationDirectorySelect: func(workingDirectoryPath string, _ string) string {
				return workingDirectoryPath
			},
		},
		{
			name: testCaseSearchPathHomeDirectoryMessageConstant,
			configurationDirectorySelect: func(_ string, userConfigurationDirectoryPath string) string {
				return userConfigurationDirectoryPath
			},
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(configurationLoaderSubtestNameTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			workingDirectoryPath := testInstance.TempDir()
			userConfigurationDirectoryPath := filepath.Join(testInstance.TempDir(), testUserConfigurationDirectoryNameConstant)

			selectedConfigurationDirectoryPath := testCase.configurationDirectorySelect(workingDirectoryPath, userConfigurationDirectoryPath)
			require.NoError(testInstance, os.MkdirAll(selectedConfigurationDirectoryPath, 0o755))

			configurationFilePath := filepath.Join(selectedConfigurationDirectoryPath, testConfigFileNameConstant)
			configurationContent := fmt.Sprintf(testConfigContentTemplateConstant, testFileRemoteConstant)
			require.NoError(testInstance, os.WriteFile(configurationFilePath, []byte(configurationContent), 0o600))

			configurationLoader := utils.NewConfigurationLoader(
				testConfigurationNameConstant,
				testConfigurationTypeConstant,
				testEnvironmentPrefixConstant,
				[]string{workingDirectoryPath, userConfigurationDirectoryPath},
			)

			loadedConfiguration := configurationFixture{}
			metadata, loadError := configurationLoader.LoadConfiguration("", map[string]any{testRemoteKeyConstant: testDefaultRemoteConstant}, &loadedConfiguration)
			require.NoError(testInstance, loadError)
			require.Equal(testInstance, testFileRemoteConstant, loadedConfiguration.Release.Remote)
			require.Equal(testInstance, configurationFilePath, metadata.ConfigFileUsed)
		})
	}
}
