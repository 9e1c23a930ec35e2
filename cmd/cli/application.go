package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/jarrodldavis/npm-version-scripts/cmd/cli/release"
	"github.com/jarrodldavis/npm-version-scripts/internal/utils"
	"github.com/jarrodldavis/npm-version-scripts/internal/utils/flags"
)

const (
	applicationNameConstant                 = "version-scripts"
	applicationShortDescriptionConstant     = "Release automation for npm packages hosted on GitHub"
	applicationLongDescriptionConstant      = "version-scripts drives the npm version lifecycle: it guards the default branch before a bump, creates the release branch and changelog entry, opens the release pull request, and merges releases through production and back into the default branch."
	configFileFlagNameConstant              = "config"
	configFileFlagUsageConstant             = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant                = "log-level"
	logLevelFlagUsageConstant               = "Override the configured log level."
	logFormatFlagNameConstant               = "log-format"
	logFormatFlagUsageConstant              = "Override the configured log format."
	releaseVersionFlagNameConstant          = "release-version"
	releaseVersionFlagUsageConstant         = "Release version to use instead of $npm_package_version."
	commonConfigurationKeyConstant          = "common"
	commonLogLevelConfigKeyConstant         = commonConfigurationKeyConstant + ".log_level"
	commonLogFormatConfigKeyConstant        = commonConfigurationKeyConstant + ".log_format"
	releaseConfigurationKeyConstant         = "release"
	environmentPrefixConstant               = "VERSIONSCRIPTS"
	configurationNameConstant               = "config"
	configurationTypeConstant               = "yaml"
	configurationDirectoryNameConstant      = "version-scripts"
	defaultConfigurationSearchPathConstant  = "."
	configurationInitializedMessageConstant = "configuration initialized"
	configurationLogLevelFieldConstant      = "log_level"
	configurationLogFormatFieldConstant     = "log_format"
	configurationFileFieldConstant          = "config_file"
	configurationLoadErrorTemplateConstant  = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant     = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant         = "unable to flush logger: %w"
	commandErrorTemplateConstant            = "%s: %s"
)

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common  ApplicationCommonConfiguration `mapstructure:"common"`
	Release release.CommandConfiguration   `mapstructure:"release"`
}

// ApplicationCommonConfiguration stores logging configuration shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// CommandError attributes a failure to the command that produced it.
type CommandError struct {
	CommandPath string
	Cause       error
}

// Error prefixes the cause with the command path.
func (commandError CommandError) Error() string {
	return fmt.Sprintf(commandErrorTemplateConstant, commandError.CommandPath, commandError.Cause)
}

// Unwrap exposes the underlying failure.
func (commandError CommandError) Unwrap() error {
	return commandError.Cause
}

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	rootCommand           *cobra.Command
	configurationLoader   *utils.ConfigurationLoader
	loggerFactory         *utils.LoggerFactory
	logger                *zap.Logger
	configuration         ApplicationConfiguration
	configurationMetadata utils.LoadedConfiguration
	configurationFilePath string
	logLevelFlagValue     *flags.ChoiceValue
	logFormatFlagValue    *flags.ChoiceValue
	releaseVersion        string
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	configurationLoader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		configurationSearchPaths(),
	)
	configurationLoader.SetEmbeddedConfiguration(EmbeddedDefaultConfiguration())

	application := &Application{
		configurationLoader: configurationLoader,
		loggerFactory:       utils.NewLoggerFactory(nil),
		logger:              zap.NewNop(),
		logLevelFlagValue:   flags.NewChoiceValue(string(utils.LogLevelInfo), utils.SupportedLogLevels()),
		logFormatFlagValue:  flags.NewChoiceValue(string(utils.LogFormatStructured), utils.SupportedLogFormats()),
	}

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
	}

	cobraCommand.SetContext(context.Background())
	persistentFlags := cobraCommand.PersistentFlags()
	persistentFlags.StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	persistentFlags.Var(application.logLevelFlagValue, logLevelFlagNameConstant, application.logLevelFlagValue.Usage(logLevelFlagUsageConstant))
	persistentFlags.Var(application.logFormatFlagValue, logFormatFlagNameConstant, application.logFormatFlagValue.Usage(logFormatFlagUsageConstant))
	persistentFlags.StringVar(&application.releaseVersion, releaseVersionFlagNameConstant, "", releaseVersionFlagUsageConstant)

	releaseBuilder := release.CommandBuilder{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		ConfigurationProvider: func() release.CommandConfiguration {
			return application.configuration.Release
		},
		ReleaseVersionProvider: func() string {
			return application.releaseVersion
		},
	}
	if workingDirectory, workingDirectoryError := os.Getwd(); workingDirectoryError == nil {
		releaseBuilder.WorkingDirectory = workingDirectory
	}
	releaseCommands, releaseBuildError := releaseBuilder.Build()
	if releaseBuildError == nil {
		cobraCommand.AddCommand(releaseCommands...)
	}

	application.rootCommand = cobraCommand

	return application
}

// Execute runs the configured Cobra command hierarchy and ensures logger flushing.
// Command failures are returned as CommandError.
func (application *Application) Execute() error {
	executedCommand, executionError := application.rootCommand.ExecuteC()
	if syncError := application.flushLogger(); syncError != nil && executionError == nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	if executionError == nil {
		return nil
	}
	commandPath := application.rootCommand.CommandPath()
	if executedCommand != nil {
		commandPath = executedCommand.CommandPath()
	}
	return CommandError{CommandPath: commandPath, Cause: executionError}
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	return NewApplication().Execute()
}

func configurationSearchPaths() []string {
	searchPaths := []string{defaultConfigurationSearchPathConstant}
	if userConfigurationDirectory, directoryError := os.UserConfigDir(); directoryError == nil {
		searchPaths = append(searchPaths, filepath.Join(userConfigurationDirectory, configurationDirectoryNameConstant))
	}
	return searchPaths
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:  string(utils.LogLevelInfo),
		commonLogFormatConfigKeyConstant: string(utils.LogFormatStructured),
	}
	for configurationKey, configurationValue := range release.DefaultConfigurationValues(releaseConfigurationKeyConstant) {
		defaultValues[configurationKey] = configurationValue
	}

	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, defaultValues, &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}

	application.configurationMetadata = loadedConfiguration
	application.configuration.Release = application.configuration.Release.Sanitize()

	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.logLevelFlagValue.String()
	}

	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.logFormatFlagValue.String()
	}

	logger, loggerCreationError := application.loggerFactory.CreateLogger(
		utils.LogLevel(application.configuration.Common.LogLevel),
		utils.LogFormat(application.configuration.Common.LogFormat),
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}

	application.logger = logger

	application.logger.Debug(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
	)

	return nil
}

func (application *Application) flushLogger() error {
	if syncError := application.syncLoggerInstance(application.logger); syncError != nil {
		return syncError
	}
	return nil
}

func (application *Application) syncLoggerInstance(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}

	syncError := logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP):
		return nil
	case errors.Is(syncError, syscall.EINVAL):
		return nil
	default:
		return syncError
	}
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.PersistentFlags(),
		command.InheritedFlags(),
	}

	rootCommand := command.Root()
	if rootCommand != nil {
		flagSetsToInspect = append(flagSetsToInspect, rootCommand.PersistentFlags())
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet == nil {
			continue
		}

		if flagSet.Changed(flagName) {
			return true
		}
	}

	return false
}
