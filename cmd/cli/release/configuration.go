package release

import (
	"strings"

	"github.com/jarrodldavis/npm-version-scripts/internal/pullrequests"
	"github.com/jarrodldavis/npm-version-scripts/internal/releases"
)

const (
	configurationRemoteKeyConstant           = "remote"
	configurationRepositoryKeyConstant       = "repository"
	configurationChangelogFileKeyConstant    = "changelog_file"
	configurationChangelogCommandKeyConstant = "changelog_command"
	configurationTestCommandKeyConstant      = "test_command"
	configurationPullRequestLimitKeyConstant = "pull_request_limit"
	configurationMilestoneLimitKeyConstant   = "milestone_limit"
	configurationKeySeparatorConstant        = "."
	defaultChangelogFileConstant             = "CHANGELOG.md"
	defaultPullRequestLimitConstant          = 100
	defaultMilestoneLimitConstant            = 100
	changelogPluginPrefixConstant            = "@jarrodldavis/changelog-version-bump=version:'"
)

// CommandConfiguration captures the release section of the configuration file.
type CommandConfiguration struct {
	RemoteName       string   `mapstructure:"remote"`
	Repository       string   `mapstructure:"repository"`
	ChangelogFile    string   `mapstructure:"changelog_file"`
	ChangelogCommand []string `mapstructure:"changelog_command"`
	TestCommand      []string `mapstructure:"test_command"`
	PullRequestLimit int      `mapstructure:"pull_request_limit"`
	MilestoneLimit   int      `mapstructure:"milestone_limit"`
}

// DefaultCommandConfiguration returns the configuration used when nothing overrides it.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		RemoteName:       pullrequests.DefaultRemoteName,
		ChangelogFile:    defaultChangelogFileConstant,
		ChangelogCommand: []string{"remark", releases.FilePlaceholder, "-o", "--use", changelogPluginPrefixConstant + releases.VersionPlaceholder + "'"},
		TestCommand:      []string{"npm", "test"},
		PullRequestLimit: defaultPullRequestLimitConstant,
		MilestoneLimit:   defaultMilestoneLimitConstant,
	}
}

// Sanitize trims values and restores defaults for anything left empty.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	defaults := DefaultCommandConfiguration()
	sanitized := configuration

	sanitized.RemoteName = strings.TrimSpace(sanitized.RemoteName)
	if len(sanitized.RemoteName) == 0 {
		sanitized.RemoteName = defaults.RemoteName
	}
	sanitized.Repository = strings.TrimSpace(sanitized.Repository)
	sanitized.ChangelogFile = strings.TrimSpace(sanitized.ChangelogFile)
	if len(sanitized.ChangelogFile) == 0 {
		sanitized.ChangelogFile = defaults.ChangelogFile
	}
	sanitized.ChangelogCommand = sanitizeCommand(sanitized.ChangelogCommand)
	if len(sanitized.ChangelogCommand) == 0 {
		sanitized.ChangelogCommand = defaults.ChangelogCommand
	}
	sanitized.TestCommand = sanitizeCommand(sanitized.TestCommand)
	if len(sanitized.TestCommand) == 0 {
		sanitized.TestCommand = defaults.TestCommand
	}
	if sanitized.PullRequestLimit <= 0 {
		sanitized.PullRequestLimit = defaults.PullRequestLimit
	}
	if sanitized.MilestoneLimit <= 0 {
		sanitized.MilestoneLimit = defaults.MilestoneLimit
	}
	return sanitized
}

// DefaultConfigurationValues produces Viper defaults for the release section rooted at rootKey.
func DefaultConfigurationValues(rootKey string) map[string]any {
	defaults := DefaultCommandConfiguration()
	prefix := rootKey + configurationKeySeparatorConstant
	return map[string]any{
		prefix + configurationRemoteKeyConstant:           defaults.RemoteName,
		prefix + configurationRepositoryKeyConstant:       defaults.Repository,
		prefix + configurationChangelogFileKeyConstant:    defaults.ChangelogFile,
		prefix + configurationChangelogCommandKeyConstant: defaults.ChangelogCommand,
		prefix + configurationTestCommandKeyConstant:      defaults.TestCommand,
		prefix + configurationPullRequestLimitKeyConstant: defaults.PullRequestLimit,
		prefix + configurationMilestoneLimitKeyConstant:   defaults.MilestoneLimit,
	}
}

func sanitizeCommand(command []string) []string {
	sanitized := make([]string, 0, len(command))
	for _, argument := range command {
		if trimmed := strings.TrimSpace(argument); len(trimmed) > 0 {
			sanitized = append(sanitized, trimmed)
		}
	}
	return sanitized
}
