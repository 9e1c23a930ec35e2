// Package environment reads the version inputs that npm exports to lifecycle scripts.
package environment

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	packageVersionKeyConstant                = "package_version"
	versionPrefixKeyConstant                 = "version_prefix"
	commitMessageKeyConstant                 = "commit_message"
	lifecycleEventKeyConstant                = "lifecycle_event"
	packageVersionVariableConstant           = "npm_package_version"
	versionPrefixVariableConstant            = "npm_config_tag_version_prefix"
	commitMessageVariableConstant            = "npm_config_message"
	lifecycleEventVariableConstant           = "npm_lifecycle_event"
	missingVariableTemplateConstant          = "$%s must be set"
	environmentBindFailureTemplateConstant   = "failed to bind %s: %w"
	environmentDecodeFailureTemplateConstant = "failed to decode environment: %w"
	mergeVersionLifecycleEventConstant       = "mergeversion"
)

// Inputs are the values npm supplies to the version lifecycle.
type Inputs struct {
	PackageVersion string `mapstructure:"package_version"`
	VersionPrefix  string `mapstructure:"version_prefix"`
	CommitMessage  string `mapstructure:"commit_message"`
	LifecycleEvent string `mapstructure:"lifecycle_event"`
}

// MergePhase reports whether the process was started by the mergeversion lifecycle script.
func (inputs Inputs) MergePhase() bool {
	return inputs.LifecycleEvent == mergeVersionLifecycleEventConstant
}

// MissingVariableError reports a required environment variable that is unset or empty.
type MissingVariableError struct {
	Variable string
}

// Error names the variable that must be set.
func (missingError MissingVariableError) Error() string {
	return fmt.Sprintf(missingVariableTemplateConstant, missingError.Variable)
}

type binding struct {
	key      string
	variable string
	required bool
	// raw keeps surrounding whitespace, which is significant in a tag prefix.
	raw bool
}

var bindings = []binding{
	{key: packageVersionKeyConstant, variable: packageVersionVariableConstant, required: true},
	{key: versionPrefixKeyConstant, variable: versionPrefixVariableConstant, required: true, raw: true},
	{key: commitMessageKeyConstant, variable: commitMessageVariableConstant, required: true},
	{key: lifecycleEventKeyConstant, variable: lifecycleEventVariableConstant},
}

func (environmentBinding binding) value(viperInstance *viper.Viper) string {
	value := viperInstance.GetString(environmentBinding.key)
	if environmentBinding.raw {
		return value
	}
	return strings.TrimSpace(value)
}

// Loader reads Inputs from the process environment.
type Loader struct{}

// NewLoader constructs a Loader.
func NewLoader() Loader {
	return Loader{}
}

// Load returns the environment inputs with surrounding whitespace removed from everything but the
// version prefix, failing on the first required variable that is missing.
func (Loader) Load() (Inputs, error) {
	viperInstance := viper.New()
	for _, environmentBinding := range bindings {
		if bindError := viperInstance.BindEnv(environmentBinding.key, environmentBinding.variable); bindError != nil {
			return Inputs{}, fmt.Errorf(environmentBindFailureTemplateConstant, environmentBinding.variable, bindError)
		}
	}

	for _, environmentBinding := range bindings {
		if !environmentBinding.required {
			continue
		}
		if len(strings.TrimSpace(viperInstance.GetString(environmentBinding.key))) == 0 {
			return Inputs{}, MissingVariableError{Variable: environmentBinding.variable}
		}
	}

	rawValues := make(map[string]any, len(bindings))
	for _, environmentBinding := range bindings {
		rawValues[environmentBinding.key] = environmentBinding.value(viperInstance)
	}

	var inputs Inputs
	if decodeError := mapstructure.Decode(rawValues, &inputs); decodeError != nil {
		return Inputs{}, fmt.Errorf(environmentDecodeFailureTemplateConstant, decodeError)
	}
	return inputs, nil
}

// MergePhase reports whether npm started the process for the mergeversion script. Unlike Load it
// requires no other variables.
func (Loader) MergePhase() bool {
	viperInstance := viper.New()
	if bindError := viperInstance.BindEnv(lifecycleEventKeyConstant, lifecycleEventVariableConstant); bindError != nil {
		return false
	}
	return Inputs{LifecycleEvent: viperInstance.GetString(lifecycleEventKeyConstant)}.MergePhase()
}

// VersionPrefix returns the tag prefix npm is configured with, or an empty string. Unlike Load it
// requires no other variables.
func (Loader) VersionPrefix() string {
	viperInstance := viper.New()
	if bindError := viperInstance.BindEnv(versionPrefixKeyConstant, versionPrefixVariableConstant); bindError != nil {
		return ""
	}
	return viperInstance.GetString(versionPrefixKeyConstant)
}
