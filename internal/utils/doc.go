// Package utils holds the configuration and logging plumbing shared by every command.
//
// ConfigurationLoader layers embedded defaults, configuration files, and
// prefixed environment variables through Viper. LoggerFactory builds zap
// loggers that write to standard error.
package utils
