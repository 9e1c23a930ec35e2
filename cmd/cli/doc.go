// Package cli builds the version-scripts command-line interface. It wires the
// Cobra command hierarchy to the layered configuration loader and the zap
// logger, and registers the release lifecycle commands.
package cli
