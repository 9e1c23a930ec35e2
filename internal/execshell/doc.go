// Package execshell provides structured helpers for invoking external tools.
//
// It wraps os/exec with logging via ShellExecutor, exposes OSCommandRunner for
// default process execution, and defines the abstractions the release workflow
// uses to run git, gh, and project tooling in a testable manner.
package execshell
