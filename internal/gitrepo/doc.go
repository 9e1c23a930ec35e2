// Package gitrepo wraps the git porcelain used by the release workflow.
//
// RepositoryManager answers questions about branches, tags, revisions, and
// remotes and performs the handful of mutations the workflow needs (checkout,
// push, merge, staging). ParseRemoteURL derives the forge coordinate of a
// repository from its remote URL.
package gitrepo
