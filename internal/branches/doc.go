// Package branches resolves the roles of a repository's long-lived branches.
//
// The default branch comes from the forge's default branch pointer. The
// production branch is derived from branch protection rules: exactly two
// protected branches must exist and the one that is not the default branch is
// production.
package branches
