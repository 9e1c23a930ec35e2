// Package githubcli talks to GitHub through the gh command-line tool.
//
// Client issues repository-scoped GraphQL queries (gh api graphql), lists and
// opens pull requests (gh pr), and reads commit status rollups. Every call goes
// through execshell so tests can script responses.
package githubcli
