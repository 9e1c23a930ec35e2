// Package releases drives a release through its phases: preflight checks, the version bump,
// publishing the release branch, and merging it into the production and default branches.
//
// Every phase observes a single Context resolved once at startup, so branch roles and the
// milestone do not change mid-run even if the repository does.
package releases
