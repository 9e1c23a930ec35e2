// Package safety holds the preconditions checked before the release workflow mutates anything.
//
// SynchronizationGuard fails when the checked-out branch differs from its
// upstream. ConcurrencyGuard inspects tags and branches that have not reached
// the default branch to detect a release already in flight, and refuses to
// re-release a version whose tag is already merged.
package safety
