// Package pullrequests merges pull requests the way the forge merge button does, after checking
// branch roles, CI status, and local synchronization.
package pullrequests
