package gitrepo

import (
	"fmt"
	"strings"
)

const (
	sshProtocolPrefixConstant           = "ssh://"
	httpsProtocolPrefixConstant         = "https://"
	httpProtocolPrefixConstant          = "http://"
	userDelimiterConstant               = "@"
	scpPathDelimiterConstant            = ":"
	pathSeparatorConstant               = "/"
	gitSuffixConstant                   = ".git"
	remoteURLParseErrorTemplateConstant = "%s: %s"
	invalidRemoteURLMessageConstant     = "invalid remote url"
)

// RemoteURL is the forge coordinate encoded in a git remote URL.
type RemoteURL struct {
	Host       string
	Owner      string
	Repository string
}

// NameWithOwner renders the coordinate as "owner/repository".
func (remote RemoteURL) NameWithOwner() string {
	return remote.Owner + pathSeparatorConstant + remote.Repository
}

// RemoteURLParseError indicates a remote string could not be parsed.
type RemoteURLParseError struct {
	Input   string
	Message string
}

// Error describes the parse failure.
func (parseError RemoteURLParseError) Error() string {
	return fmt.Sprintf(remoteURLParseErrorTemplateConstant, parseError.Input, parseError.Message)
}

// ParseRemoteURL accepts scp-style (git@host:owner/repo.git), ssh://, and http(s):// remotes.
func ParseRemoteURL(remote string) (RemoteURL, error) {
	trimmedRemote := strings.TrimSpace(remote)
	if len(trimmedRemote) == 0 {
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: requiredValueMessageConstant}
	}

	var hostAndPath string
	switch {
	case strings.HasPrefix(trimmedRemote, sshProtocolPrefixConstant):
		hostAndPath = stripUser(strings.TrimPrefix(trimmedRemote, sshProtocolPrefixConstant))
	case strings.HasPrefix(trimmedRemote, httpsProtocolPrefixConstant):
		hostAndPath = stripUser(strings.TrimPrefix(trimmedRemote, httpsProtocolPrefixConstant))
	case strings.HasPrefix(trimmedRemote, httpProtocolPrefixConstant):
		hostAndPath = stripUser(strings.TrimPrefix(trimmedRemote, httpProtocolPrefixConstant))
	case strings.Contains(trimmedRemote, userDelimiterConstant) && strings.Contains(trimmedRemote, scpPathDelimiterConstant):
		hostAndPath = strings.Replace(stripUser(trimmedRemote), scpPathDelimiterConstant, pathSeparatorConstant, 1)
	default:
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: invalidRemoteURLMessageConstant}
	}

	segments := strings.Split(strings.Trim(hostAndPath, pathSeparatorConstant), pathSeparatorConstant)
	if len(segments) != 3 {
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: invalidRemoteURLMessageConstant}
	}

	host := stripPort(segments[0])
	owner := segments[1]
	repository := strings.TrimSuffix(segments[2], gitSuffixConstant)
	if len(host) == 0 || len(owner) == 0 || len(repository) == 0 {
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: invalidRemoteURLMessageConstant}
	}
	return RemoteURL{Host: host, Owner: owner, Repository: repository}, nil
}

func stripUser(hostAndPath string) string {
	pathStart := strings.Index(hostAndPath, pathSeparatorConstant)
	userEnd := strings.Index(hostAndPath, userDelimiterConstant)
	if userEnd == -1 || (pathStart != -1 && userEnd > pathStart) {
		return hostAndPath
	}
	return hostAndPath[userEnd+1:]
}

func stripPort(host string) string {
	if portIndex := strings.Index(host, scpPathDelimiterConstant); portIndex != -1 {
		return host[:portIndex]
	}
	return host
}
