package util

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	fullURLRoot   = regexp.MustCompile(`^https?://`)
	schemeRelRoot = regexp.MustCompile(`^//.`)
)

// DetermineFullURLRoot expands the configured URL root into an absolute URL
// that other processes on this host, like the MPD daemon, are able to reach.
//
// The returned URL never ends with a slash.
func DetermineFullURLRoot(root, address string) (string, error) {
	root = strings.TrimSpace(root)
	switch {
	case fullURLRoot.MatchString(root):
		return strings.TrimSuffix(root, "/"), nil
	case schemeRelRoot.MatchString(root):
		// Assume plain HTTP, HTTPS setups configure the full root.
		return "http:" + strings.TrimSuffix(root, "/"), nil
	case root == "" || root == "/":
		i := strings.LastIndex(address, ":")
		if i < 0 {
			return "", fmt.Errorf("unsupported bind address: %q", address)
		}
		host, port := address[:i], address[i+1:]
		if host == "" || host == "0.0.0.0" {
			host = "127.0.0.1"
		} else if host == "[::]" {
			host = "[::1]"
		}
		return fmt.Sprintf("http://%s:%s", host, port), nil
	}
	return "", fmt.Errorf("unsupported URL root format: %q", root)
}
