package normalize

import (
	"errors"
	"regexp"
	"strings"

	"golang.org/x/net/idna"
)

var (
	// ErrInvalidHost indicates the provided string is not a usable host name.
	ErrInvalidHost = errors.New("invalid host name")
	// ErrInvalidContainer indicates the name breaks blob container naming rules.
	ErrInvalidContainer = errors.New("invalid container name")
)

var (
	ldhRe       = regexp.MustCompile(`^[a-z0-9-]{1,63}$`)
	containerRe = regexp.MustCompile(`^[a-z0-9]([a-z0-9]|-[a-z0-9]){2,62}$`)
)

// Host canonicalizes a registry host name: whitespace, scheme, path and a
// trailing dot are stripped, then every label is converted to its lowercase
// ASCII (Punycode) form and checked for LDH rules.
//
//	"https://Hub.Azure-Devices.net/" -> "hub.azure-devices.net"
func Host(s string) (string, error) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/#?"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSuffix(s, ".")
	if s == "" {
		return "", ErrInvalidHost
	}
	// a port is allowed for local emulators
	host, port := s, ""
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		host, port = s[:i], s[i:]
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", ErrInvalidHost
	}
	ascii = strings.ToLower(ascii)
	for _, label := range strings.Split(ascii, ".") {
		if err := validateLDH(label); err != nil {
			return "", err
		}
	}
	return ascii + port, nil
}

func validateLDH(label string) error {
	if !ldhRe.MatchString(label) {
		return ErrInvalidHost
	}
	if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
		return ErrInvalidHost
	}
	return nil
}

// ContainerName validates a blob container name: 3-63 characters of
// lowercase letters, digits and single hyphens, starting and ending with a
// letter or digit.
func ContainerName(name string) error {
	if len(name) > 63 || !containerRe.MatchString(name) {
		return ErrInvalidContainer
	}
	return nil
}
