// Package connstr parses the semicolon separated key=value connection
// strings used by registry and storage services.
package connstr

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/yourorg/hubsync/internal/normalize"
)

// ErrMalformed is returned for connection strings that cannot be parsed or
// that lack a required key.
var ErrMalformed = errors.New("malformed connection string")

// Registry holds the parts of a registry service connection string.
type Registry struct {
	HostName string
	KeyName  string
	Key      []byte // decoded shared access key
}

// Storage holds the parts of a storage account connection string.
type Storage struct {
	Protocol       string
	AccountName    string
	AccountKey     string // base64 as issued; the blob SDK decodes it
	EndpointSuffix string
	BlobEndpoint   string // optional explicit endpoint, e.g. an emulator
}

// BlobURL returns the blob service endpoint without a trailing slash.
func (s Storage) BlobURL() string {
	if s.BlobEndpoint != "" {
		return strings.TrimSuffix(s.BlobEndpoint, "/")
	}
	return fmt.Sprintf("%s://%s.blob.%s", s.Protocol, s.AccountName, s.EndpointSuffix)
}

// Split breaks a connection string into its key/value pairs. Values may
// contain '=' (base64 padding); keys are matched case-insensitively by the
// callers, so they are stored as written.
func Split(s string) (map[string]string, error) {
	out := make(map[string]string)
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("%w: segment %q has no key", ErrMalformed, redact(part))
		}
		out[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrMalformed)
	}
	return out, nil
}

// ParseRegistry parses "HostName=..;SharedAccessKeyName=..;SharedAccessKey=..".
func ParseRegistry(s string) (Registry, error) {
	kv, err := Split(s)
	if err != nil {
		return Registry{}, err
	}
	host, keyName, key := kv["hostname"], kv["sharedaccesskeyname"], kv["sharedaccesskey"]
	if host == "" || keyName == "" || key == "" {
		return Registry{}, fmt.Errorf("%w: HostName, SharedAccessKeyName and SharedAccessKey are required", ErrMalformed)
	}
	h, err := normalize.Host(host)
	if err != nil {
		return Registry{}, fmt.Errorf("%w: HostName: %v", ErrMalformed, err)
	}
	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return Registry{}, fmt.Errorf("%w: SharedAccessKey is not base64", ErrMalformed)
	}
	return Registry{HostName: h, KeyName: keyName, Key: raw}, nil
}

// ParseStorage parses an account connection string. EndpointSuffix defaults
// to core.windows.net and DefaultEndpointsProtocol to https.
func ParseStorage(s string) (Storage, error) {
	kv, err := Split(s)
	if err != nil {
		return Storage{}, err
	}
	st := Storage{
		Protocol:       kv["defaultendpointsprotocol"],
		AccountName:    kv["accountname"],
		AccountKey:     kv["accountkey"],
		EndpointSuffix: kv["endpointsuffix"],
		BlobEndpoint:   kv["blobendpoint"],
	}
	if st.AccountName == "" || st.AccountKey == "" {
		return Storage{}, fmt.Errorf("%w: AccountName and AccountKey are required", ErrMalformed)
	}
	if _, err := base64.StdEncoding.DecodeString(st.AccountKey); err != nil {
		return Storage{}, fmt.Errorf("%w: AccountKey is not base64", ErrMalformed)
	}
	if st.Protocol == "" {
		st.Protocol = "https"
	}
	st.Protocol = strings.ToLower(st.Protocol)
	if st.Protocol != "https" && st.Protocol != "http" {
		return Storage{}, fmt.Errorf("%w: unsupported protocol %q", ErrMalformed, st.Protocol)
	}
	if st.EndpointSuffix == "" {
		st.EndpointSuffix = "core.windows.net"
	}
	return st, nil
}

// redact keeps the key of a segment and hides its value.
func redact(segment string) string {
	if k, _, ok := strings.Cut(segment, "="); ok {
		return k + "=***"
	}
	if len(segment) > 4 {
		return segment[:4] + "***"
	}
	return "***"
}
