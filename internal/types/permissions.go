package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Permissions is a set of storage access rights.
type Permissions uint8

const (
	PermRead Permissions = 1 << iota
	PermWrite
	PermDelete
)

// PermAll is the policy used for the export/import handoff.
const PermAll = PermRead | PermWrite | PermDelete

// Has reports whether every right in q is in p.
func (p Permissions) Has(q Permissions) bool { return p&q == q }

// String renders p in canonical "rwd" order.
func (p Permissions) String() string {
	var b strings.Builder
	if p.Has(PermRead) {
		b.WriteByte('r')
	}
	if p.Has(PermWrite) {
		b.WriteByte('w')
	}
	if p.Has(PermDelete) {
		b.WriteByte('d')
	}
	return b.String()
}

// ParsePermissions reads a permission string such as "rwd". Letters other
// than r, w and d are rejected.
func ParsePermissions(s string) (Permissions, error) {
	var p Permissions
	for _, c := range s {
		switch c {
		case 'r':
			p |= PermRead
		case 'w':
			p |= PermWrite
		case 'd':
			p |= PermDelete
		default:
			return 0, fmt.Errorf("unsupported permission %q in %q", c, s)
		}
	}
	return p, nil
}

func (p Permissions) MarshalJSON() ([]byte, error) { return json.Marshal(p.String()) }

func (p *Permissions) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParsePermissions(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}
