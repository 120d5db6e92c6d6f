// Package handshake classifies a freshly accepted connection into one of the
// two client families from the first packet it sends.
package handshake

import (
	"fmt"
	"strings"
)

// Role is the client family a connection belongs to. It is assigned once
// and never changes.
type Role uint8

const (
	RoleA Role = iota
	RoleB
)

func (r Role) String() string {
	switch r {
	case RoleA:
		return "RoleA"
	case RoleB:
		return "RoleB"
	default:
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
}

// Other returns the role a connection of r pairs with.
func (r Role) Other() Role {
	if r == RoleA {
		return RoleB
	}
	return RoleA
}

// Families holds the brand literal that selects each role.
type Families struct {
	A string
	B string
}

// DefaultFamilies returns the literals announced by unmodified clients.
func DefaultFamilies() Families {
	return Families{A: "Minecraft", B: "TModLoader"}
}

// Name returns the family literal for r.
func (f Families) Name(r Role) string {
	if r == RoleA {
		return f.A
	}
	return f.B
}

// match reports the role whose literal equals family.
func (f Families) match(family string) (Role, bool) {
	switch family {
	case f.A:
		return RoleA, true
	case f.B:
		return RoleB, true
	default:
		return 0, false
	}
}

// Brand is a parsed Connect brand string, e.g. "Minecraft/Fabric/1.18.2" or
// "TModLoader/2022.9". Loader and Version are informational only.
type Brand struct {
	Raw     string
	Family  string
	Loader  string
	Version string
}

// ParseBrand splits raw on "/". With three or more segments the second is
// the loader and the last the version; with two the second is the version.
func ParseBrand(raw string) Brand {
	parts := strings.Split(raw, "/")
	b := Brand{Raw: raw, Family: parts[0]}
	switch {
	case len(parts) >= 3:
		b.Loader = parts[1]
		b.Version = parts[len(parts)-1]
	case len(parts) == 2:
		b.Version = parts[1]
	}
	return b
}

func (b Brand) String() string {
	switch {
	case b.Loader != "" && b.Version != "":
		return fmt.Sprintf("%s %s %s", b.Family, b.Loader, b.Version)
	case b.Version != "":
		return fmt.Sprintf("%s %s", b.Family, b.Version)
	default:
		return b.Family
	}
}
