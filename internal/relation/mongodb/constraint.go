// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package mongodb

import (
	"fmt"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/version/v2"
)

// Constraint restricts the versions of a capability
// a consumer will accept, e.g. ">=4.0".
type Constraint struct {
	Op      string
	Version version.Number
}

// Operators are checked longest first so ">=" is not read as ">".
var operators = []string{">=", "<=", "==", ">", "<"}

// ParseConstraint parses a constraint. A bare version
// is read as an exact match.
func ParseConstraint(s string) (Constraint, error) {
	s = strings.TrimSpace(s)
	op := "=="
	for _, candidate := range operators {
		if strings.HasPrefix(s, candidate) {
			op = candidate
			s = strings.TrimSpace(s[len(candidate):])
			break
		}
	}
	v, err := parseVersion(s)
	if err != nil {
		return Constraint{}, errors.Trace(err)
	}
	return Constraint{Op: op, Version: v}, nil
}

// parseVersion accepts the short "4" and "4.4" forms providers
// advertise as well as full "4.4.1" versions.
func parseVersion(s string) (version.Number, error) {
	switch strings.Count(s, ".") {
	case 0:
		s += ".0.0"
	case 1:
		s += ".0"
	}
	v, err := version.Parse(s)
	if err != nil {
		return version.Number{}, errors.NotValidf("version %q", s)
	}
	return v, nil
}

// Allows reports whether v satisfies the constraint.
func (c Constraint) Allows(v version.Number) bool {
	cmp := v.Compare(c.Version)
	switch c.Op {
	case ">=":
		return cmp >= 0
	case ">":
		return cmp > 0
	case "<=":
		return cmp <= 0
	case "<":
		return cmp < 0
	default:
		return cmp == 0
	}
}

// String is part of the fmt.Stringer interface.
func (c Constraint) String() string {
	return fmt.Sprintf("%s%s", c.Op, c.Version)
}
