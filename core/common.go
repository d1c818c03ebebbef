// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// UnmarshalJSON is a custom JSON unmarshaller
func (o *Operation) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*o = Operation(s)
	switch *o {
	case OperationCreate, OperationRead, OperationUpdate, OperationDestroy, OperationList:
		return nil
	default:
		return fmt.Errorf("%s is not valid Operation", s)
	}
}

// Operations is a set of the operations a collection exposes as routes.
// The zero value means "not configured" and is treated as AllOperations.
type Operations uint8

// the single operations of a set
const (
	Create Operations = 1 << iota
	Read
	Update
	Delete

	AllOperations = Create | Read | Update | Delete
)

var operationCodes = []struct {
	code byte
	op   Operations
}{
	{'C', Create},
	{'R', Read},
	{'U', Update},
	{'D', Delete},
}

// ParseOperations parses a set of single-letter operation codes like "CRUD" or "cr".
// Order and duplicates do not matter, unknown letters are an error.
func ParseOperations(codes string) (Operations, error) {
	var ops Operations
	for _, c := range strings.ToUpper(codes) {
		found := false
		for _, oc := range operationCodes {
			if c == rune(oc.code) {
				ops |= oc.op
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("invalid operation code '%c' in %q", c, codes)
		}
	}
	return ops, nil
}

// Has returns true if all operations in x are part of the set
func (o Operations) Has(x Operations) bool {
	return o&x == x
}

// OrDefault returns AllOperations for the zero value, otherwise the set itself
func (o Operations) OrDefault() Operations {
	if o == 0 {
		return AllOperations
	}
	return o
}

// String returns the codes of the set in canonical CRUD order
func (o Operations) String() string {
	var b strings.Builder
	for _, oc := range operationCodes {
		if o.Has(oc.op) {
			b.WriteByte(oc.code)
		}
	}
	return b.String()
}

// MarshalText implements encoding.TextMarshaler
func (o Operations) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, so operation sets can be
// written as "CRUD" in JSON and YAML configurations
func (o *Operations) UnmarshalText(text []byte) error {
	ops, err := ParseOperations(string(text))
	if err != nil {
		return err
	}
	*o = ops
	return nil
}

// Plural returns the plural form of the passed singular string.
//
// This is the algorithm used to create idiomatic REST routes
func Plural(singular string) string {
	if strings.HasSuffix(singular, "y") {
		return strings.TrimSuffix(singular, "y") + "ies"
	}
	if strings.HasSuffix(singular, "child") {
		return strings.TrimSuffix(singular, "child") + "children"
	}
	return singular + "s"

}
