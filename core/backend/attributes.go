// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"fmt"
	"reflect"
	"strconv"
	"sync"
)

// attributeStore keeps the committed attributes of an entity apart from its
// pending changes. A field is only in changes while its value differs from
// the committed one.
type attributeStore struct {
	mutex      sync.RWMutex
	attributes map[string]interface{}
	changes    map[string]interface{}
}

func newAttributeStore(initial map[string]interface{}) *attributeStore {
	s := &attributeStore{
		attributes: make(map[string]interface{}, len(initial)),
		changes:    map[string]interface{}{},
	}
	for k, v := range initial {
		s.attributes[k] = v
	}
	return s
}

func (s *attributeStore) get(field string) (interface{}, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if v, ok := s.changes[field]; ok {
		return v, true
	}
	v, ok := s.attributes[field]
	return v, ok
}

func (s *attributeStore) set(field string, value interface{}) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if committed, ok := s.attributes[field]; ok && valuesEqual(committed, value) {
		delete(s.changes, field)
		return
	}
	s.changes[field] = value
}

func (s *attributeStore) merged() map[string]interface{} {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	m := make(map[string]interface{}, len(s.attributes)+len(s.changes))
	for k, v := range s.attributes {
		m[k] = v
	}
	for k, v := range s.changes {
		m[k] = v
	}
	return m
}

func (s *attributeStore) pending() map[string]interface{} {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	m := make(map[string]interface{}, len(s.changes))
	for k, v := range s.changes {
		m[k] = v
	}
	return m
}

func (s *attributeStore) hasChanges() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.changes) > 0
}

// commit merges the pending changes into the committed attributes
func (s *attributeStore) commit() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for k, v := range s.changes {
		s.attributes[k] = v
	}
	s.changes = map[string]interface{}{}
}

// restore replaces the pending changes with changes
func (s *attributeStore) restore(changes map[string]interface{}) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.changes = make(map[string]interface{}, len(changes))
	for k, v := range changes {
		s.changes[k] = v
	}
}

func (s *attributeStore) reset() {
	s.mutex.Lock()
	s.changes = map[string]interface{}{}
	s.mutex.Unlock()
}

// valuesEqual is the strict equality used for change tracking. Numbers compare
// by value regardless of their Go type, so a float64 from a JSON body equals
// the int a program has set.
func valuesEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// looseEqual is the equality used to find entities by key: numbers and their
// string representation are the same key.
func looseEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return false
	}
	if valuesEqual(a, b) {
		return true
	}
	return KeyString(a) == KeyString(b)
}

// KeyString returns the canonical string form of an identifier value
func KeyString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		return strconv.FormatBool(x)
	case interface{ String() string }:
		return x.String()
	}
	if f, ok := toFloat(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case interface{ Float64() (float64, error) }: // json.Number
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}

// isUndefined is true for missing values, nil and the empty string
func isUndefined(v interface{}, ok bool) bool {
	if !ok || v == nil {
		return true
	}
	s, isString := v.(string)
	return isString && s == ""
}
