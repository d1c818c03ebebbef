// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"github.com/relabs-tech/restmodel/core"
)

var (
	// ErrConfiguration is wrapped by all setup time errors, like a collection
	// without path or without router. They are raised by panic.
	ErrConfiguration = errors.New("configuration error")

	// ErrValidation is wrapped by *ValidationError
	ErrValidation = errors.New("validation failed")
)

func configurationError(format string, a ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, a...), ErrConfiguration)
}

// Errors accumulates validation messages per attribute. Attributes keep the
// order in which they received their first message.
type Errors struct {
	mutex      sync.RWMutex
	attributes []string
	messages   map[string][]string
}

// NewErrors returns an empty error accumulator
func NewErrors() *Errors {
	return &Errors{messages: map[string][]string{}}
}

// Add adds a message for attribute
func (e *Errors) Add(attribute, message string) *Errors {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if _, ok := e.messages[attribute]; !ok {
		e.attributes = append(e.attributes, attribute)
	}
	e.messages[attribute] = append(e.messages[attribute], message)
	return e
}

// On returns the messages for attribute, or an empty list
func (e *Errors) On(attribute string) []string {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return append([]string{}, e.messages[attribute]...)
}

// All returns a copy of all messages by attribute
func (e *Errors) All() map[string][]string {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	all := make(map[string][]string, len(e.messages))
	for attribute, messages := range e.messages {
		all[attribute] = append([]string{}, messages...)
	}
	return all
}

// Each calls fn for every single message
func (e *Errors) Each(fn func(attribute, message string)) {
	e.mutex.RLock()
	type pair struct{ attribute, message string }
	var pairs []pair
	for _, attribute := range e.attributes {
		for _, message := range e.messages[attribute] {
			pairs = append(pairs, pair{attribute, message})
		}
	}
	e.mutex.RUnlock()
	for _, p := range pairs {
		fn(p.attribute, p.message)
	}
}

// Size returns the total number of messages over all attributes
func (e *Errors) Size() int {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	n := 0
	for _, messages := range e.messages {
		n += len(messages)
	}
	return n
}

// Clear removes all messages
func (e *Errors) Clear() *Errors {
	e.mutex.Lock()
	e.attributes = nil
	e.messages = map[string][]string{}
	e.mutex.Unlock()
	return e
}

// MarshalJSON implements json.Marshaler
func (e *Errors) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.All())
}

// ValidationError is returned by Save when the entity is not valid.
type ValidationError struct {
	Errors map[string][]string
}

func (v *ValidationError) Error() string {
	var attributes []string
	for attribute := range v.Errors {
		attributes = append(attributes, attribute)
	}
	sort.Strings(attributes)
	var parts []string
	for _, attribute := range attributes {
		parts = append(parts, attribute+": "+strings.Join(v.Errors[attribute], ", "))
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Unwrap makes errors.Is(err, ErrValidation) work
func (v *ValidationError) Unwrap() error {
	return ErrValidation
}

// PersistenceError is returned when the persistence adapter reported a failure.
// Entity and collection are left untouched in that case.
type PersistenceError struct {
	Operation  core.Operation
	Collection string
	Err        error
}

func (p *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %s", p.Operation, p.Collection, p.Err)
}

// Unwrap returns the error of the adapter
func (p *PersistenceError) Unwrap() error {
	return p.Err
}
