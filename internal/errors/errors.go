// Package errors attaches error categories to concrete errors without changing their message.
package errors

import (
	"errors"
)

// With returns an error that reads as base but also matches category, and whatever category
// wraps, under errors.Is and errors.As. Unwrapping it yields base.
func With(base, category error) error {
	switch {
	case category == nil:
		return base
	case base == nil:
		return category
	}
	return &categorized{base: base, category: category}
}

type categorized struct {
	base     error
	category error
}

func (c *categorized) Error() string {
	return c.base.Error()
}

// Is matches the category chain. The base chain is reached through Unwrap.
func (c *categorized) Is(target error) bool {
	return errors.Is(c.category, target)
}

// As fills target from the category chain. The base chain is reached through Unwrap.
func (c *categorized) As(target any) bool {
	return errors.As(c.category, target)
}

func (c *categorized) Unwrap() error {
	return c.base
}
