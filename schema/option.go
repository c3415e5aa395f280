package schema

import "fmt"

type optionState uint8

const (
	optionUnspecified optionState = iota
	optionNone
	optionSome
)

// Option is a tri-state filter value.
//
// The zero value is Unspecified, meaning "do not filter". None means "filter
// for the absence of a value" (SQL IS NULL) and Some carries a concrete value.
type Option[T any] struct {
	state optionState
	value T
}

// Unspecified returns an option that applies no filter.
func Unspecified[T any]() Option[T] {
	return Option[T]{}
}

// None returns an option that matches absent values.
func None[T any]() Option[T] {
	return Option[T]{state: optionNone}
}

// Some returns an option holding v.
func Some[T any](v T) Option[T] {
	return Option[T]{state: optionSome, value: v}
}

// IsSpecified reports whether the option is None or Some.
func (o Option[T]) IsSpecified() bool {
	return o.state != optionUnspecified
}

// IsNone reports whether the option explicitly matches absent values.
func (o Option[T]) IsNone() bool {
	return o.state == optionNone
}

// Get returns the held value and whether the option is Some.
func (o Option[T]) Get() (T, bool) {
	return o.value, o.state == optionSome
}

// OrElse returns the held value, or fallback when the option is not Some.
func (o Option[T]) OrElse(fallback T) T {
	if o.state == optionSome {
		return o.value
	}
	return fallback
}

// String renders the option for logs and cache keys.
func (o Option[T]) String() string {
	switch o.state {
	case optionNone:
		return "none"
	case optionSome:
		return fmt.Sprintf("some(%v)", o.value)
	default:
		return "unspecified"
	}
}
