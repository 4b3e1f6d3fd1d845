package types

import "encoding/json"

// Opt is an option value with an explicit unset state, so "not given"
// never collides with "given as the zero value".
type Opt[T any] struct {
	value T
	set   bool
}

// Some returns a set option holding v
func Some[T any](v T) Opt[T] {
	return Opt[T]{value: v, set: true}
}

// None returns an unset option
func None[T any]() Opt[T] {
	return Opt[T]{}
}

// IsSet reports whether a value was provided
func (o Opt[T]) IsSet() bool {
	return o.set
}

// Get returns the value and whether it was set
func (o Opt[T]) Get() (T, bool) {
	return o.value, o.set
}

// OrElse returns the value, or def when unset
func (o Opt[T]) OrElse(def T) T {
	if o.set {
		return o.value
	}
	return def
}

// Or returns o when set, otherwise other
func (o Opt[T]) Or(other Opt[T]) Opt[T] {
	if o.set {
		return o
	}
	return other
}

// MarshalJSON encodes an unset option as null
func (o Opt[T]) MarshalJSON() ([]byte, error) {
	if !o.set {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// UnmarshalJSON marks the option set whenever a non-null value is present
func (o *Opt[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = Opt[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

// UnmarshalYAML lets presets be declared with plain YAML scalars and lists
func (o *Opt[T]) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var v T
	if err := unmarshal(&v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}
