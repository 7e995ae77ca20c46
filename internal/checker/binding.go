package checker

import (
	"fmt"
	"time"

	"github.com/aleister1102/filestatus/internal/prefs"
)

// Field identifies one of the bindable settings
type Field int

const (
	FieldEnabled Field = iota
	FieldExecutable
	FieldBackgroundEnabled
	FieldBackgroundDuration
	FieldRecursive
	fieldCount
)

// Kind is the primitive type a field is read from the store as
type Kind int

const (
	KindBool Kind = iota
	KindString
	KindLong
)

type binding struct {
	name string
	kind Kind
}

var bindings = [fieldCount]binding{
	FieldEnabled:            {name: "enabled", kind: KindBool},
	FieldExecutable:         {name: "executable", kind: KindString},
	FieldBackgroundEnabled:  {name: "background_enabled", kind: KindBool},
	FieldBackgroundDuration: {name: "background_duration", kind: KindLong},
	FieldRecursive:          {name: "recursive", kind: KindBool},
}

func (f Field) String() string {
	if f < 0 || f >= fieldCount {
		return fmt.Sprintf("field(%d)", int(f))
	}
	return bindings[f].name
}

// Kind returns the primitive type the field is stored as
func (f Field) Kind() Kind {
	return bindings[f].kind
}

// Key returns the preference key bound to f, or "" when unbound
func (k PrefKeys) Key(f Field) string {
	switch f {
	case FieldEnabled:
		return k.Enabled
	case FieldExecutable:
		return k.Executable
	case FieldBackgroundEnabled:
		return k.BackgroundEnabled
	case FieldBackgroundDuration:
		return k.BackgroundDuration
	case FieldRecursive:
		return k.Recursive
	default:
		return ""
	}
}

// fieldValue holds a coerced preference value for one field
type fieldValue struct {
	b   bool
	s   string
	dur time.Duration
}

// readField reads key from store as f's kind. Durations are stored in minutes.
func readField(store prefs.Store, f Field, key string) (fieldValue, error) {
	var v fieldValue
	var err error

	switch f.Kind() {
	case KindBool:
		v.b, err = store.GetBool(key)
	case KindString:
		v.s, err = store.GetString(key)
	case KindLong:
		var n int64
		n, err = store.GetLong(key)
		if f == FieldBackgroundDuration {
			v.dur = time.Duration(n) * time.Minute
		}
	}
	return v, err
}

// defaultField returns the value f has in defaults
func defaultField(defaults Settings, f Field) fieldValue {
	switch f {
	case FieldEnabled:
		return fieldValue{b: defaults.Enabled}
	case FieldExecutable:
		return fieldValue{s: defaults.Executable}
	case FieldBackgroundEnabled:
		return fieldValue{b: defaults.BackgroundEnabled}
	case FieldBackgroundDuration:
		return fieldValue{dur: defaults.BackgroundDuration}
	case FieldRecursive:
		return fieldValue{b: defaults.Recursive}
	default:
		return fieldValue{}
	}
}

// applyField writes v into s and reports whether the field changed
func applyField(s *Settings, f Field, v fieldValue) bool {
	switch f {
	case FieldEnabled:
		changed := s.Enabled != v.b
		s.Enabled = v.b
		return changed
	case FieldExecutable:
		changed := s.Executable != v.s
		s.Executable = v.s
		return changed
	case FieldBackgroundEnabled:
		changed := s.BackgroundEnabled != v.b
		s.BackgroundEnabled = v.b
		return changed
	case FieldBackgroundDuration:
		changed := s.BackgroundDuration != v.dur
		s.BackgroundDuration = v.dur
		return changed
	case FieldRecursive:
		changed := s.Recursive != v.b
		s.Recursive = v.b
		return changed
	default:
		return false
	}
}
