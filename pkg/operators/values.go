// Package operators is the runtime library rewritten code calls into (bound as
// ag__). Every operator has a default implementation with host semantics; a
// backend can take over individual operators for the runtime types it stages
// by registering handlers in a Registry.
package operators

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/l3aro/go-malt/pkg/printer"
)

type unset struct{}

func (unset) String() string { return "Unset" }

// Unset marks an omitted optional argument. It is distinct from None so a
// backend can tell "not given" from "given as None".
var Unset any = unset{}

// IsUnset reports whether v is the Unset marker.
func IsUnset(v any) bool {
	_, ok := v.(unset)
	return ok
}

// Undefined stands for a symbol that has no value yet. Any use other than
// reassignment fails.
type Undefined struct {
	Name string
}

func (u Undefined) String() string { return "Undefined(" + u.Name + ")" }

// Err is the error raised when u is used.
func (u Undefined) Err() *Exception {
	return Raise("UnboundLocalError", "local variable '%s' referenced before assignment", u.Name)
}

type undefinedReturn struct{}

// UndefinedReturnValue is the initial value of the return slot of a function
// whose returns were lowered. Retval maps it to None.
var UndefinedReturnValue any = undefinedReturn{}

// Retval returns v, or nil if the function never set a return value.
func Retval(v any) any {
	if _, ok := v.(undefinedReturn); ok {
		return nil
	}
	return v
}

// Tuple is an immutable sequence.
type Tuple []any

// List is a mutable sequence shared by reference.
type List struct {
	Items []any
}

// NewListOf returns a list holding items.
func NewListOf(items ...any) *List {
	return &List{Items: append([]any(nil), items...)}
}

// Dict is an insertion-ordered mapping. Keys must be comparable Go values.
type Dict struct {
	keys []any
	vals map[any]any
}

// NewDict returns an empty dict.
func NewDict() *Dict {
	return &Dict{vals: make(map[any]any)}
}

func dictKey(k any) (any, error) {
	switch v := k.(type) {
	case bool:
		if v {
			return int64(1), nil
		}
		return int64(0), nil
	case float64:
		if v == float64(int64(v)) {
			return int64(v), nil
		}
		return v, nil
	case Tuple, *List, *Dict:
		return nil, Raise("TypeError", "unhashable type: '%s'", TypeName(k))
	}
	if i, ok := AsInt(k); ok {
		return i, nil
	}
	if k != nil && !reflect.TypeOf(k).Comparable() {
		return nil, Raise("TypeError", "unhashable type: '%s'", TypeName(k))
	}
	return k, nil
}

// Get returns the value stored under k.
func (d *Dict) Get(k any) (any, bool, error) {
	key, err := dictKey(k)
	if err != nil {
		return nil, false, err
	}
	v, ok := d.vals[key]
	return v, ok, nil
}

// Set stores v under k, keeping the position of an existing key.
func (d *Dict) Set(k, v any) error {
	key, err := dictKey(k)
	if err != nil {
		return err
	}
	if _, ok := d.vals[key]; !ok {
		d.keys = append(d.keys, k)
	}
	d.vals[key] = v
	return nil
}

// Keys returns the keys in insertion order.
func (d *Dict) Keys() []any { return d.keys }

// Len returns the number of entries.
func (d *Dict) Len() int { return len(d.keys) }

// Exception is a host-level error carrying a Python exception type name.
type Exception struct {
	Type string
	Msg  string
}

func (e *Exception) Error() string {
	if e.Msg == "" {
		return e.Type
	}
	return e.Type + ": " + e.Msg
}

// Raise builds an exception of the given type.
func Raise(typ, format string, args ...any) *Exception {
	return &Exception{Type: typ, Msg: fmt.Sprintf(format, args...)}
}

// Reprer is implemented by values with their own printed form.
type Reprer interface {
	Repr() string
}

// TypeNamer is implemented by values that report their own type name.
type TypeNamer interface {
	TypeName() string
}

// TypeName returns the Python type name of v.
func TypeName(v any) string {
	switch v := v.(type) {
	case nil:
		return "NoneType"
	case bool:
		return "bool"
	case int64, int:
		return "int"
	case float64:
		return "float"
	case string:
		return "str"
	case Tuple:
		return "tuple"
	case *List:
		return "list"
	case *Dict:
		return "dict"
	case Range:
		return "range"
	case Undefined:
		return "Undefined"
	case *Exception:
		return v.Type
	case TypeNamer:
		return v.TypeName()
	}
	return fmt.Sprintf("%T", v)
}

// Str renders v the way print does.
func Str(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return Repr(v)
}

// Repr renders v the way repr does.
func Repr(v any) string {
	switch v := v.(type) {
	case nil:
		return "None"
	case bool:
		if v {
			return "True"
		}
		return "False"
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return printer.Float(v)
	case string:
		return printer.Quote(v)
	case Tuple:
		if len(v) == 1 {
			return "(" + Repr(v[0]) + ",)"
		}
		return "(" + joinRepr(v) + ")"
	case *List:
		return "[" + joinRepr(v.Items) + "]"
	case *Dict:
		parts := make([]string, 0, len(v.keys))
		for _, k := range v.keys {
			val, _, _ := v.Get(k)
			parts = append(parts, Repr(k)+": "+Repr(val))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case Reprer:
		return v.Repr()
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprint(v)
}

func joinRepr(items []any) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = Repr(it)
	}
	return strings.Join(parts, ", ")
}

// AsInt converts integer-like values (Go integer kinds and bool) to int64.
func AsInt(v any) (int64, bool) {
	switch v := v.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case nil:
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return int64(rv.Uint()), true
	}
	return 0, false
}

// AsFloat converts any numeric value to float64.
func AsFloat(v any) (float64, bool) {
	if f, ok := v.(float64); ok {
		return f, true
	}
	if i, ok := AsInt(v); ok {
		return float64(i), true
	}
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
