package operators

import (
	"cmp"
	"reflect"
	"slices"
	"unicode/utf8"
)

// Host semantics. Runtime values either are one of the built-in value types
// (Tuple, *List, *Dict, Range, scalars), implement one of the interfaces below,
// or are plain Go slices, arrays and maps, handled through reflection.

// Iterable values produce elements in order until yield returns false.
type Iterable interface {
	Iterate(yield func(v any) (bool, error)) error
}

// Truther values define their own truth value.
type Truther interface {
	Truth() (bool, error)
}

// Lener values have a length.
type Lener interface {
	Len() int
}

// ItemGetter values support x[key].
type ItemGetter interface {
	GetItem(key any) (any, error)
}

// ItemSetter values support x[key] = value in place.
type ItemSetter interface {
	SetItem(key, value any) error
}

// Equaler values define equality.
type Equaler interface {
	Equal(other any) (bool, error)
}

// Truth returns the truth value of v.
func Truth(v any) (bool, error) {
	switch v := v.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case int:
		return v != 0, nil
	case float64:
		return v != 0, nil
	case string:
		return v != "", nil
	case Tuple:
		return len(v) > 0, nil
	case *List:
		return len(v.Items) > 0, nil
	case *Dict:
		return v.Len() > 0, nil
	case Undefined:
		return false, v.Err()
	case Truther:
		return v.Truth()
	case Lener:
		return v.Len() > 0, nil
	}
	if f, ok := AsFloat(v); ok {
		return f != 0, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array, reflect.Chan:
		return rv.Len() > 0, nil
	case reflect.Pointer, reflect.Interface, reflect.Func:
		return !rv.IsNil(), nil
	}
	return true, nil
}

// Iterate calls fn for each element of v until fn returns false.
func Iterate(v any, fn func(any) (bool, error)) error {
	switch v := v.(type) {
	case Tuple:
		return iterSlice(v, fn)
	case *List:
		// Re-read the length each step so appends during iteration are seen.
		for i := 0; i < len(v.Items); i++ {
			if more, err := fn(v.Items[i]); err != nil || !more {
				return err
			}
		}
		return nil
	case *Dict:
		return iterSlice(slices.Clone(v.keys), fn)
	case string:
		for _, r := range v {
			if more, err := fn(string(r)); err != nil || !more {
				return err
			}
		}
		return nil
	case Undefined:
		return v.Err()
	case Iterable:
		return v.Iterate(fn)
	}
	if v == nil {
		return notIterable(v)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if more, err := fn(rv.Index(i).Interface()); err != nil || !more {
				return err
			}
		}
		return nil
	case reflect.Map:
		keys := rv.MapKeys()
		slices.SortFunc(keys, func(a, b reflect.Value) int {
			return cmp.Compare(Repr(a.Interface()), Repr(b.Interface()))
		})
		for _, k := range keys {
			if more, err := fn(k.Interface()); err != nil || !more {
				return err
			}
		}
		return nil
	}
	return notIterable(v)
}

func iterSlice(items []any, fn func(any) (bool, error)) error {
	for _, it := range items {
		if more, err := fn(it); err != nil || !more {
			return err
		}
	}
	return nil
}

func notIterable(v any) error {
	return Raise("TypeError", "'%s' object is not iterable", TypeName(v))
}

// Collect drains an iterable into a slice.
func Collect(v any) ([]any, error) {
	var out []any
	err := Iterate(v, func(e any) (bool, error) {
		out = append(out, e)
		return true, nil
	})
	return out, err
}

// Length returns len(v).
func Length(v any) (int, error) {
	switch v := v.(type) {
	case string:
		return utf8.RuneCountInString(v), nil
	case Tuple:
		return len(v), nil
	case *List:
		return len(v.Items), nil
	case *Dict:
		return v.Len(), nil
	case Undefined:
		return 0, v.Err()
	case Lener:
		return v.Len(), nil
	}
	if v != nil {
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Slice, reflect.Array, reflect.Map, reflect.Chan:
			return rv.Len(), nil
		}
	}
	return 0, Raise("TypeError", "object of type '%s' has no len()", TypeName(v))
}

// Equal reports a == b.
func Equal(a, b any) (bool, error) {
	if u, ok := a.(Undefined); ok {
		return false, u.Err()
	}
	if u, ok := b.(Undefined); ok {
		return false, u.Err()
	}
	if e, ok := a.(Equaler); ok {
		return e.Equal(b)
	}
	if e, ok := b.(Equaler); ok {
		return e.Equal(a)
	}
	if fa, ok := AsFloat(a); ok {
		if fb, ok := AsFloat(b); ok {
			ia, aInt := AsInt(a)
			ib, bInt := AsInt(b)
			if aInt && bInt {
				return ia == ib, nil
			}
			return fa == fb, nil
		}
		return false, nil
	}
	switch a := a.(type) {
	case Tuple:
		bt, ok := b.(Tuple)
		if !ok {
			return false, nil
		}
		return equalItems(a, bt)
	case *List:
		bl, ok := b.(*List)
		if !ok {
			return false, nil
		}
		return equalItems(a.Items, bl.Items)
	case *Dict:
		bd, ok := b.(*Dict)
		if !ok || a.Len() != bd.Len() {
			return false, nil
		}
		for _, k := range a.keys {
			av, _, _ := a.Get(k)
			bv, found, err := bd.Get(k)
			if err != nil || !found {
				return false, err
			}
			if eq, err := Equal(av, bv); err != nil || !eq {
				return false, err
			}
		}
		return true, nil
	}
	if a == nil || b == nil {
		return a == nil && b == nil, nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false, nil
	}
	if ta.Comparable() {
		return a == b, nil
	}
	return reflect.DeepEqual(a, b), nil
}

func equalItems(a, b []any) (bool, error) {
	if len(a) != len(b) {
		return false, nil
	}
	for i := range a {
		if eq, err := Equal(a[i], b[i]); err != nil || !eq {
			return false, err
		}
	}
	return true, nil
}
