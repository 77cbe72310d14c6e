package operators

import (
	"reflect"
	"slices"
)

// SliceKey is the index of a slicing subscript. Absent bounds hold Unset.
type SliceKey struct {
	Lower, Upper, Step any
}

// NewSlice builds a slice key, keeping which bounds were given.
func NewSlice(lower, upper, step any) SliceKey {
	return SliceKey{Lower: lower, Upper: upper, Step: step}
}

func (s SliceKey) Repr() string {
	part := func(v any) string {
		if IsUnset(v) {
			return "Unset"
		}
		return Repr(v)
	}
	return "slice(" + part(s.Lower) + ", " + part(s.Upper) + ", " + part(s.Step) + ")"
}

func bound(v any) (int64, bool, error) {
	if v == nil || IsUnset(v) {
		return 0, false, nil
	}
	i, ok := AsInt(v)
	if !ok {
		return 0, false, Raise("TypeError", "slice indices must be integers or None")
	}
	return i, true, nil
}

// Indices resolves the key against a sequence of the given length, returning
// start, stop and step the way slice.indices does.
func (s SliceKey) Indices(length int) (start, stop, step int, err error) {
	st, hasStep, err := bound(s.Step)
	if err != nil {
		return 0, 0, 0, err
	}
	step = 1
	if hasStep {
		if st == 0 {
			return 0, 0, 0, Raise("ValueError", "slice step cannot be zero")
		}
		step = int(st)
	}
	lowerDefault, upperDefault := 0, length
	if step < 0 {
		lowerDefault, upperDefault = length-1, -1
	}
	clamp := func(v any, def int) (int, error) {
		i, ok, err := bound(v)
		if err != nil || !ok {
			return def, err
		}
		n := int(i)
		if n < 0 {
			n += length
			if n < 0 {
				if step < 0 {
					return -1, nil
				}
				return 0, nil
			}
		}
		if n >= length {
			if step < 0 {
				return length - 1, nil
			}
			return length, nil
		}
		return n, nil
	}
	if start, err = clamp(s.Lower, lowerDefault); err != nil {
		return 0, 0, 0, err
	}
	if stop, err = clamp(s.Upper, upperDefault); err != nil {
		return 0, 0, 0, err
	}
	return start, stop, step, nil
}

// positions lists the indices a slice selects.
func (s SliceKey) positions(length int) ([]int, error) {
	start, stop, step, err := s.Indices(length)
	if err != nil {
		return nil, err
	}
	var out []int
	if step > 0 {
		for i := start; i < stop; i += step {
			out = append(out, i)
		}
	} else {
		for i := start; i > stop; i += step {
			out = append(out, i)
		}
	}
	return out, nil
}

func index(key any, length int, what string) (int, error) {
	i, ok := AsInt(key)
	if !ok {
		return 0, Raise("TypeError", "%s indices must be integers or slices, not %s", what, TypeName(key))
	}
	n := int(i)
	if n < 0 {
		n += length
	}
	if n < 0 || n >= length {
		return 0, Raise("IndexError", "%s index out of range", what)
	}
	return n, nil
}

func pick(items []any, key SliceKey) ([]any, error) {
	pos, err := key.positions(len(items))
	if err != nil {
		return nil, err
	}
	out := make([]any, len(pos))
	for i, p := range pos {
		out[i] = items[p]
	}
	return out, nil
}

// GetItemOpts carries hints for subscript reads.
type GetItemOpts struct {
	// ElementType is the declared element type of the target, if any.
	ElementType string
}

// Index returns target[key].
func Index(target, key any) (any, error) {
	sk, isSlice := key.(SliceKey)
	switch t := target.(type) {
	case Tuple:
		if isSlice {
			items, err := pick(t, sk)
			return Tuple(items), err
		}
		i, err := index(key, len(t), "tuple")
		if err != nil {
			return nil, err
		}
		return t[i], nil
	case *List:
		if isSlice {
			items, err := pick(t.Items, sk)
			return &List{Items: items}, err
		}
		i, err := index(key, len(t.Items), "list")
		if err != nil {
			return nil, err
		}
		return t.Items[i], nil
	case string:
		runes := []rune(t)
		if isSlice {
			pos, err := sk.positions(len(runes))
			if err != nil {
				return nil, err
			}
			out := make([]rune, len(pos))
			for i, p := range pos {
				out[i] = runes[p]
			}
			return string(out), nil
		}
		i, err := index(key, len(runes), "string")
		if err != nil {
			return nil, err
		}
		return string(runes[i]), nil
	case *Dict:
		v, ok, err := t.Get(key)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, Raise("KeyError", "%s", Repr(key))
		}
		return v, nil
	case Undefined:
		return nil, t.Err()
	case ItemGetter:
		return t.GetItem(key)
	}
	if target == nil {
		return nil, notSubscriptable(target)
	}
	rv := reflect.ValueOf(target)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if isSlice {
			pos, err := sk.positions(rv.Len())
			if err != nil {
				return nil, err
			}
			out := reflect.MakeSlice(reflect.SliceOf(rv.Type().Elem()), 0, len(pos))
			for _, p := range pos {
				out = reflect.Append(out, rv.Index(p))
			}
			return out.Interface(), nil
		}
		i, err := index(key, rv.Len(), "list")
		if err != nil {
			return nil, err
		}
		return rv.Index(i).Interface(), nil
	case reflect.Map:
		k, err := mapKey(rv, key)
		if err != nil {
			return nil, err
		}
		v := rv.MapIndex(k)
		if !v.IsValid() {
			return nil, Raise("KeyError", "%s", Repr(key))
		}
		return v.Interface(), nil
	}
	return nil, notSubscriptable(target)
}

func notSubscriptable(v any) error {
	return Raise("TypeError", "'%s' object is not subscriptable", TypeName(v))
}

func mapKey(m reflect.Value, key any) (reflect.Value, error) {
	kt := m.Type().Key()
	if key == nil {
		return reflect.Zero(kt), nil
	}
	kv := reflect.ValueOf(key)
	if kv.Type().AssignableTo(kt) {
		return kv, nil
	}
	if kv.Type().ConvertibleTo(kt) && kv.Kind() != reflect.String && kt.Kind() != reflect.String {
		return kv.Convert(kt), nil
	}
	return reflect.Value{}, Raise("KeyError", "%s", Repr(key))
}

// StoreIndex performs target[key] = value. It returns the target, or a new
// value when the target cannot be updated in place (Go slices assigned a
// slice of a different length).
func StoreIndex(target, key, value any) (any, error) {
	sk, isSlice := key.(SliceKey)
	switch t := target.(type) {
	case *List:
		if isSlice {
			items, err := assignSlice(t.Items, sk, value)
			if err != nil {
				return nil, err
			}
			t.Items = items
			return t, nil
		}
		i, err := index(key, len(t.Items), "list assignment")
		if err != nil {
			return nil, err
		}
		t.Items[i] = value
		return t, nil
	case *Dict:
		return t, t.Set(key, value)
	case Undefined:
		return nil, t.Err()
	case ItemSetter:
		return t, t.SetItem(key, value)
	case Tuple, string:
		return nil, Raise("TypeError", "'%s' object does not support item assignment", TypeName(target))
	}
	if target == nil {
		return nil, Raise("TypeError", "'NoneType' object does not support item assignment")
	}
	rv := reflect.ValueOf(target)
	switch rv.Kind() {
	case reflect.Slice:
		if isSlice {
			items := make([]any, rv.Len())
			for i := range items {
				items[i] = rv.Index(i).Interface()
			}
			updated, err := assignSlice(items, sk, value)
			if err != nil {
				return nil, err
			}
			out := reflect.MakeSlice(rv.Type(), 0, len(updated))
			for _, it := range updated {
				ev, err := elemValue(rv.Type().Elem(), it)
				if err != nil {
					return nil, err
				}
				out = reflect.Append(out, ev)
			}
			return out.Interface(), nil
		}
		i, err := index(key, rv.Len(), "list assignment")
		if err != nil {
			return nil, err
		}
		ev, err := elemValue(rv.Type().Elem(), value)
		if err != nil {
			return nil, err
		}
		rv.Index(i).Set(ev)
		return target, nil
	case reflect.Map:
		k, err := mapKey(rv, key)
		if err != nil {
			return nil, err
		}
		ev, err := elemValue(rv.Type().Elem(), value)
		if err != nil {
			return nil, err
		}
		rv.SetMapIndex(k, ev)
		return target, nil
	}
	return nil, Raise("TypeError", "'%s' object does not support item assignment", TypeName(target))
}

func elemValue(t reflect.Type, v any) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	if rv.Type().ConvertibleTo(t) && rv.Kind() != reflect.String && t.Kind() != reflect.String {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, Raise("TypeError", "cannot store %s in a %s container", TypeName(v), t)
}

func assignSlice(items []any, key SliceKey, value any) ([]any, error) {
	repl, err := Collect(value)
	if err != nil {
		return nil, Raise("TypeError", "can only assign an iterable")
	}
	start, stop, step, err := key.Indices(len(items))
	if err != nil {
		return nil, err
	}
	if step == 1 {
		if stop < start {
			stop = start
		}
		out := slices.Clone(items[:start])
		out = append(out, repl...)
		return append(out, items[stop:]...), nil
	}
	pos, err := key.positions(len(items))
	if err != nil {
		return nil, err
	}
	if len(pos) != len(repl) {
		return nil, Raise("ValueError", "attempt to assign sequence of size %d to extended slice of size %d", len(repl), len(pos))
	}
	out := slices.Clone(items)
	for i, p := range pos {
		out[p] = repl[i]
	}
	return out, nil
}
