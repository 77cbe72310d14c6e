package operators

import "reflect"

// Appender values support in-place append.
type Appender interface {
	Append(v any) error
}

// Popper values support in-place pop. i is Unset for the last element.
type Popper interface {
	Pop(i any) (any, error)
}

// NewList is list(iterable). Unset or nil yields an empty list.
func NewList(iterable any) (*List, error) {
	if iterable == nil || IsUnset(iterable) {
		return &List{}, nil
	}
	items, err := Collect(iterable)
	if err != nil {
		return nil, err
	}
	return &List{Items: items}, nil
}

// ListAppend appends x to target and returns the list to rebind. Lists and
// appenders are updated in place; Go slices are returned grown.
func ListAppend(target, x any) (any, error) {
	switch t := target.(type) {
	case *List:
		t.Items = append(t.Items, x)
		return t, nil
	case Undefined:
		return nil, t.Err()
	case Appender:
		return t, t.Append(x)
	}
	if target != nil {
		rv := reflect.ValueOf(target)
		if rv.Kind() == reflect.Slice {
			ev, err := elemValue(rv.Type().Elem(), x)
			if err != nil {
				return nil, err
			}
			return reflect.Append(rv, ev).Interface(), nil
		}
	}
	return nil, Raise("AttributeError", "'%s' object has no attribute 'append'", TypeName(target))
}

// ListPop removes the element at i (the last one when i is Unset) and returns
// the list to rebind along with the removed element.
func ListPop(target, i any) (any, any, error) {
	switch t := target.(type) {
	case *List:
		at, err := popIndex(len(t.Items), i)
		if err != nil {
			return nil, nil, err
		}
		v := t.Items[at]
		t.Items = append(t.Items[:at], t.Items[at+1:]...)
		return t, v, nil
	case Undefined:
		return nil, nil, t.Err()
	case Popper:
		v, err := t.Pop(i)
		return t, v, err
	}
	if target != nil {
		rv := reflect.ValueOf(target)
		if rv.Kind() == reflect.Slice {
			at, err := popIndex(rv.Len(), i)
			if err != nil {
				return nil, nil, err
			}
			v := rv.Index(at).Interface()
			out := reflect.MakeSlice(rv.Type(), 0, rv.Len()-1)
			out = reflect.AppendSlice(out, rv.Slice(0, at))
			out = reflect.AppendSlice(out, rv.Slice(at+1, rv.Len()))
			return out.Interface(), v, nil
		}
	}
	return nil, nil, Raise("AttributeError", "'%s' object has no attribute 'pop'", TypeName(target))
}

func popIndex(length int, i any) (int, error) {
	if length == 0 {
		return 0, Raise("IndexError", "pop from empty list")
	}
	if i == nil || IsUnset(i) {
		return length - 1, nil
	}
	n, ok := AsInt(i)
	if !ok {
		return 0, Raise("TypeError", "'%s' object cannot be interpreted as an integer", TypeName(i))
	}
	at := int(n)
	if at < 0 {
		at += length
	}
	if at < 0 || at >= length {
		return 0, Raise("IndexError", "pop index out of range")
	}
	return at, nil
}
