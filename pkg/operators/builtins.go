package operators

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Range is the lazy integer sequence built by range().
type Range struct {
	Start, Stop, Step int64
}

// NewRange accepts one to three integer arguments like range().
func NewRange(args ...any) (Range, error) {
	ints := make([]int64, len(args))
	for i, a := range args {
		v, ok := AsInt(a)
		if !ok {
			return Range{}, Raise("TypeError", "'%s' object cannot be interpreted as an integer", TypeName(a))
		}
		ints[i] = v
	}
	switch len(ints) {
	case 1:
		return Range{Stop: ints[0], Step: 1}, nil
	case 2:
		return Range{Start: ints[0], Stop: ints[1], Step: 1}, nil
	case 3:
		if ints[2] == 0 {
			return Range{}, Raise("ValueError", "range() arg 3 must not be zero")
		}
		return Range{Start: ints[0], Stop: ints[1], Step: ints[2]}, nil
	}
	return Range{}, Raise("TypeError", "range expected 1 to 3 arguments, got %d", len(args))
}

func (r Range) Len() int {
	var n int64
	switch {
	case r.Step > 0 && r.Start < r.Stop:
		n = (r.Stop - r.Start + r.Step - 1) / r.Step
	case r.Step < 0 && r.Start > r.Stop:
		n = (r.Start - r.Stop - r.Step - 1) / -r.Step
	}
	return int(n)
}

func (r Range) Iterate(yield func(any) (bool, error)) error {
	n := r.Len()
	for i := 0; i < n; i++ {
		if more, err := yield(r.Start + int64(i)*r.Step); err != nil || !more {
			return err
		}
	}
	return nil
}

func (r Range) GetItem(key any) (any, error) {
	if sk, ok := key.(SliceKey); ok {
		start, stop, step, err := sk.Indices(r.Len())
		if err != nil {
			return nil, err
		}
		return Range{
			Start: r.Start + int64(start)*r.Step,
			Stop:  r.Start + int64(stop)*r.Step,
			Step:  r.Step * int64(step),
		}, nil
	}
	i, err := index(key, r.Len(), "range object")
	if err != nil {
		return nil, err
	}
	return r.Start + int64(i)*r.Step, nil
}

func (r Range) Equal(other any) (bool, error) {
	o, ok := other.(Range)
	if !ok {
		return false, nil
	}
	n := r.Len()
	if n != o.Len() {
		return false, nil
	}
	return n == 0 || r.Start == o.Start && (n == 1 || r.Step == o.Step), nil
}

func (r Range) Repr() string {
	if r.Step == 1 {
		return fmt.Sprintf("range(%d, %d)", r.Start, r.Stop)
	}
	return fmt.Sprintf("range(%d, %d, %d)", r.Start, r.Stop, r.Step)
}

// Len is len().
func Len(v any) (any, error) {
	n, err := Length(v)
	return int64(n), err
}

// Print writes the arguments separated by spaces, followed by a newline.
func Print(w io.Writer, args ...any) error {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = Str(a)
	}
	_, err := io.WriteString(w, strings.Join(parts, " ")+"\n")
	return err
}

// Int is int().
func Int(v any) (any, error) {
	switch v := v.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, Raise("ValueError", "cannot convert float %s to integer", Repr(v))
		}
		return int64(v), nil
	case string:
		i, err := strconv.ParseInt(strings.ReplaceAll(strings.TrimSpace(v), "_", ""), 10, 64)
		if err != nil {
			return nil, Raise("ValueError", "invalid literal for int() with base 10: %s", Repr(v))
		}
		return i, nil
	}
	if i, ok := AsInt(v); ok {
		return i, nil
	}
	return nil, Raise("TypeError", "int() argument must be a string or a number, not '%s'", TypeName(v))
}

// Float is float().
func Float(v any) (any, error) {
	if s, ok := v.(string); ok {
		t := strings.ToLower(strings.TrimSpace(s))
		switch strings.TrimLeft(t, "+-") {
		case "inf", "infinity":
			if strings.HasPrefix(t, "-") {
				return math.Inf(-1), nil
			}
			return math.Inf(1), nil
		case "nan":
			return math.NaN(), nil
		}
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return nil, Raise("ValueError", "could not convert string to float: %s", Repr(s))
		}
		return f, nil
	}
	if f, ok := AsFloat(v); ok {
		return f, nil
	}
	return nil, Raise("TypeError", "float() argument must be a string or a number, not '%s'", TypeName(v))
}

// Abs is abs().
func Abs(v any) (any, error) {
	switch v := v.(type) {
	case float64:
		return math.Abs(v), nil
	case bool:
		if v {
			return int64(1), nil
		}
		return int64(0), nil
	}
	if i, ok := AsInt(v); ok {
		if i < 0 {
			return -i, nil
		}
		return i, nil
	}
	if f, ok := AsFloat(v); ok {
		return math.Abs(f), nil
	}
	return nil, Raise("TypeError", "bad operand type for abs(): '%s'", TypeName(v))
}

// Enumeration is the iterable built by enumerate().
type Enumeration struct {
	src   any
	start int64
}

// Enumerate is enumerate(iterable, start).
func Enumerate(v any, start any) (any, error) {
	s := int64(0)
	if start != nil && !IsUnset(start) {
		i, ok := AsInt(start)
		if !ok {
			return nil, Raise("TypeError", "'%s' object cannot be interpreted as an integer", TypeName(start))
		}
		s = i
	}
	if _, err := Length(v); err != nil {
		if _, ok := v.(Iterable); !ok {
			return nil, notIterable(v)
		}
	}
	return Enumeration{src: v, start: s}, nil
}

func (e Enumeration) Iterate(yield func(any) (bool, error)) error {
	i := e.start
	return Iterate(e.src, func(v any) (bool, error) {
		t := Tuple{i, v}
		i++
		return yield(t)
	})
}

func (e Enumeration) Repr() string { return "<enumerate object>" }
