package interp

import (
	"math"
	"reflect"
	"strings"

	"github.com/l3aro/go-malt/pkg/operators"
)

// Arithmetic follows Python: ints stay ints except under true division, floor
// division and modulo round toward negative infinity, and bools count as ints.

func unsupported(op string, a, b any) error {
	return operators.Raise("TypeError", "unsupported operand type(s) for %s: '%s' and '%s'",
		op, operators.TypeName(a), operators.TypeName(b))
}

func undefinedOperand(vs ...any) error {
	for _, v := range vs {
		if u, ok := v.(operators.Undefined); ok {
			return u.Err()
		}
	}
	return nil
}

func ints(a, b any) (int64, int64, bool) {
	x, ok := operators.AsInt(a)
	if !ok {
		return 0, 0, false
	}
	y, ok := operators.AsInt(b)
	return x, y, ok
}

func floats(a, b any) (float64, float64, bool) {
	x, ok := operators.AsFloat(a)
	if !ok {
		return 0, 0, false
	}
	y, ok := operators.AsFloat(b)
	return x, y, ok
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int64) int64 {
	m := a % b
	if m != 0 && ((m < 0) != (b < 0)) {
		m += b
	}
	return m
}

func floatMod(a, b float64) float64 {
	m := math.Mod(a, b)
	if m != 0 && ((m < 0) != (b < 0)) {
		m += b
	}
	return m
}

func ipow(base, exp int64) int64 {
	out := int64(1)
	for exp > 0 {
		if exp&1 == 1 {
			out *= base
		}
		base *= base
		exp >>= 1
	}
	return out
}

func repeat(items []any, n int64) []any {
	if n <= 0 {
		return nil
	}
	out := make([]any, 0, len(items)*int(n))
	for range n {
		out = append(out, items...)
	}
	return out
}

func binop(op string, a, b any) (any, error) {
	if err := undefinedOperand(a, b); err != nil {
		return nil, err
	}
	if x, y, ok := ints(a, b); ok {
		return intOp(op, x, y, a, b)
	}
	if x, y, ok := floats(a, b); ok {
		return floatOp(op, x, y, a, b)
	}
	switch op {
	case "+":
		switch x := a.(type) {
		case string:
			if y, ok := b.(string); ok {
				return x + y, nil
			}
		case *operators.List:
			if y, ok := b.(*operators.List); ok {
				items := append(append([]any(nil), x.Items...), y.Items...)
				return &operators.List{Items: items}, nil
			}
		case operators.Tuple:
			if y, ok := b.(operators.Tuple); ok {
				return append(append(operators.Tuple(nil), x...), y...), nil
			}
		}
	case "*":
		if n, ok := operators.AsInt(b); ok {
			return repeatSeq(a, n, op, b)
		}
		if n, ok := operators.AsInt(a); ok {
			return repeatSeq(b, n, op, a)
		}
	case "%":
		if s, ok := a.(string); ok {
			return format(s, b)
		}
	}
	return nil, unsupported(op, a, b)
}

func repeatSeq(seq any, n int64, op string, other any) (any, error) {
	switch s := seq.(type) {
	case string:
		if n <= 0 {
			return "", nil
		}
		return strings.Repeat(s, int(n)), nil
	case *operators.List:
		return &operators.List{Items: repeat(s.Items, n)}, nil
	case operators.Tuple:
		return operators.Tuple(repeat(s, n)), nil
	}
	return nil, unsupported(op, seq, other)
}

func intOp(op string, x, y int64, a, b any) (any, error) {
	switch op {
	case "+":
		return x + y, nil
	case "-":
		return x - y, nil
	case "*":
		return x * y, nil
	case "/":
		if y == 0 {
			return nil, operators.Raise("ZeroDivisionError", "division by zero")
		}
		return float64(x) / float64(y), nil
	case "//":
		if y == 0 {
			return nil, operators.Raise("ZeroDivisionError", "integer division or modulo by zero")
		}
		return floorDiv(x, y), nil
	case "%":
		if y == 0 {
			return nil, operators.Raise("ZeroDivisionError", "integer division or modulo by zero")
		}
		return floorMod(x, y), nil
	case "**":
		if y < 0 {
			if x == 0 {
				return nil, operators.Raise("ZeroDivisionError", "0.0 cannot be raised to a negative power")
			}
			return math.Pow(float64(x), float64(y)), nil
		}
		return ipow(x, y), nil
	case "<<":
		if y < 0 {
			return nil, operators.Raise("ValueError", "negative shift count")
		}
		return x << uint(y), nil
	case ">>":
		if y < 0 {
			return nil, operators.Raise("ValueError", "negative shift count")
		}
		return x >> uint(y), nil
	case "&":
		if isBool(a) && isBool(b) {
			return x&y != 0, nil
		}
		return x & y, nil
	case "|":
		if isBool(a) && isBool(b) {
			return x|y != 0, nil
		}
		return x | y, nil
	case "^":
		if isBool(a) && isBool(b) {
			return x^y != 0, nil
		}
		return x ^ y, nil
	}
	return nil, unsupported(op, a, b)
}

func isBool(v any) bool {
	_, ok := v.(bool)
	return ok
}

func floatOp(op string, x, y float64, a, b any) (any, error) {
	switch op {
	case "+":
		return x + y, nil
	case "-":
		return x - y, nil
	case "*":
		return x * y, nil
	case "/":
		if y == 0 {
			return nil, operators.Raise("ZeroDivisionError", "float division by zero")
		}
		return x / y, nil
	case "//":
		if y == 0 {
			return nil, operators.Raise("ZeroDivisionError", "float floor division by zero")
		}
		return math.Floor(x / y), nil
	case "%":
		if y == 0 {
			return nil, operators.Raise("ZeroDivisionError", "float modulo")
		}
		return floatMod(x, y), nil
	case "**":
		if x == 0 && y < 0 {
			return nil, operators.Raise("ZeroDivisionError", "0.0 cannot be raised to a negative power")
		}
		return math.Pow(x, y), nil
	}
	return nil, unsupported(op, a, b)
}

// inplace applies an augmented assignment operator. Lists are extended in
// place for +=; everything else rebinds.
func inplace(op string, cur, rhs any) (any, error) {
	if l, ok := cur.(*operators.List); ok && op == "+" {
		if err := undefinedOperand(rhs); err != nil {
			return nil, err
		}
		items, err := operators.Collect(rhs)
		if err != nil {
			return nil, err
		}
		l.Items = append(l.Items, items...)
		return l, nil
	}
	return binop(op, cur, rhs)
}

func unary(op string, v any) (any, error) {
	if err := undefinedOperand(v); err != nil {
		return nil, err
	}
	switch op {
	case "not":
		ok, err := operators.Truth(v)
		return !ok, err
	case "-":
		if f, ok := v.(float64); ok {
			return -f, nil
		}
		if i, ok := operators.AsInt(v); ok {
			return -i, nil
		}
		if f, ok := operators.AsFloat(v); ok {
			return -f, nil
		}
	case "+":
		if f, ok := v.(float64); ok {
			return f, nil
		}
		if i, ok := operators.AsInt(v); ok {
			return i, nil
		}
		if f, ok := operators.AsFloat(v); ok {
			return f, nil
		}
	case "~":
		if i, ok := operators.AsInt(v); ok {
			return ^i, nil
		}
	}
	return nil, operators.Raise("TypeError", "bad operand type for unary %s: '%s'", op, operators.TypeName(v))
}

func compare(op string, a, b any) (bool, error) {
	switch op {
	case "==":
		return operators.Equal(a, b)
	case "!=":
		eq, err := operators.Equal(a, b)
		return !eq, err
	case "is":
		return identical(a, b), nil
	case "is not":
		return !identical(a, b), nil
	case "in":
		return contains(b, a)
	case "not in":
		ok, err := contains(b, a)
		return !ok, err
	}
	if err := undefinedOperand(a, b); err != nil {
		return false, err
	}
	c, err := order(op, a, b)
	if err != nil {
		return false, err
	}
	switch op {
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	case ">=":
		return c >= 0, nil
	}
	return false, operators.Raise("SyntaxError", "unknown comparison %s", op)
}

// order returns -1, 0 or 1 comparing a to b.
func order(op string, a, b any) (int, error) {
	if x, y, ok := ints(a, b); ok {
		return cmp3(x < y, x > y), nil
	}
	if x, y, ok := floats(a, b); ok {
		return cmp3(x < y, x > y), nil
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), nil
		}
	case operators.Tuple:
		if y, ok := b.(operators.Tuple); ok {
			return orderItems(op, x, y)
		}
	case *operators.List:
		if y, ok := b.(*operators.List); ok {
			return orderItems(op, x.Items, y.Items)
		}
	}
	return 0, operators.Raise("TypeError", "'%s' not supported between instances of '%s' and '%s'",
		op, operators.TypeName(a), operators.TypeName(b))
}

func orderItems(op string, a, b []any) (int, error) {
	for i := 0; i < len(a) && i < len(b); i++ {
		eq, err := operators.Equal(a[i], b[i])
		if err != nil {
			return 0, err
		}
		if !eq {
			return order(op, a[i], b[i])
		}
	}
	return cmp3(len(a) < len(b), len(a) > len(b)), nil
}

func cmp3(lt, gt bool) int {
	switch {
	case lt:
		return -1
	case gt:
		return 1
	}
	return 0
}

func identical(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

func contains(container, v any) (bool, error) {
	switch c := container.(type) {
	case string:
		s, ok := v.(string)
		if !ok {
			return false, operators.Raise("TypeError", "'in <string>' requires string as left operand, not %s", operators.TypeName(v))
		}
		return strings.Contains(c, s), nil
	case *operators.Dict:
		_, ok, err := c.Get(v)
		return ok, err
	case operators.Undefined:
		return false, c.Err()
	}
	found := false
	err := operators.Iterate(container, func(e any) (bool, error) {
		eq, err := operators.Equal(e, v)
		if err != nil {
			return false, err
		}
		found = eq
		return !eq, nil
	})
	if err != nil {
		return false, operators.Raise("TypeError", "argument of type '%s' is not iterable", operators.TypeName(container))
	}
	return found, nil
}

// format implements printf-style string formatting for %s, %r, %d, %i, %f
// and %%.
func format(s string, arg any) (any, error) {
	args := []any{arg}
	if t, ok := arg.(operators.Tuple); ok {
		args = t
	}
	var sb strings.Builder
	next := 0
	take := func() (any, error) {
		if next >= len(args) {
			return nil, operators.Raise("TypeError", "not enough arguments for format string")
		}
		v := args[next]
		next++
		return v, nil
	}
	for i := 0; i < len(s); i++ {
		if s[i] != '%' {
			sb.WriteByte(s[i])
			continue
		}
		i++
		if i >= len(s) {
			return nil, operators.Raise("ValueError", "incomplete format")
		}
		verb := s[i]
		if verb == '%' {
			sb.WriteByte('%')
			continue
		}
		v, err := take()
		if err != nil {
			return nil, err
		}
		switch verb {
		case 's':
			sb.WriteString(operators.Str(v))
		case 'r':
			sb.WriteString(operators.Repr(v))
		case 'd', 'i':
			n, err := operators.Int(v)
			if err != nil {
				return nil, operators.Raise("TypeError", "%%%c format: a real number is required, not %s", verb, operators.TypeName(v))
			}
			sb.WriteString(operators.Repr(n))
		case 'f':
			f, ok := operators.AsFloat(v)
			if !ok {
				return nil, operators.Raise("TypeError", "must be real number, not %s", operators.TypeName(v))
			}
			sb.WriteString(strconvFloat(f))
		default:
			return nil, operators.Raise("ValueError", "unsupported format character '%c'", verb)
		}
	}
	if next < len(args) {
		return nil, operators.Raise("TypeError", "not all arguments converted during string formatting")
	}
	return sb.String(), nil
}
