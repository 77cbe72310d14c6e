package operators

import "errors"

// Ld loads a value that is known to be defined.
func Ld(v any) any { return v }

// Ldu loads a value that may not be defined yet. A failed lookup yields
// Undefined{name} instead of an error.
func Ldu(load Thunk, name string) (any, error) {
	v, err := load()
	if err == nil {
		return v, nil
	}
	var e *Exception
	if errors.As(err, &e) {
		switch e.Type {
		case "NameError", "UnboundLocalError", "AttributeError", "KeyError":
			return Undefined{Name: name}, nil
		}
	}
	return nil, err
}

// AssertStmt raises AssertionError when test is falsy. msg is evaluated only
// then, and may be nil.
func AssertStmt(test any, msg Thunk) error {
	ok, err := Truth(test)
	if err != nil || ok {
		return err
	}
	if msg == nil {
		return &Exception{Type: "AssertionError"}
	}
	m, err := msg()
	if err != nil {
		return err
	}
	if m == nil {
		return &Exception{Type: "AssertionError"}
	}
	return &Exception{Type: "AssertionError", Msg: Str(m)}
}
