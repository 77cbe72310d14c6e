package operators

// And returns a if it is falsy, otherwise b(). b is only called when needed.
func (d *Dispatcher) And(a any, b Thunk) (any, error) {
	h := d.Registry().and.lookup(a, pyAnd)
	return h(d, a, b)
}

func pyAnd(_ *Dispatcher, a any, b Thunk) (any, error) {
	ok, err := Truth(a)
	if err != nil || !ok {
		return a, err
	}
	return b()
}

// Or returns a if it is truthy, otherwise b(). b is only called when needed.
func (d *Dispatcher) Or(a any, b Thunk) (any, error) {
	h := d.Registry().or.lookup(a, pyOr)
	return h(d, a, b)
}

func pyOr(_ *Dispatcher, a any, b Thunk) (any, error) {
	ok, err := Truth(a)
	if err != nil || ok {
		return a, err
	}
	return b()
}

// Not negates the truth value of a, dispatching on its type.
func (d *Dispatcher) Not(a any) (any, error) {
	h := d.Registry().not.lookup(a, pyNot)
	return h(d, a)
}

func pyNot(_ *Dispatcher, a any) (any, error) {
	ok, err := Truth(a)
	if err != nil {
		return nil, err
	}
	return !ok, nil
}

// Eq compares a and b, dispatching on the type of a.
func (d *Dispatcher) Eq(a, b any) (any, error) {
	h := d.Registry().eq.lookup(a, pyEq)
	return h(d, a, b)
}

func pyEq(_ *Dispatcher, a, b any) (any, error) {
	return Equal(a, b)
}

// NotEq is not_(eq(a, b)), so backends overriding either see it.
func (d *Dispatcher) NotEq(a, b any) (any, error) {
	eq, err := d.Eq(a, b)
	if err != nil {
		return nil, err
	}
	return d.Not(eq)
}
