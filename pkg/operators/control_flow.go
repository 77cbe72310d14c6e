package operators

// Control flow in functional form. Branch and loop bodies communicate through
// the enclosing scope; State exposes the affected symbols to backends that
// need to thread them explicitly.

// IfStmt runs body or orelse depending on cond. nouts is the number of
// leading state symbols used after the statement.
func (d *Dispatcher) IfStmt(cond any, body, orelse func() error, st State, nouts int) error {
	h := d.Registry().ifStmt.lookup(cond, pyIfStmt)
	return h(d, cond, body, orelse, st, nouts)
}

func pyIfStmt(_ *Dispatcher, cond any, body, orelse func() error, _ State, _ int) error {
	ok, err := Truth(cond)
	if err != nil {
		return err
	}
	if ok {
		return body()
	}
	return orelse()
}

// WhileStmt runs body while test holds. The test is evaluated once before
// dispatch; its first result selects the handler and is passed along so it is
// not evaluated again.
func (d *Dispatcher) WhileStmt(test Thunk, body func() error, st State, opts LoopOpts) error {
	first, err := test()
	if err != nil {
		return err
	}
	h := d.Registry().whileStmt.lookup(first, pyWhileStmt)
	return h(d, first, test, body, st, opts)
}

func pyWhileStmt(_ *Dispatcher, first any, test Thunk, body func() error, _ State, _ LoopOpts) error {
	cond := first
	for {
		ok, err := Truth(cond)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := body(); err != nil {
			return err
		}
		if cond, err = test(); err != nil {
			return err
		}
	}
}

// ForStmt calls body with each element of iter. A non-nil extraTest is
// checked before the first iteration and after each one; the loop stops as
// soon as it is false.
func (d *Dispatcher) ForStmt(iter any, extraTest Thunk, body func(any) error, st State, opts LoopOpts) error {
	h := d.Registry().forStmt.lookup(iter, pyForStmt)
	return h(d, iter, extraTest, body, st, opts)
}

func pyForStmt(_ *Dispatcher, iter any, extraTest Thunk, body func(any) error, _ State, _ LoopOpts) error {
	if extraTest == nil {
		return Iterate(iter, func(v any) (bool, error) {
			return true, body(v)
		})
	}
	guard := func() (bool, error) {
		v, err := extraTest()
		if err != nil {
			return false, err
		}
		return Truth(v)
	}
	ok, err := guard()
	if err != nil || !ok {
		return err
	}
	return Iterate(iter, func(v any) (bool, error) {
		if err := body(v); err != nil {
			return false, err
		}
		return guard()
	})
}

// IfExp evaluates one of two deferred branches.
func (d *Dispatcher) IfExp(cond any, ifTrue, ifFalse Thunk, repr string) (any, error) {
	h := d.Registry().ifExp.lookup(cond, pyIfExp)
	return h(d, cond, ifTrue, ifFalse, repr)
}

func pyIfExp(_ *Dispatcher, cond any, ifTrue, ifFalse Thunk, _ string) (any, error) {
	ok, err := Truth(cond)
	if err != nil {
		return nil, err
	}
	if ok {
		return ifTrue()
	}
	return ifFalse()
}

// GetItem returns target[key].
func (d *Dispatcher) GetItem(target, key any, opts GetItemOpts) (any, error) {
	h := d.Registry().getItem.lookup(target, pyGetItem)
	return h(d, target, key, opts)
}

func pyGetItem(_ *Dispatcher, target, key any, _ GetItemOpts) (any, error) {
	return Index(target, key)
}

// SetItem stores value at target[key] and returns the updated target, which
// the caller rebinds.
func (d *Dispatcher) SetItem(target, key, value any) (any, error) {
	h := d.Registry().setItem.lookup(target, pySetItem)
	return h(d, target, key, value)
}

func pySetItem(_ *Dispatcher, target, key, value any) (any, error) {
	return StoreIndex(target, key, value)
}
