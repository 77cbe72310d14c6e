package operators

import (
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constIf(tag string, out *string) IfHandler {
	return func(d *Dispatcher, cond any, body, orelse func() error, st State, nouts int) error {
		*out = tag
		return nil
	}
}

func TestRegistryLastRegistrationWins(t *testing.T) {
	var got string
	reg := NewRegistryBuilder().
		IfStmt(reflect.TypeFor[symbolic](), constIf("first", &got)).
		IfStmt(reflect.TypeFor[symbolic](), constIf("second", &got)).
		Build()
	require.NoError(t, NewDispatcher(reg).IfStmt(symbolic{}, nil, nil, State{}, 0))
	assert.Equal(t, "second", got)
}

func TestRegistryExactTypeOnly(t *testing.T) {
	var got string
	reg := NewRegistryBuilder().
		IfStmt(reflect.TypeFor[symbolic](), constIf("staged", &got)).
		Build()
	d := NewDispatcher(reg)

	// A pointer to a registered type is a different type and takes the default path.
	ran := false
	require.NoError(t, d.IfStmt(&symbolic{}, func() error { ran = true; return nil }, nil, State{}, 0))
	assert.True(t, ran)
	assert.Empty(t, got)
}

func TestRegistryBuildSnapshots(t *testing.T) {
	b := NewRegistryBuilder()
	before := b.Build()
	b.GetItem(reflect.TypeFor[symbolic](), func(d *Dispatcher, target, key any, opts GetItemOpts) (any, error) {
		return opts.ElementType, nil
	})
	after := b.Build()

	assert.Empty(t, before.Types(OpGetItem))
	assert.Equal(t, []reflect.Type{reflect.TypeFor[symbolic]()}, after.Types(OpGetItem))

	v, err := NewDispatcher(after).GetItem(symbolic{}, int64(0), GetItemOpts{ElementType: "float32"})
	require.NoError(t, err)
	assert.Equal(t, "float32", v)
}

func TestZeroDispatcher(t *testing.T) {
	var d Dispatcher
	v, err := d.GetItem(Tuple{int64(1)}, int64(0), GetItemOpts{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
	assert.Empty(t, d.Registry().Types(OpForStmt))
}

func TestConcurrentLookups(t *testing.T) {
	reg := NewRegistryBuilder().
		Eq(reflect.TypeFor[symbolic](), func(d *Dispatcher, a, b any) (any, error) { return "staged", nil }).
		Build()
	d := NewDispatcher(reg)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var a any = int64(i)
			if i%2 == 0 {
				a = symbolic{}
			}
			if _, err := d.Eq(a, int64(i)); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
