package globals_test

import (
	"testing"

	"global-store/lib/handles"
	"global-store/lib/test_utils"
	"global-store/modules/globals"

	"github.com/stretchr/testify/assert"
)

func TestSetFetchDrop(t *testing.T) {
	s := globals.New(nil, nil)
	test_utils.RunPlugin(t, s)

	s.Set("x", uint64(42))

	res := globals.Fetch[uint64](s, "x")
	assert.True(t, res.IsOk())
	assert.Equal(t, uint64(42), res.Unwrap())

	upd := globals.Update(s, "x", func(v *uint64) {
		*v += 1
	})
	assert.True(t, upd.IsOk())
	assert.Equal(t, uint64(43), upd.Unwrap())

	res = globals.Fetch[uint64](s, "x")
	assert.Equal(t, uint64(43), res.Unwrap())

	assert.True(t, s.Drop("x"))

	res = globals.Fetch[uint64](s, "x")
	assert.True(t, res.IsErr())
	assert.ErrorIs(t, res.UnwrapErr(), globals.ErrNotFound)
	assert.ErrorContains(t, res.UnwrapErr(), "Failed to find key")

	assert.False(t, s.Drop("x"))
}

func TestStructValues(t *testing.T) {
	type foo struct {
		ID   uint64
		Name string
	}

	s := globals.New(nil, nil)
	test_utils.RunPlugin(t, s)

	s.Set("foo", foo{ID: 1, Name: "bar"})

	got := globals.Fetch[foo](s, "foo")
	assert.Equal(t, uint64(1), got.Unwrap().ID)
	assert.Equal(t, "bar", got.Unwrap().Name)

	globals.Update(s, "foo", func(f *foo) {
		f.ID += 1
		f.Name += "1"
	})

	got = globals.Fetch[foo](s, "foo")
	assert.Equal(t, uint64(2), got.Unwrap().ID)
	assert.Equal(t, "bar1", got.Unwrap().Name)
}

func TestWrongTypeFetch(t *testing.T) {
	s := globals.New(nil, nil)
	test_utils.RunPlugin(t, s)

	s.Set("n", uint64(42))

	res := globals.Fetch[string](s, "n")
	assert.True(t, res.IsErr())
	assert.ErrorIs(t, res.UnwrapErr(), handles.ErrWrongType)
}

func TestOverwriteReleasesPrevious(t *testing.T) {
	tbl := handles.NewTable()
	s := globals.New(tbl, nil)
	test_utils.RunPlugin(t, s)

	first := s.Set("k", "one")
	second := s.Set("k", "two")
	assert.NotEqual(t, first, second)
	assert.Equal(t, 1, tbl.Count())

	assert.Equal(t, "two", globals.Fetch[string](s, "k").Unwrap())
	assert.ErrorIs(t, handles.Get[string](tbl, first).UnwrapErr(), handles.ErrBadHandle)
}

type closable struct {
	closed *bool
}

func (c closable) Close() error {
	*c.closed = true
	return nil
}

func TestStopDrains(t *testing.T) {
	tbl := handles.NewTable()
	s := globals.New(tbl, nil)
	assert.NoError(t, s.Init())

	closed := false
	s.Set("conn", closable{closed: &closed})
	s.Set("n", uint64(1))
	assert.Equal(t, 2, s.Len())

	assert.NoError(t, s.Stop())
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, tbl.Count())
	assert.True(t, closed)
}

func TestFetchInto(t *testing.T) {
	type settings struct {
		Host string
		Port int
	}

	s := globals.New(nil, nil)
	test_utils.RunPlugin(t, s)

	s.Set("settings", map[string]any{
		"Host": "localhost",
		"Port": 8080,
	})

	var out settings
	assert.NoError(t, s.FetchInto("settings", &out))
	assert.Equal(t, settings{Host: "localhost", Port: 8080}, out)

	assert.ErrorIs(t, s.FetchInto("missing", &out), globals.ErrNotFound)
}

func TestPeekAndKeys(t *testing.T) {
	s := globals.New(nil, nil)
	test_utils.RunPlugin(t, s)

	assert.True(t, s.Peek("a").IsNone())

	h := s.Set("a", 1)
	s.Set("b", 2)

	peeked := s.Peek("a")
	assert.True(t, peeked.IsSome())
	assert.Equal(t, h, peeked.Unwrap())

	assert.ElementsMatch(t, []string{"a", "b"}, s.Keys())
	assert.Equal(t, 2, s.Len())
}

func TestSharedTable(t *testing.T) {
	// two stores over one table index independently but share storage
	tbl := handles.NewTable()
	s1 := globals.New(tbl, nil)
	s2 := globals.New(tbl, nil)
	test_utils.RunPlugin(t, s1)
	test_utils.RunPlugin(t, s2)

	s1.Set("k", "from s1")
	s2.Set("k", "from s2")

	assert.Equal(t, "from s1", globals.Fetch[string](s1, "k").Unwrap())
	assert.Equal(t, "from s2", globals.Fetch[string](s2, "k").Unwrap())
	assert.Equal(t, 2, tbl.Count())
}
