package validation

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type account struct {
	Name   string
	Parent *account
}

type clock struct{ now string }

func init() {
	Register(func(v *Validator, a *account) Result {
		var res Result
		if len(a.Name) == 0 {
			res.Add(Fail("%s should not be empty", "Name"))
		}
		res.Merge(v.Nested(a.Parent))
		return res
	})
}

func TestResult(t *testing.T) {
	var r Result
	assert.True(t, r.Valid())
	assert.NoError(t, r.Err())
	assert.Nil(t, r.Failures())

	r.Add(Fail("first"))
	var other Result
	other.Add(Fail("second %d", 2))
	r.Merge(other)

	require.False(t, r.Valid())
	assert.Equal(t, []Failure{{Message: "first"}, {Message: "second 2"}}, r.Failures())
	err := r.Err()
	assert.ErrorIs(t, err, ErrInvalid)
	assert.EqualError(t, err, "2 validation failures: first; second 2")
	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Failures, 2)
}

func TestFailed(t *testing.T) {
	cause := errors.New("boom")
	r := Failed(cause)
	require.Len(t, r.Failures(), 1)
	assert.Equal(t, "boom", r.Failures()[0].Message)
	assert.ErrorIs(t, r.Failures()[0], cause)
}

func TestResolve(t *testing.T) {
	var svcs Services
	Provide(&svcs, &clock{now: "noon"})
	v := New(&svcs)

	c, err := Resolve[*clock](v)
	require.NoError(t, err)
	assert.Equal(t, "noon", c.now)

	var dst *clock
	require.NoError(t, ResolveInto(v, &dst))
	assert.Same(t, c, dst)

	_, err = Resolve[string](v)
	assert.ErrorIs(t, err, ErrServiceNotFound)

	_, err = Resolve[*clock](New(nil))
	assert.ErrorIs(t, err, ErrServiceNotFound)
}

func TestValidate_DispatchesByType(t *testing.T) {
	v := New(nil)

	res := v.Validate(&account{})
	assert.Equal(t, []Failure{{Message: "Name should not be empty"}}, res.Failures())

	// values are validated through a copy by the pointer registration
	res = v.Validate(account{Name: "ok"})
	assert.True(t, res.Valid())

	// nothing registered
	assert.True(t, v.Validate(42).Valid())
	assert.True(t, v.Validate(nil).Valid())
	assert.True(t, v.Validate((*account)(nil)).Valid())
}

func TestNested_Cycle(t *testing.T) {
	a := &account{Name: "a"}
	b := &account{Parent: a}
	a.Parent = b

	res := New(nil).Validate(a)
	// b fails once; the walk stops when it gets back to a
	assert.Equal(t, []Failure{{Message: "Name should not be empty"}}, res.Failures())
}

func TestNested_MaxDepth(t *testing.T) {
	var head *account
	for i := 0; i < 10; i++ {
		head = &account{Name: "x", Parent: head}
	}
	res := New(nil, WithMaxDepth(3)).Validate(head)
	require.Len(t, res.Failures(), 1)
	assert.ErrorIs(t, res.Failures()[0], ErrMaxDepth)

	assert.True(t, New(nil, WithMaxDepth(10)).Validate(head).Valid())
}

func TestRegistered(t *testing.T) {
	assert.True(t, Registered(reflect.TypeOf(&account{})))
	assert.True(t, Registered(reflect.TypeOf(account{})))
	assert.False(t, Registered(reflect.TypeOf(clock{})))
}

func TestMatches(t *testing.T) {
	type email string
	assert.True(t, Matches("bob@example.com", `^[^@]+@[^@]+$`))
	assert.True(t, Matches(email("a@b"), `@`))
	assert.False(t, Matches("nope", `^[^@]+@[^@]+$`))
	assert.False(t, Matches("anything", `(`))
	// cached invalid pattern stays invalid
	assert.False(t, Matches("anything", `(`))
}
