package gosource

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncer(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	got := make(chan []string, 4)
	d.SetCallback(func(files []string) { got <- files })

	d.Add("b.go")
	d.Add("a.go")
	d.Add("b.go")

	select {
	case files := <-got:
		assert.Equal(t, []string{"a.go", "b.go"}, files)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "debouncer never fired")
	}

	d.Add("c.go")
	d.Stop()
	d.Add("d.go")
	select {
	case files := <-got:
		assert.Failf(t, "unexpected flush after stop", "%v", files)
	case <-time.After(100 * time.Millisecond):
	}
}
