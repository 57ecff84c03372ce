package circuit

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewBreakerStartsClosed(t *testing.T) {
	b := New("dedup-engine")
	assert.False(t, b.IsOpen())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "dedup-engine", b.Name())
}

// Each step is "f" (failure) or "s" (success); open lists IsOpen after it.
func TestBreakerTransitions(t *testing.T) {
	tests := []struct {
		name  string
		opts  []Option
		steps string
		open  []bool
	}{
		{
			name:  "opens on the third consecutive failure",
			opts:  []Option{WithFailureThreshold(3)},
			steps: "fff",
			open:  []bool{false, false, true},
		},
		{
			name:  "success resets the failure streak",
			opts:  []Option{WithFailureThreshold(3)},
			steps: "ffsfff",
			open:  []bool{false, false, false, false, false, true},
		},
		{
			name:  "closes after the success threshold",
			opts:  []Option{WithFailureThreshold(1), WithSuccessThreshold(2)},
			steps: "fss",
			open:  []bool{true, true, false},
		},
		{
			name:  "failure while open restarts the success count",
			opts:  []Option{WithFailureThreshold(1), WithSuccessThreshold(3)},
			steps: "fssfsss",
			open:  []bool{true, true, true, true, true, true, false},
		},
		{
			name:  "non-positive thresholds are ignored",
			opts:  []Option{WithFailureThreshold(0), WithFailureThreshold(2), WithSuccessThreshold(-1)},
			steps: "ffs",
			open:  []bool{false, true, true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("dedup-engine", tt.opts...)
			for i, step := range tt.steps {
				if step == 'f' {
					b.RecordFailure()
				} else {
					b.RecordSuccess()
				}
				assert.Equal(t, tt.open[i], b.IsOpen(), "after step %d (%c)", i, step)
			}
		})
	}
}

func TestStateChangesAreReportedOnce(t *testing.T) {
	b := New("dedup-engine", WithFailureThreshold(1), WithSuccessThreshold(1))

	useFallback, change := b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)

	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback)
	assert.False(t, change.Opened)

	usePrimary, change := b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)

	usePrimary, change = b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.False(t, change.Closed)
}

func TestResetClosesTheCircuit(t *testing.T) {
	b := New("dedup-engine", WithFailureThreshold(1))
	b.RecordFailure()
	assert.True(t, b.IsOpen())

	b.Reset()
	assert.False(t, b.IsOpen())
	assert.Equal(t, StateClosed, b.State())
}

func TestConcurrentFailuresOpenOnce(t *testing.T) {
	b := New("dedup-engine", WithFailureThreshold(10))

	var wg sync.WaitGroup
	var opened atomic.Int32
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, change := b.RecordFailure(); change.Opened {
				opened.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), opened.Load())
	assert.Equal(t, "open", b.State().String())
}
