package process

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPendingQueueAddRemove(t *testing.T) {
	q := NewPendingQueue()
	assert.Zero(t, q.Len())

	q.Add("b", []string{"a"})
	q.Add("c", []string{"a", "b"})
	q.Add("b", []string{"a"})
	assert.Equal(t, 2, q.Len(), "duplicate add is ignored")
	assert.True(t, q.Contains("b"))

	q.Remove("b")
	assert.False(t, q.Contains("b"))
	assert.Equal(t, 1, q.Len())
}

func TestPendingQueueTakeSatisfied(t *testing.T) {
	q := NewPendingQueue()
	q.Add("b", []string{"a"})
	q.Add("c", []string{"a", "x"})

	healthy := map[string]bool{"a": true}
	taken := q.TakeSatisfied(func(p PendingService) bool {
		for _, dep := range p.Depends {
			if !healthy[dep] {
				return false
			}
		}
		return true
	})

	assert.Len(t, taken, 1)
	assert.Equal(t, "b", taken[0].Name)
	assert.False(t, q.Contains("b"), "satisfied entries are removed atomically")
	assert.True(t, q.Contains("c"))
}

func TestPendingQueueSnapshotIsCopied(t *testing.T) {
	deps := []string{"a"}
	q := NewPendingQueue()
	q.Add("b", deps)
	deps[0] = "mutated"

	taken := q.TakeSatisfied(func(PendingService) bool { return true })
	assert.Equal(t, []string{"a"}, taken[0].Depends)
}
