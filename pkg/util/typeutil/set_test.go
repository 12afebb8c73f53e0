package typeutil

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	set := NewSet("Point", "Range")
	assert.True(t, set.Contain("Point"))
	assert.True(t, set.Contain("Point", "Range"))
	assert.False(t, set.Contain("Point", "Object"))

	set.Insert("Point")
	assert.Equal(t, 2, set.Len())

	cloned := set.Clone()
	set.Remove("Range")
	assert.Equal(t, 1, set.Len())
	assert.Equal(t, 2, cloned.Len())

	elems := cloned.Collect()
	sort.Strings(elems)
	assert.Equal(t, []string{"Point", "Range"}, elems)
}

func TestConcurrentSet(t *testing.T) {
	set := NewConcurrentSet[string]()
	assert.True(t, set.Insert("Comparable"))
	assert.False(t, set.Insert("Comparable"))
	assert.True(t, set.Contain("Comparable"))
	assert.False(t, set.Contain("Comparable", "Kernel"))
	assert.Equal(t, []string{"Comparable"}, set.Collect())
}
