package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDatasetFingerprintDependsOnOrderAndLabels(t *testing.T) {
	a := ComputeDatasetFingerprint([]string{"hi", "bye"}, []string{"greet", "leave"})
	b := ComputeDatasetFingerprint([]string{"bye", "hi"}, []string{"leave", "greet"})
	c := ComputeDatasetFingerprint([]string{"hi", "bye"}, []string{"greet", "greet"})
	same := ComputeDatasetFingerprint([]string{"hi", "bye"}, []string{"greet", "leave"})

	assert.Equal(t, a, same)
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a.String(), 64)
}

func TestHashShort(t *testing.T) {
	h := NewHash([]byte("x"))
	assert.Len(t, h.Short(), 12)
	assert.Equal(t, "abc", Hash("abc").Short())
	assert.True(t, Hash("").IsEmpty())
}

func TestColumnNotFoundError(t *testing.T) {
	err := NewColumnNotFoundError("user_intent", "train.xlsx")
	assert.True(t, IsNotFoundError(err))
	assert.Contains(t, err.Error(), `"user_intent" in train.xlsx`)
}
