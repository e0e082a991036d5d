package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccountIdFor(t *testing.T) {
	assert.Equal(t, AccountIdFor("alice", 0), AccountIdFor("alice", 0))
	assert.NotEqual(t, AccountIdFor("alice", 0), AccountIdFor("alice", 1))
	// owner and index are not interchangeable
	assert.NotEqual(t, AccountIdFor("1", 2), AccountIdFor("2", 1))
	assert.NotEqual(t, AccountIdFor("0", 7), AccountIdFor("7", 0))
}
