package preauth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_ConsumeReturnsInsertedUser(t *testing.T) {
	c := New(15 * time.Second)
	c.Insert("tok-1", "alice")

	id, ok := c.Consume("tok-1")
	require.True(t, ok)
	assert.EqualValues(t, "alice", id)
}

func TestCache_ConsumeIsSingleUse(t *testing.T) {
	c := New(15 * time.Second)
	c.Insert("tok-1", "alice")

	_, ok := c.Consume("tok-1")
	require.True(t, ok)

	_, ok = c.Consume("tok-1")
	assert.False(t, ok)
}

func TestCache_ConsumeUnknownTokenFails(t *testing.T) {
	c := New(15 * time.Second)
	_, ok := c.Consume("never-inserted")
	assert.False(t, ok)
}

func TestCache_TokenExpiresAfterTTL(t *testing.T) {
	c := New(20 * time.Millisecond)
	c.Insert("tok-1", "alice")

	time.Sleep(60 * time.Millisecond)

	_, ok := c.Consume("tok-1")
	assert.False(t, ok)
}

func TestCache_ReInsertOverwritesPriorToken(t *testing.T) {
	c := New(15 * time.Second)
	c.Insert("tok-1", "alice")
	c.Insert("tok-1", "bob")

	id, ok := c.Consume("tok-1")
	require.True(t, ok)
	assert.EqualValues(t, "bob", id)
}

func TestCache_Len(t *testing.T) {
	c := New(15 * time.Second)
	assert.Equal(t, 0, c.Len())
	c.Insert("tok-1", "alice")
	c.Insert("tok-2", "bob")
	assert.Equal(t, 2, c.Len())
	c.Consume("tok-1")
	assert.Equal(t, 1, c.Len())
}
