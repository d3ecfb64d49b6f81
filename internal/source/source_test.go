package source

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"flacify/internal/metadata"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "queen|a-night-at-the-opera", Key("Queen", "A Night at the Opera"))
	assert.Equal(t, Key("QUEEN", " a night AT the opera "), Key("queen", "A Night at the Opera"))
	assert.Equal(t, "|bohemian-rhapsody", Key("", "Bohemian Rhapsody"))
}

func TestCacheMissVersusUnqueried(t *testing.T) {
	c := NewCache()

	rec, ok := c.Lookup("never-seen")
	assert.False(t, ok)
	assert.Nil(t, rec)

	c.StoreMiss("no-hit")
	rec, ok = c.Lookup("no-hit")
	assert.True(t, ok, "cached miss must be distinguishable from unqueried")
	assert.Nil(t, rec)

	c.Store("hit", metadata.Record{metadata.FieldTitle: "Bohemian Rhapsody"})
	rec, ok = c.Lookup("hit")
	assert.True(t, ok)
	assert.Equal(t, "Bohemian Rhapsody", rec.Get(metadata.FieldTitle))

	assert.Equal(t, 2, c.Len())
}

func TestLimiterSpacesRequests(t *testing.T) {
	l := NewLimiter(50 * time.Millisecond)

	l.Wait() // first call goes through immediately
	start := time.Now()
	l.Wait()
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}
