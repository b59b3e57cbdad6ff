package ids

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClickIDFormat(t *testing.T) {
	id := NewClickID(time.UnixMilli(1_700_000_000_000))
	assert.Regexp(t, regexp.MustCompile(`^click_[0-9a-z]+_[0-9a-f]{16}$`), id)
	assert.NotEqual(t, id, NewClickID(time.UnixMilli(1_700_000_000_000)))
}

func TestNewSessionIDStableUserPart(t *testing.T) {
	a := NewSessionID("user-1")
	b := NewSessionID("user-1")
	c := NewSessionID("user-2")

	partsA := strings.Split(a, "_")
	partsB := strings.Split(b, "_")
	partsC := strings.Split(c, "_")
	require.Len(t, partsA, 3)
	assert.Equal(t, partsA[1], partsB[1])
	assert.NotEqual(t, partsA[2], partsB[2])
	assert.NotEqual(t, partsA[1], partsC[1])
}
