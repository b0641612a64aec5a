package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "sis:org-1:levels:model-1", Key("org-1", "levels", "model-1"))
	assert.Equal(t, "sis:org-1:current:_", Key("org-1", "current", " "))
	assert.Equal(t, "sis", Key())
}
