package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	assert.Equal(t, "ply-convert dev (git unknown, built unknown)", String("ply-convert"))
}
