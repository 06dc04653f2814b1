package colors

import (
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestStyles(t *testing.T) {
	saved := color.NoColor
	t.Cleanup(func() { color.NoColor = saved })

	color.NoColor = false
	assert.True(t, Enabled())
	assert.NotEqual(t, "iPhone", Name("iPhone"))
	assert.Contains(t, Failure("pairing"), "pairing")

	Init(true)
	assert.False(t, Enabled())
	for _, style := range []func(...any) string{Name, Detail, Step, Failure, Success} {
		assert.Equal(t, "install", style("install"))
	}
}

func TestInitKeepsDefault(t *testing.T) {
	saved := color.NoColor
	t.Cleanup(func() { color.NoColor = saved })

	color.NoColor = true
	Init(false)
	assert.True(t, color.NoColor)
}
