package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultStyles_RenderText(t *testing.T) {
	// Given: default styles
	styles := DefaultStyles()

	// Then: each style renders its text (ANSI wrapping depends on the
	// terminal profile, so only the text itself is asserted)
	assert.Contains(t, styles.Header.Render("vibemcp"), "vibemcp")
	assert.Contains(t, styles.Success.Render("ok"), "ok")
	assert.Contains(t, styles.Warning.Render("careful"), "careful")
	assert.Contains(t, styles.Error.Render("bad"), "bad")
	assert.Contains(t, styles.Match.Render("hit"), "hit")
}

func TestNoColorStyles_RenderPlain(t *testing.T) {
	// Given: no-color styles
	styles := NoColorStyles()

	// Then: rendering is the identity
	assert.Equal(t, "vibemcp", styles.Header.Render("vibemcp"))
	assert.Equal(t, "●", styles.Active.Render("●"))
	assert.Equal(t, "hit", styles.Match.Render("hit"))
}

func TestGetStyles_SelectsByPreference(t *testing.T) {
	// When: asking for no-color styles
	plain := GetStyles(true)

	// Then: rendering adds nothing
	assert.Equal(t, "test", plain.Success.Render("test"))

	// When: asking for color styles
	colored := GetStyles(false)

	// Then: the text is still present whatever the profile adds
	assert.Contains(t, colored.Success.Render("test"), "test")
}
