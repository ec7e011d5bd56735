package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitPicksLanguageFromLANG(t *testing.T) {
	defer func() { CurrentLang = "en" }()

	t.Setenv("LANG", "he_IL.UTF-8")
	Init()
	assert.Equal(t, "he", CurrentLang)

	t.Setenv("LANG", "en_US.UTF-8")
	Init()
	assert.Equal(t, "en", CurrentLang)
}

func TestTFallbacks(t *testing.T) {
	defer func() { CurrentLang = "en" }()

	CurrentLang = "he"
	assert.Equal(t, messages["submitted"]["he"], T("submitted"))

	CurrentLang = "fr"
	assert.Equal(t, messages["submitted"]["en"], T("submitted"))

	assert.Equal(t, "no_such_key", T("no_such_key"))
}
