package browser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogConsistency(t *testing.T) {
	catalog := DefaultCatalog()
	require.NotEmpty(t, catalog)

	for _, fp := range catalog {
		assert.NotEmpty(t, fp.Name)
		assert.NotEmpty(t, fp.UserAgent)
		assert.Greater(t, fp.ViewportWidth, 0)
		assert.Greater(t, fp.ViewportHeight, 0)
		// All profiles must present the same regional identity; mixing
		// locales across retries is itself a detection signal.
		assert.Equal(t, "es-CL", fp.Locale)
		assert.Equal(t, "America/Santiago", fp.Timezone)
	}
}

func TestPickStaysInCatalog(t *testing.T) {
	catalog := DefaultCatalog()
	names := make(map[string]bool, len(catalog))
	for _, fp := range catalog {
		names[fp.Name] = true
	}

	for i := 0; i < 50; i++ {
		assert.True(t, names[Pick(catalog).Name])
	}
}

func TestInitScriptCoversEvasions(t *testing.T) {
	fp := DefaultCatalog()[0]
	script := fp.InitScript()

	for _, marker := range []string{"webdriver", "plugins", "languages", "chrome", "getParameter"} {
		assert.True(t, strings.Contains(script, marker), marker)
	}
	assert.True(t, strings.Contains(script, fp.Platform))
}
