// Package browser provides utilities for browser automation with Rod.
package browser

import (
	"fmt"
	"math/rand"
	"strings"
)

// Fingerprint is one internally consistent browser identity. It is chosen
// once per session and never changes while the session lives; runs pick a
// fresh one so no long-lived fingerprint correlates across sessions.
type Fingerprint struct {
	Name           string
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	Platform       string
	ColorDepth     int
	Locale         string
	Timezone       string
	Headers        map[string]string
	Plugins        []PluginInfo
}

// PluginInfo mirrors one entry of navigator.plugins.
type PluginInfo struct {
	Name     string
	Filename string
}

var chromePlugins = []PluginInfo{
	{Name: "Chrome PDF Plugin", Filename: "internal-pdf-viewer"},
	{Name: "Chrome PDF Viewer", Filename: "mhjfbmdgcfjbbpaeojofohoefgiehjai"},
	{Name: "Native Client", Filename: "internal-nacl-plugin"},
}

// DefaultCatalog is the fixed set of profile templates sessions select from.
func DefaultCatalog() []Fingerprint {
	return []Fingerprint{
		{
			Name:           "Windows_Chrome",
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
			ViewportWidth:  1366,
			ViewportHeight: 768,
			Platform:       "Win32",
			ColorDepth:     24,
			Locale:         "es-CL",
			Timezone:       "America/Santiago",
			Headers: map[string]string{
				"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
				"Accept-Language": "es-CL,es;q=0.9,en;q=0.8",
				"Sec-Ch-Ua":       `"Chromium";v="122", "Not(A:Brand";v="24", "Google Chrome";v="122"`,
			},
			Plugins: chromePlugins,
		},
		{
			Name:           "Windows_Edge",
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36 Edg/122.0.0.0",
			ViewportWidth:  1920,
			ViewportHeight: 1080,
			Platform:       "Win32",
			ColorDepth:     24,
			Locale:         "es-CL",
			Timezone:       "America/Santiago",
			Headers: map[string]string{
				"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8",
				"Accept-Language": "es-CL,es;q=0.9,en;q=0.8",
				"Sec-Ch-Ua":       `"Microsoft Edge";v="122", "Chromium";v="122", "Not(A:Brand";v="24"`,
			},
			Plugins: chromePlugins,
		},
		{
			Name:           "Windows_Firefox",
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:123.0) Gecko/20100101 Firefox/123.0",
			ViewportWidth:  1440,
			ViewportHeight: 900,
			Platform:       "Win32",
			ColorDepth:     24,
			Locale:         "es-CL",
			Timezone:       "America/Santiago",
			Headers: map[string]string{
				"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
				"Accept-Language": "es-CL,es;q=0.8,en-US;q=0.5,en;q=0.3",
			},
			Plugins: nil,
		},
	}
}

// Pick selects a profile uniformly at random from the catalog.
func Pick(catalog []Fingerprint) Fingerprint {
	return catalog[rand.Intn(len(catalog))]
}

// InitScript builds the evasion patch applied on every new document. It
// hides the automation flag and aligns the navigator/screen/WebGL surface
// with the chosen profile. Applied on top of the stealth page baseline.
func (f Fingerprint) InitScript() string {
	var plugins strings.Builder
	plugins.WriteString("[")
	for i, p := range f.Plugins {
		if i > 0 {
			plugins.WriteString(",")
		}
		fmt.Fprintf(&plugins, "{name:%q,filename:%q}", p.Name, p.Filename)
	}
	plugins.WriteString("]")

	return fmt.Sprintf(`(() => {
	Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
	Object.defineProperty(navigator, 'platform', { get: () => %q });
	Object.defineProperty(navigator, 'languages', { get: () => [%q, 'es'] });

	const plugins = %s;
	Object.defineProperty(navigator, 'plugins', {
		get: () => ({
			...plugins,
			length: plugins.length,
			item: (i) => plugins[i],
			namedItem: (name) => plugins.find(p => p.name === name),
			refresh: () => {},
		})
	});

	window.chrome = window.chrome || { app: {}, runtime: {}, webstore: {} };

	Object.defineProperty(screen, 'colorDepth', { get: () => %d });
	Object.defineProperty(screen, 'pixelDepth', { get: () => %d });

	const getParameter = WebGLRenderingContext.prototype.getParameter;
	WebGLRenderingContext.prototype.getParameter = function(parameter) {
		if (parameter === 37445) { return 'Intel Inc.'; }
		if (parameter === 37446) { return 'Intel Iris OpenGL Engine'; }
		return getParameter.apply(this, [parameter]);
	};
})();`, f.Platform, f.Locale, plugins.String(), f.ColorDepth, f.ColorDepth)
}
