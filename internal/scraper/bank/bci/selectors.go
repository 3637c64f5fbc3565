package bci

// Selectors for the BCI Pyme portal. Login renders on the top-level page;
// the post-login workspace nests two levels of iframes that carry stable
// element ids but opaque URLs, so frames resolve by selector here.
const (
	EntryURL = "https://www.bci.cl/corporativo/banco-en-linea/pyme"

	// Frames, matched by iframe element id
	WorkspaceFrameSelector = "#iframeContenido"
	DataFrameSelector      = "#oss-layout-iframe"

	// Login form (no separate company field; the person rut carries it)
	SelectorPersonInput = "input#rut_aux"
	SelectorSecretInput = "input#clave"
	XPathLoginButton    = "//button[@type='submit'][contains(.,'Ingresar')]"

	// Workspace navigation
	SelectorMenuEntry    = "#item-title2"
	SelectorSubmenuEntry = "#subitem-title21"

	// Transfers table
	SelectorTransfersTable = "table.bci-wk-table"
	SelectorTransferRows   = "table.bci-wk-table tbody tr"
	XPathNextButton        = "//button[contains(.,'Siguiente')]"

	XPathLogoutButton = "//button[contains(.,'Cerrar sesión')]"
)
