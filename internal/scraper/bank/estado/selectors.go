package estado

// Selectors for the BancoEstado Empresas portal. The login form lives in
// an app frame; the transfers table in a second, separately served frame.
const (
	EntryURL = "https://www.bancoestado.cl/content/bancoestado-public/cl/es/home/inicio---bancoestado-empresas.html#/login-empresa"

	// Frames, matched by URL
	LoginFrameURLPattern = `appempresas\.bancoestado\.cl`
	DataFrameURLPattern  = `consultas-transferencias-pj-app`

	// Login form
	SelectorCompanyInput = "input#rutEmpresa"
	SelectorPersonInput  = "input#rutPersona"
	SelectorSecretInput  = "input#idPassword"
	SelectorLoginButton  = "button.dsd-button.primary"

	// Sidebar navigation to the received-transfers view
	XPathTransfersMenu = "//nav[@class='menu-sidebar-home__content']/ul[@class='link_list']/li[2]/a[1]"
	XPathConsultEntry  = "//ul[@id='Transferencias']//div[@class='submenu-link-name'][normalize-space()='Consultar']"
	XPathReceivedTab   = "//li[contains(.,'Recibidas')]"

	// Query form inside the data frame
	SelectorDateInput     = `dsd-datepicker-only input[type="text"]`
	XPathQueryButton      = "//button[contains(.,'Consultar')]"
	SelectorPageSizeInput = `select[name="select"]`
	PageSizeValue         = "200"

	// Transfers table
	SelectorTransfersTable = "table.table__container"
	SelectorTransferRows   = "table.table__container tbody tr"
	XPathNextButton        = "(//div[contains(.,'Siguiente')])[15]"

	// Session end
	XPathLogoutButton = "//button[contains(.,'Cerrar Sesión')]"
)
