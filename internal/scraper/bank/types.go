// Package bank defines the common structs and logic shared by the site
// implementations: the canonical transfer record, account credentials,
// session login states and the playbook contract each portal provides.
package bank

type SiteCode string

const (
	SiteEstado SiteCode = "ESTADO"
	SiteBCI    SiteCode = "BCI"
)

// Account is the static credential triple for one company login.
// One Account maps to exactly one concurrent session.
type Account struct {
	Site      SiteCode
	CompanyID string // company tax id, e.g. "774691731"
	PersonID  string // person tax id used to authenticate
	Secret    string
	Label     string // human company label attached to every record
}

// LoginState tracks where a browser session is in its lifecycle. Every
// session must reach StateTerminated on every exit path.
type LoginState string

const (
	StateAnonymousNavigated LoginState = "anonymous_navigated"
	StateReady              LoginState = "ready"
	StateCredentialsEntered LoginState = "credentials_entered"
	StateAuthenticated      LoginState = "authenticated"
	StateSecurityBlocked    LoginState = "security_blocked"
	StateTerminated         LoginState = "terminated"
)

// RawRow is the ordered cell text of one table row, scraped verbatim.
// It only lives for the duration of one pagination page.
type RawRow []string

type BillingClass string

const (
	BillingCompany BillingClass = "empresa"
	BillingPerson  BillingClass = "persona"
	BillingUnknown BillingClass = "unknown"
)

// Transfer is the canonical incoming-transfer record. ContentHash is the
// identity used downstream; operation ids are not unique across companies.
type Transfer struct {
	OperationID        string
	DetectedAt         string // site timestamp as displayed, e.g. "30/01/2025 21:42"
	ValueDate          string // canonical calendar day, "2025-01-30"
	PayerName          string
	PayerTaxID         string
	PayerAccount       string
	Amount             int64 // whole currency units, never negative
	RecipientTaxID     string
	BillingClass       BillingClass
	CompanyLabel       string
	ContentHash        string
	DestinationAccount string
}
