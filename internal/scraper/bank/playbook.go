package bank

import (
	"fmt"
	"sync"
)

// LoginSelectors locate the credential form inside the login frame.
type LoginSelectors struct {
	CompanyInput string
	PersonInput  string
	SecretInput  string
	SubmitButton string
}

// ExtractionSelectors locate the received-transfers table and its pager.
type ExtractionSelectors struct {
	Table      string
	Rows       string
	NextButton string
}

// NavigationStep is one click on the way from the post-login landing page
// to the transfers view. FramePattern selects the frame to click in, either
// a frame URL regular expression or a "#id" iframe selector; empty means
// the top-level page.
type NavigationStep struct {
	Selector     string
	FramePattern string
}

// ColumnLayout maps the transfer table's cell positions to record fields.
type ColumnLayout struct {
	OperationID        int
	DetectedAt         int
	DestinationAccount int
	PayerTaxID         int
	PayerAccount       int
	PayerName          int
	Amount             int
}

// SitePlaybook is everything site-specific: entry point, selectors, frame
// URL patterns and lockout phrasing. The extraction flow itself is shared;
// playbooks only parameterize it.
type SitePlaybook interface {
	Code() SiteCode
	EntryURL() string

	// LoginFramePattern references the frame hosting the login form, as
	// a URL regular expression or a "#id" iframe selector. Empty means
	// the form lives on the top-level page.
	LoginFramePattern() string
	Login() LoginSelectors

	NavigationSteps() []NavigationStep

	// DataFramePattern references the frame hosting the transfers table,
	// in the same forms as LoginFramePattern.
	DataFramePattern() string
	Extraction() ExtractionSelectors
	Columns() ColumnLayout

	// MinColumns is the smallest cell count a usable row can have.
	MinColumns() int

	// LockoutPhrases are matched case-insensitively against the rendered
	// page after submit to detect a security block.
	LockoutPhrases() []string

	// CookieDomain is where the seeded session cookies are planted.
	CookieDomain() string

	// LogoutSelector is clicked best-effort at the end of a run.
	LogoutSelector() string
}

var (
	playbooksMu sync.RWMutex
	playbooks   = make(map[SiteCode]SitePlaybook)
)

// Register makes a playbook selectable by site code. Site packages call it
// from init, like database/sql drivers.
func Register(pb SitePlaybook) {
	playbooksMu.Lock()
	defer playbooksMu.Unlock()
	playbooks[pb.Code()] = pb
}

// PlaybookFor returns the registered playbook for a site code.
func PlaybookFor(code SiteCode) (SitePlaybook, error) {
	playbooksMu.RLock()
	defer playbooksMu.RUnlock()
	pb, ok := playbooks[code]
	if !ok {
		return nil, fmt.Errorf("no playbook registered for site %q", code)
	}
	return pb, nil
}
