// Package estado implements the site playbook for the BancoEstado
// Empresas portal: a login frame served from a separate app origin, a
// sidebar navigation path and a date-ranged received-transfers query.
package estado

import (
	"context"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"

	"github.com/grez-lucas/transfer-harvester/internal/scraper/bank"
	"github.com/grez-lucas/transfer-harvester/internal/scraper/browser"
)

func init() {
	bank.Register(&Playbook{})
}

type Playbook struct{}

var _ bank.SitePlaybook = (*Playbook)(nil)
var _ browser.QueryPreparer = (*Playbook)(nil)

func (p *Playbook) Code() bank.SiteCode { return bank.SiteEstado }
func (p *Playbook) EntryURL() string    { return EntryURL }

func (p *Playbook) LoginFramePattern() string { return LoginFrameURLPattern }

func (p *Playbook) Login() bank.LoginSelectors {
	return bank.LoginSelectors{
		CompanyInput: SelectorCompanyInput,
		PersonInput:  SelectorPersonInput,
		SecretInput:  SelectorSecretInput,
		SubmitButton: SelectorLoginButton,
	}
}

func (p *Playbook) NavigationSteps() []bank.NavigationStep {
	return []bank.NavigationStep{
		{Selector: XPathTransfersMenu},
		{Selector: XPathConsultEntry},
		{Selector: XPathReceivedTab, FramePattern: DataFrameURLPattern},
	}
}

func (p *Playbook) DataFramePattern() string { return DataFrameURLPattern }

func (p *Playbook) Extraction() bank.ExtractionSelectors {
	return bank.ExtractionSelectors{
		Table:      SelectorTransfersTable,
		Rows:       SelectorTransferRows,
		NextButton: XPathNextButton,
	}
}

// Columns of the received-transfers table: operation number, detection
// timestamp, destination account, payer tax id, payer account, payer
// name, amount.
func (p *Playbook) Columns() bank.ColumnLayout {
	return bank.ColumnLayout{
		OperationID:        0,
		DetectedAt:         1,
		DestinationAccount: 2,
		PayerTaxID:         3,
		PayerAccount:       4,
		PayerName:          5,
		Amount:             6,
	}
}

func (p *Playbook) MinColumns() int { return 7 }

func (p *Playbook) LockoutPhrases() []string {
	return []string{
		"ha sido bloqueado por nuestra política de seguridad",
		"política de seguridad",
		"acceso bloqueado",
		"acceso denegado",
	}
}

func (p *Playbook) CookieDomain() string { return ".bancoestado.cl" }

func (p *Playbook) LogoutSelector() string { return XPathLogoutButton }

// PrepareQuery fills the date-range form for the trailing lookback window,
// submits the query and raises the page size so pagination stays shallow.
func (p *Playbook) PrepareQuery(ctx context.Context, page, frame *rod.Page, now time.Time, lookbackDays int) error {
	if _, err := frame.Timeout(10 * time.Second).Element("form"); err != nil {
		return err
	}

	from := now.AddDate(0, 0, -lookbackDays)

	// First date field: click, clear, type dd/mm/yyyy.
	dateEl, err := frame.Timeout(10 * time.Second).Element(SelectorDateInput)
	if err != nil {
		return err
	}
	if err := dateEl.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return err
	}
	_ = dateEl.SelectAllText()
	if err := dateEl.Input(""); err != nil {
		return err
	}
	if err := browser.TypeHuman(dateEl, from.Format("02/01/2006"), 80*time.Millisecond, 120*time.Millisecond); err != nil {
		return err
	}

	// The second field only accepts focus via Tab; type the end date as
	// a bare digit run.
	if err := page.Keyboard.Press(input.Tab); err != nil {
		return err
	}
	for _, r := range now.Format("02012006") {
		if err := page.Keyboard.Press(input.Key(r)); err != nil {
			return err
		}
		time.Sleep(100 * time.Millisecond)
	}

	if _, err := browser.ClickWithRetry(ctx, page, frame, XPathQueryButton, "", 3); err != nil {
		return err
	}

	// Give the query time to round-trip before touching the page size.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
	}

	sizeEl, err := frame.Timeout(10 * time.Second).Element(SelectorPageSizeInput)
	if err != nil {
		return err
	}
	if err := sizeEl.Select([]string{PageSizeValue}, true, rod.SelectorTypeText); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
	}
	return nil
}
