// Package bci implements the site playbook for the BCI Pyme portal:
// top-level login, a doubly nested workspace iframe and a received
// transfers table without a query form.
package bci

import (
	"github.com/grez-lucas/transfer-harvester/internal/scraper/bank"
)

func init() {
	bank.Register(&Playbook{})
}

type Playbook struct{}

var _ bank.SitePlaybook = (*Playbook)(nil)

func (p *Playbook) Code() bank.SiteCode { return bank.SiteBCI }
func (p *Playbook) EntryURL() string    { return EntryURL }

// Login form is on the top-level page, no frame to resolve.
func (p *Playbook) LoginFramePattern() string { return "" }

func (p *Playbook) Login() bank.LoginSelectors {
	return bank.LoginSelectors{
		PersonInput:  SelectorPersonInput,
		SecretInput:  SelectorSecretInput,
		SubmitButton: XPathLoginButton,
	}
}

func (p *Playbook) NavigationSteps() []bank.NavigationStep {
	return []bank.NavigationStep{
		{Selector: SelectorMenuEntry, FramePattern: WorkspaceFrameSelector},
		{Selector: SelectorSubmenuEntry, FramePattern: WorkspaceFrameSelector},
	}
}

func (p *Playbook) DataFramePattern() string { return DataFrameSelector }

func (p *Playbook) Extraction() bank.ExtractionSelectors {
	return bank.ExtractionSelectors{
		Table:      SelectorTransfersTable,
		Rows:       SelectorTransferRows,
		NextButton: XPathNextButton,
	}
}

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

func (p *Playbook) CookieDomain() string { return ".bci.cl" }

func (p *Playbook) LogoutSelector() string { return XPathLogoutButton }
