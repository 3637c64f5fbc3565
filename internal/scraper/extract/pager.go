package extract

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"

	"github.com/grez-lucas/transfer-harvester/internal/scraper/bank"
	"github.com/grez-lucas/transfer-harvester/internal/scraper/browser"
)

// FramePager reads a transfers table rendered inside a resolved frame.
// Rows are parsed from a captured HTML snapshot with goquery rather than
// cell-by-cell element queries; one snapshot per page keeps the CDP
// round-trips down and survives mid-read re-renders.
type FramePager struct {
	frame *rod.Page
	sel   bank.ExtractionSelectors
	log   zerolog.Logger
}

var _ Pager = (*FramePager)(nil)

func NewFramePager(frame *rod.Page, sel bank.ExtractionSelectors, log zerolog.Logger) *FramePager {
	return &FramePager{frame: frame, sel: sel, log: log}
}

func (p *FramePager) WaitTable(timeout time.Duration) bool {
	el, err := p.frame.Timeout(timeout).Element(p.sel.Table)
	if err != nil {
		return false
	}
	return el.WaitVisible() == nil
}

func (p *FramePager) Rows() ([]bank.RawRow, error) {
	html, err := p.frame.HTML()
	if err != nil {
		return nil, err
	}
	return ParseRows(html, p.sel.Rows)
}

// ParseRows extracts the cell text of every row matching rowSelector from
// an HTML snapshot.
func ParseRows(html, rowSelector string) ([]bank.RawRow, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var rows []bank.RawRow
	doc.Find(rowSelector).Each(func(i int, tr *goquery.Selection) {
		var row bank.RawRow
		tr.Find("td").Each(func(_ int, td *goquery.Selection) {
			row = append(row, strings.TrimSpace(td.Text()))
		})
		rows = append(rows, row)
	})
	return rows, nil
}

func (p *FramePager) NextAvailable() (bool, error) {
	el, err := browser.Find(p.frame, p.sel.NextButton, 2*time.Second)
	if err != nil {
		return false, nil
	}
	visible, err := el.Visible()
	if err != nil || !visible {
		return false, nil
	}
	disabled, err := el.Attribute("disabled")
	if err != nil {
		return false, nil
	}
	return disabled == nil, nil
}

func (p *FramePager) ClickNext() error {
	el, err := browser.Find(p.frame, p.sel.NextButton, 5*time.Second)
	if err != nil {
		return err
	}
	if err := el.ScrollIntoView(); err != nil {
		p.log.Debug().Err(err).Msg("scroll to next control failed")
	}
	_ = el.Hover()
	return el.Click(proto.InputMouseButtonLeft, 1)
}
