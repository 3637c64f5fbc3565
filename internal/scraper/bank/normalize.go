package bank

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Date layouts the portals render. All normalize to the same calendar day.
var sourceDateLayouts = []string{
	"02/01/2006",
	"02-01-2006",
}

const canonicalDateLayout = "2006-01-02"

// NormalizeContext carries the per-account facts a raw row does not contain.
type NormalizeContext struct {
	CompanyTaxID string
	CompanyLabel string

	// BillingThreshold splits "empresa" from "persona" by the numeric
	// magnitude of the payer tax id prefix.
	BillingThreshold int64
}

// Normalize converts one raw table row into the canonical Transfer record.
// Amount and tax-id parse failures are non-fatal: the record is emitted
// with defaults and BillingUnknown. Only a missing operation id drops the
// row, reported as ErrUnparseableRow.
func Normalize(raw RawRow, cols ColumnLayout, nctx NormalizeContext) (Transfer, error) {
	op := strings.TrimSpace(cell(raw, cols.OperationID))
	if op == "" {
		return Transfer{}, fmt.Errorf("%w: %q", ErrUnparseableRow, strings.Join(raw, "|"))
	}

	detectedAt := strings.TrimSpace(cell(raw, cols.DetectedAt))
	payerName := strings.TrimSpace(cell(raw, cols.PayerName))
	payerTaxID := CleanTaxID(cell(raw, cols.PayerTaxID))

	valueDate, _ := CanonicalDate(detectedAt)

	amount, _ := CleanAmount(cell(raw, cols.Amount))
	if amount < 0 {
		amount = -amount
	}

	// Class follows the payer tax id alone; a bad amount cell defaults to
	// zero without degrading the classification.
	class := BillingUnknown
	if prefix, err := DigitPrefix(payerTaxID); err == nil {
		if prefix > nctx.BillingThreshold {
			class = BillingCompany
		} else {
			class = BillingPerson
		}
	}

	t := Transfer{
		OperationID:        op,
		DetectedAt:         detectedAt,
		ValueDate:          valueDate,
		PayerName:          payerName,
		PayerTaxID:         payerTaxID,
		PayerAccount:       strings.TrimSpace(cell(raw, cols.PayerAccount)),
		Amount:             amount,
		RecipientTaxID:     nctx.CompanyTaxID,
		BillingClass:       class,
		CompanyLabel:       nctx.CompanyLabel,
		DestinationAccount: strings.TrimSpace(cell(raw, cols.DestinationAccount)),
	}
	t.ContentHash = ContentHash(t)
	return t, nil
}

// ContentHash digests the record's defining fields. It is the idempotency
// key for the downstream store, so it must be deterministic for equal input.
func ContentHash(t Transfer) string {
	sum := sha256.Sum256([]byte(
		t.OperationID + t.DetectedAt + strconv.FormatInt(t.Amount, 10) +
			t.PayerTaxID + t.CompanyLabel + t.PayerName,
	))
	return hex.EncodeToString(sum[:])
}

// CleanAmount strips currency decoration ("$1.234.567" -> 1234567) and
// parses the remainder as whole currency units.
func CleanAmount(s string) (int64, error) {
	clean := strings.NewReplacer("$", "", ".", "", ",", "", " ", "", "\u00a0", "").Replace(strings.TrimSpace(s))
	if clean == "" {
		return 0, fmt.Errorf("empty amount")
	}
	v, err := strconv.ParseInt(clean, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return v, nil
}

// CleanTaxID removes spacing and thousand-separator punctuation from a tax
// id, keeping the check digit ("77.936.187-K" -> "77936187-K").
func CleanTaxID(s string) string {
	return strings.NewReplacer(" ", "", ".", "").Replace(strings.TrimSpace(s))
}

// DigitPrefix parses the leading run of digits of a tax id. Check-digit
// forms like "77936187K" still yield their numeric body.
func DigitPrefix(s string) (int64, error) {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, fmt.Errorf("no digit prefix in %q", s)
	}
	return strconv.ParseInt(s[:end], 10, 64)
}

// CanonicalDate reduces a site-local timestamp to its calendar day in
// canonical form. The time-of-day part, if present, is ignored.
func CanonicalDate(s string) (string, error) {
	datePart := strings.TrimSpace(s)
	if i := strings.IndexAny(datePart, " \t"); i > 0 {
		datePart = datePart[:i]
	}
	for _, layout := range sourceDateLayouts {
		if t, err := time.Parse(layout, datePart); err == nil {
			return t.Format(canonicalDateLayout), nil
		}
	}
	return "", fmt.Errorf("unrecognized date %q", s)
}

func cell(raw RawRow, i int) string {
	if i < 0 || i >= len(raw) {
		return ""
	}
	return raw[i]
}
