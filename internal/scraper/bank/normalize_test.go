package bank

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var estadoColumns = ColumnLayout{
	OperationID:        0,
	DetectedAt:         1,
	DestinationAccount: 2,
	PayerTaxID:         3,
	PayerAccount:       4,
	PayerName:          5,
	Amount:             6,
}

func testContext() NormalizeContext {
	return NormalizeContext{
		CompanyTaxID:     "77469173-1",
		CompanyLabel:     "STS CRISTOBAL",
		BillingThreshold: 50_000_000,
	}
}

func TestNormalize(t *testing.T) {
	raw := RawRow{
		"123456789",
		"15/01/2026 10:32",
		"00123456",
		"77.936.187-K",
		"987654321",
		"COMERCIAL EJEMPLO SPA",
		"$1.234.567",
	}

	got, err := Normalize(raw, estadoColumns, testContext())
	require.NoError(t, err)

	assert.Equal(t, "123456789", got.OperationID)
	assert.Equal(t, int64(1234567), got.Amount)
	assert.Equal(t, "77936187-K", got.PayerTaxID)
	assert.Equal(t, "2026-01-15", got.ValueDate)
	assert.Equal(t, BillingCompany, got.BillingClass)
	assert.Equal(t, "77469173-1", got.RecipientTaxID)
	assert.Equal(t, "STS CRISTOBAL", got.CompanyLabel)
	assert.Len(t, got.ContentHash, 64)
}

func TestNormalizeMissingOperationID(t *testing.T) {
	raw := RawRow{"", "15/01/2026", "001", "12.345.678-5", "987", "JUAN PEREZ", "$100"}

	_, err := Normalize(raw, estadoColumns, testContext())
	assert.True(t, errors.Is(err, ErrUnparseableRow))
}

func TestNormalizeBillingClass(t *testing.T) {
	cases := []struct {
		name  string
		taxID string
		want  BillingClass
	}{
		{"company above threshold", "77.936.187-K", BillingCompany},
		{"company without separator", "77936187K", BillingCompany},
		{"person below threshold", "12.345.678-5", BillingPerson},
		{"unparseable tax id", "SIN RUT", BillingUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := RawRow{"op1", "15/01/2026", "001", tc.taxID, "987", "PAGADOR", "$500"}
			got, err := Normalize(raw, estadoColumns, testContext())
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.BillingClass)
		})
	}
}

func TestNormalizeUnparseableAmountKeepsClassification(t *testing.T) {
	raw := RawRow{"op1", "15/01/2026", "001", "12.345.678-5", "987", "PAGADOR", "N/A"}

	got, err := Normalize(raw, estadoColumns, testContext())
	require.NoError(t, err)
	// Amount defaults to zero; the class still follows the tax id.
	assert.Equal(t, int64(0), got.Amount)
	assert.Equal(t, BillingPerson, got.BillingClass)
}

func TestNormalizeUnparseableAmountCompanyClass(t *testing.T) {
	raw := RawRow{"op1", "15/01/2026", "001", "77.936.187-K", "987", "PAGADOR", "sin monto"}

	got, err := Normalize(raw, estadoColumns, testContext())
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Amount)
	assert.Equal(t, BillingCompany, got.BillingClass)
}

func TestNormalizeNegativeAmount(t *testing.T) {
	raw := RawRow{"op1", "15/01/2026", "001", "12.345.678-5", "987", "PAGADOR", "-$2.500"}

	got, err := Normalize(raw, estadoColumns, testContext())
	require.NoError(t, err)
	assert.Equal(t, int64(2500), got.Amount)
}

func TestContentHashDeterministic(t *testing.T) {
	raw := RawRow{"op1", "15/01/2026", "001", "12.345.678-5", "987", "PAGADOR", "$500"}

	a, err := Normalize(raw, estadoColumns, testContext())
	require.NoError(t, err)
	b, err := Normalize(raw, estadoColumns, testContext())
	require.NoError(t, err)
	assert.Equal(t, a.ContentHash, b.ContentHash)
}

func TestContentHashSensitiveToFields(t *testing.T) {
	base := RawRow{"op1", "15/01/2026", "001", "12.345.678-5", "987", "PAGADOR", "$500"}
	a, err := Normalize(base, estadoColumns, testContext())
	require.NoError(t, err)

	changed := RawRow{"op1", "15/01/2026", "001", "12.345.678-5", "987", "PAGADOR", "$501"}
	b, err := Normalize(changed, estadoColumns, testContext())
	require.NoError(t, err)

	assert.NotEqual(t, a.ContentHash, b.ContentHash)
}

func TestCleanAmount(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"$1.234.567", 1234567, false},
		{"$ 500", 500, false},
		{"1,000", 1000, false},
		{"-$2.500", -2500, false},
		{"", 0, true},
		{"abc", 0, true},
	}
	for _, tc := range cases {
		got, err := CleanAmount(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestCanonicalDate(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"15/01/2026", "2026-01-15", false},
		{"15-01-2026", "2026-01-15", false},
		{"15/01/2026 10:32", "2026-01-15", false},
		{"2026-01-15", "", true},
		{"", "", true},
	}
	for _, tc := range cases {
		got, err := CanonicalDate(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestDigitPrefix(t *testing.T) {
	got, err := DigitPrefix("77936187K")
	require.NoError(t, err)
	assert.Equal(t, int64(77936187), got)

	_, err = DigitPrefix("K77936187")
	assert.Error(t, err)
}
