package leasing

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetlease/backend/internal/domain/shared"
)

func creditNoteInvoice(t *testing.T) (*Invoice, *Charge, *Charge) {
	leaseID := uuid.New()
	invoiceID := uuid.New()

	rental := invoicedCharge(t, leaseID, invoiceID, "INV-LE-0010", ChargeTypeRental, "3000")
	fine := invoicedCharge(t, leaseID, invoiceID, "INV-LE-0010", ChargeTypeFine, "500")
	vat := NewVATCharge(leaseID, "2024-03-15", invoiceID, "INV-LE-0010", decimal.RequireFromString("175"), uuid.New())

	inv := &Invoice{
		ID:      invoiceID,
		Number:  "INV-LE-0010",
		LeaseID: leaseID,
		Charges: []*Charge{rental, fine, vat},
	}
	return inv, rental, fine
}

func TestEligibleForCredit(t *testing.T) {
	inv, rental, _ := creditNoteInvoice(t)

	t.Run("invoiced charge is eligible", func(t *testing.T) {
		assert.NoError(t, EligibleForCredit(rental))
	})

	t.Run("paid charge is eligible", func(t *testing.T) {
		require.NoError(t, rental.MarkPaid(uuid.New()))
		assert.NoError(t, EligibleForCredit(rental))
	})

	t.Run("vat line is not eligible", func(t *testing.T) {
		var vat *Charge
		for _, c := range inv.Charges {
			if c.Type == ChargeTypeVAT {
				vat = c
			}
		}
		require.NotNil(t, vat)
		err := EligibleForCredit(vat)
		require.Error(t, err)
		assert.True(t, shared.IsCode(err, shared.CodeValidation))
	})

	t.Run("pending charge is not eligible", func(t *testing.T) {
		err := EligibleForCredit(createTestCharge(t))
		require.Error(t, err)
		assert.True(t, shared.IsCode(err, shared.CodeInvalidState))
	})
}

func TestBuildCreditLines(t *testing.T) {
	actorID := uuid.New()

	t.Run("full credit defaults to remaining amount", func(t *testing.T) {
		inv, rental, _ := creditNoteInvoice(t)

		lines, err := BuildCreditLines(inv, []CreditNoteLineRequest{
			{OriginalChargeID: rental.ID},
		}, "CN-LE-0001", "billing error", actorID)

		require.NoError(t, err)
		require.Len(t, lines, 1)
		line := lines[0]
		assert.Equal(t, ChargeTypeCreditNote, line.Type)
		assert.Equal(t, "-3000.00", line.TotalAmount.StringFixed(2))
		assert.Equal(t, ChargeStatusInvoiced, line.Status)
		require.NotNil(t, line.OriginalChargeID)
		assert.Equal(t, rental.ID, *line.OriginalChargeID)
		require.NotNil(t, line.CreditNoteNumber)
		assert.Equal(t, "CN-LE-0001", *line.CreditNoteNumber)
		require.NotNil(t, line.InvoiceID)
		assert.Equal(t, inv.ID, *line.InvoiceID)
	})

	t.Run("partial credit respects remaining", func(t *testing.T) {
		inv, rental, _ := creditNoteInvoice(t)

		lines, err := BuildCreditLines(inv, []CreditNoteLineRequest{
			{OriginalChargeID: rental.ID, Amount: decimal.RequireFromString("1200")},
		}, "CN-LE-0002", "partial month", actorID)

		require.NoError(t, err)
		assert.Equal(t, "-1200.00", lines[0].TotalAmount.StringFixed(2))
	})

	t.Run("over credit rejected against prior credits", func(t *testing.T) {
		inv, rental, _ := creditNoteInvoice(t)

		first, err := BuildCreditLines(inv, []CreditNoteLineRequest{
			{OriginalChargeID: rental.ID, Amount: decimal.RequireFromString("2500")},
		}, "CN-LE-0003", "first credit", actorID)
		require.NoError(t, err)
		inv.Charges = append(inv.Charges, first...)

		_, err = BuildCreditLines(inv, []CreditNoteLineRequest{
			{OriginalChargeID: rental.ID, Amount: decimal.RequireFromString("600")},
		}, "CN-LE-0004", "second credit", actorID)

		require.Error(t, err)
		assert.True(t, shared.IsCode(err, shared.CodeOverCredit))

		// The remaining 500 can still be credited.
		second, err := BuildCreditLines(inv, []CreditNoteLineRequest{
			{OriginalChargeID: rental.ID},
		}, "CN-LE-0004", "second credit", actorID)
		require.NoError(t, err)
		assert.Equal(t, "-500.00", second[0].TotalAmount.StringFixed(2))
	})

	t.Run("fully credited charge rejected", func(t *testing.T) {
		inv, rental, _ := creditNoteInvoice(t)

		full, err := BuildCreditLines(inv, []CreditNoteLineRequest{
			{OriginalChargeID: rental.ID},
		}, "CN-LE-0005", "full credit", actorID)
		require.NoError(t, err)
		inv.Charges = append(inv.Charges, full...)

		_, err = BuildCreditLines(inv, []CreditNoteLineRequest{
			{OriginalChargeID: rental.ID, Amount: decimal.RequireFromString("0.01")},
		}, "CN-LE-0006", "again", actorID)

		require.Error(t, err)
		assert.True(t, shared.IsCode(err, shared.CodeOverCredit))
	})

	t.Run("charge outside invoice rejected", func(t *testing.T) {
		inv, _, _ := creditNoteInvoice(t)

		_, err := BuildCreditLines(inv, []CreditNoteLineRequest{
			{OriginalChargeID: uuid.New()},
		}, "CN-LE-0007", "wrong invoice", actorID)

		require.Error(t, err)
		assert.True(t, shared.IsCode(err, shared.CodeValidation))
	})

	t.Run("duplicate lines rejected", func(t *testing.T) {
		inv, rental, _ := creditNoteInvoice(t)

		_, err := BuildCreditLines(inv, []CreditNoteLineRequest{
			{OriginalChargeID: rental.ID, Amount: decimal.RequireFromString("100")},
			{OriginalChargeID: rental.ID, Amount: decimal.RequireFromString("100")},
		}, "CN-LE-0008", "dup", actorID)

		require.Error(t, err)
		assert.True(t, shared.IsCode(err, shared.CodeValidation))
	})

	t.Run("multiple charges in one note", func(t *testing.T) {
		inv, rental, fine := creditNoteInvoice(t)

		lines, err := BuildCreditLines(inv, []CreditNoteLineRequest{
			{OriginalChargeID: rental.ID, Amount: decimal.RequireFromString("1000")},
			{OriginalChargeID: fine.ID},
		}, "CN-LE-0009", "settlement", actorID)

		require.NoError(t, err)
		require.Len(t, lines, 2)
		assert.Equal(t, "-1000.00", lines[0].TotalAmount.StringFixed(2))
		assert.Equal(t, "-500.00", lines[1].TotalAmount.StringFixed(2))
	})

	t.Run("empty request rejected", func(t *testing.T) {
		inv, _, _ := creditNoteInvoice(t)

		_, err := BuildCreditLines(inv, nil, "CN-LE-0010", "empty", actorID)

		require.Error(t, err)
		assert.True(t, shared.IsCode(err, shared.CodeValidation))
	})
}

func TestRemainingCreditable(t *testing.T) {
	inv, rental, _ := creditNoteInvoice(t)

	assert.Equal(t, "3000", RemainingCreditable(rental, inv.Charges).String())

	lines, err := BuildCreditLines(inv, []CreditNoteLineRequest{
		{OriginalChargeID: rental.ID, Amount: decimal.RequireFromString("750.50")},
	}, "CN-LE-0011", "adjustment", uuid.New())
	require.NoError(t, err)
	inv.Charges = append(inv.Charges, lines...)

	assert.Equal(t, "2249.50", RemainingCreditable(rental, inv.Charges).StringFixed(2))
}
