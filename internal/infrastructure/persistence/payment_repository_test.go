package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetlease/backend/internal/domain/leasing"
	"github.com/fleetlease/backend/internal/domain/shared"
)

func newMockPaymentRepository(t *testing.T) (*GormPaymentRepository, sqlmock.Sqlmock, *sql.DB) {
	gormDB, mock, mockDB := newMockDB(t)
	return NewGormPaymentRepository(gormDB, decimal.RequireFromString("0.01")), mock, mockDB
}

func paymentColumns() []string {
	return []string{"id", "version", "created_at", "updated_at", "lease_id", "amount", "method", "status", "received_at"}
}

func TestGormPaymentRepository_FindByID(t *testing.T) {
	t.Run("finds existing payment", func(t *testing.T) {
		repo, mock, mockDB := newMockPaymentRepository(t)
		defer mockDB.Close()

		paymentID := uuid.New()
		leaseID := uuid.New()
		now := time.Now()

		rows := sqlmock.NewRows(paymentColumns()).
			AddRow(paymentID, 1, now, now, leaseID, decimal.RequireFromString("5000"), "bank_transfer", "received", now)

		mock.ExpectQuery(`SELECT \* FROM "lease_payments" WHERE id = \$1 .* LIMIT .*`).
			WithArgs(paymentID, 1).
			WillReturnRows(rows)

		payment, err := repo.FindByID(context.Background(), paymentID)

		assert.NoError(t, err)
		assert.NotNil(t, payment)
		assert.Equal(t, paymentID, payment.ID)
		assert.Equal(t, leasing.PaymentMethodBankTransfer, payment.Method)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found for missing payment", func(t *testing.T) {
		repo, mock, mockDB := newMockPaymentRepository(t)
		defer mockDB.Close()

		paymentID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "lease_payments" WHERE id = \$1 .* LIMIT .*`).
			WithArgs(paymentID, 1).
			WillReturnRows(sqlmock.NewRows(paymentColumns()))

		payment, err := repo.FindByID(context.Background(), paymentID)

		assert.Error(t, err)
		assert.Nil(t, payment)
		assert.Equal(t, shared.ErrNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormPaymentRepository_SumAppliedByPayment(t *testing.T) {
	t.Run("sums allocations", func(t *testing.T) {
		repo, mock, mockDB := newMockPaymentRepository(t)
		defer mockDB.Close()

		paymentID := uuid.New()

		mock.ExpectQuery(`SELECT COALESCE\(SUM\(amount\), 0\) FROM "lease_payment_applications"`).
			WithArgs(paymentID).
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow("1200.00"))

		sum, err := repo.SumAppliedByPayment(context.Background(), paymentID)

		assert.NoError(t, err)
		assert.Equal(t, "1200.00", sum.StringFixed(2))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormPaymentRepository_Apply(t *testing.T) {
	paymentID := uuid.New()
	invoiceID := uuid.New()
	leaseID := uuid.New()
	actorID := uuid.New()
	now := time.Now()

	expectApplyReads := func(mock sqlmock.Sqlmock, paymentAmount, alreadyApplied, invoiceTotal, appliedToInvoice string) {
		mock.ExpectQuery(`SELECT \* FROM "lease_payments" WHERE id = \$1 .*FOR UPDATE`).
			WithArgs(paymentID, 1).
			WillReturnRows(sqlmock.NewRows(paymentColumns()).
				AddRow(paymentID, 1, now, now, leaseID, decimal.RequireFromString(paymentAmount), "bank_transfer", "received", now))
		mock.ExpectQuery(`SELECT count\(\*\) FROM "lease_charges"`).
			WithArgs(invoiceID).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
		mock.ExpectQuery(`SELECT COALESCE\(SUM\(amount\), 0\) FROM "lease_payment_applications"`).
			WithArgs(paymentID).
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(alreadyApplied))
		mock.ExpectQuery(`SELECT COALESCE\(SUM\(total_amount\), 0\) FROM "lease_charges"`).
			WithArgs(invoiceID).
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(invoiceTotal))
		mock.ExpectQuery(`SELECT COALESCE\(SUM\(amount\), 0\) FROM "lease_payment_applications"`).
			WithArgs(invoiceID).
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(appliedToInvoice))
	}

	t.Run("applies and settles a closing invoice", func(t *testing.T) {
		repo, mock, mockDB := newMockPaymentRepository(t)
		defer mockDB.Close()

		mock.ExpectBegin()
		expectApplyReads(mock, "5000", "0", "3150.00", "2000.00")
		mock.ExpectExec(`INSERT INTO "lease_payment_applications"`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE "lease_payments" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		// The application closes the balance, so the members settle too.
		mock.ExpectExec(`UPDATE "lease_charges" SET`).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		app, err := repo.Apply(context.Background(), paymentID, invoiceID, decimal.RequireFromString("1150.00"), actorID)

		require.NoError(t, err)
		require.NotNil(t, app)
		assert.Equal(t, paymentID, app.PaymentID)
		assert.Equal(t, invoiceID, app.InvoiceID)
		assert.Equal(t, "1150.00", app.Amount.StringFixed(2))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("partial application leaves the members alone", func(t *testing.T) {
		repo, mock, mockDB := newMockPaymentRepository(t)
		defer mockDB.Close()

		mock.ExpectBegin()
		expectApplyReads(mock, "5000", "0", "3150.00", "0")
		mock.ExpectExec(`INSERT INTO "lease_payment_applications"`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE "lease_payments" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		app, err := repo.Apply(context.Background(), paymentID, invoiceID, decimal.RequireFromString("1000.00"), actorID)

		require.NoError(t, err)
		assert.Equal(t, "1000.00", app.Amount.StringFixed(2))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("over application rolls back", func(t *testing.T) {
		repo, mock, mockDB := newMockPaymentRepository(t)
		defer mockDB.Close()

		mock.ExpectBegin()
		expectApplyReads(mock, "1000", "900.00", "3150.00", "0")
		mock.ExpectRollback()

		app, err := repo.Apply(context.Background(), paymentID, invoiceID, decimal.RequireFromString("200.00"), actorID)

		require.Error(t, err)
		assert.Nil(t, app)
		assert.True(t, shared.IsCode(err, shared.CodeOverApplication))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown invoice rolls back", func(t *testing.T) {
		repo, mock, mockDB := newMockPaymentRepository(t)
		defer mockDB.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM "lease_payments" WHERE id = \$1 .*FOR UPDATE`).
			WithArgs(paymentID, 1).
			WillReturnRows(sqlmock.NewRows(paymentColumns()).
				AddRow(paymentID, 1, now, now, leaseID, decimal.RequireFromString("1000"), "cash", "received", now))
		mock.ExpectQuery(`SELECT count\(\*\) FROM "lease_charges"`).
			WithArgs(invoiceID).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectRollback()

		_, err := repo.Apply(context.Background(), paymentID, invoiceID, decimal.RequireFromString("100.00"), actorID)

		require.Error(t, err)
		assert.Equal(t, shared.ErrNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormPaymentRepository_InterfaceCompliance(t *testing.T) {
	repo, _, mockDB := newMockPaymentRepository(t)
	defer mockDB.Close()

	var _ leasing.PaymentRepository = repo
}
