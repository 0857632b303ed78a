package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ontime/billsplit/internal/models"
)

const paymentColumns = `id, expense_id, participant, amount, tx_hash, reward_label, reward,
	session_id, notified, status, created_at`

// CreatePayment persists a new payment to the database.
func (s *SQLiteStore) CreatePayment(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.New().String()
	}
	if payment.CreatedAt == 0 {
		payment.CreatedAt = time.Now().Unix()
	}
	if payment.Status == "" {
		payment.Status = models.PaymentPending
	}

	var sessionID interface{} = nil
	if payment.SessionID != "" {
		sessionID = payment.SessionID
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO payments (`+paymentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID, payment.ExpenseID, strings.ToLower(payment.Participant), payment.Amount,
		payment.TxHash, payment.RewardLabel, payment.Reward,
		sessionID, payment.Notified, string(payment.Status), payment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}

	return nil
}

// UpdatePaymentStatus sets the confirmation status of a payment.
func (s *SQLiteStore) UpdatePaymentStatus(ctx context.Context, paymentID string, status models.PaymentStatus) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE payments SET status = ? WHERE id = ?",
		string(status), paymentID,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	return expectOneRow(res, "payment", paymentID)
}

// ListPaymentsByExpense retrieves all payments for an expense.
func (s *SQLiteStore) ListPaymentsByExpense(ctx context.Context, expenseID string) ([]*models.Payment, error) {
	return s.listPayments(ctx, "expense_id = ?", expenseID)
}

// ListPaymentsByParticipant retrieves all payments made by an address.
func (s *SQLiteStore) ListPaymentsByParticipant(ctx context.Context, participant string) ([]*models.Payment, error) {
	return s.listPayments(ctx, "participant = ?", strings.ToLower(participant))
}

func (s *SQLiteStore) listPayments(ctx context.Context, where string, arg interface{}) ([]*models.Payment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE `+where+` ORDER BY created_at DESC, rowid DESC`,
		arg,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		payment := &models.Payment{}
		var sessionID sql.NullString
		var status string

		if err := rows.Scan(&payment.ID, &payment.ExpenseID, &payment.Participant, &payment.Amount,
			&payment.TxHash, &payment.RewardLabel, &payment.Reward,
			&sessionID, &payment.Notified, &status, &payment.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}

		if sessionID.Valid {
			payment.SessionID = sessionID.String
		}
		payment.Status = models.PaymentStatus(status)

		payments = append(payments, payment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payments: %w", err)
	}

	return payments, nil
}
