package sqlxrepos

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jkimani/karo/core/fees"
)

type ledgerRepository struct {
	db *sqlx.DB
}

var _ fees.LedgerRepository = (*ledgerRepository)(nil) // interface compliance check

func NewLedgerRepository(db *sqlx.DB) fees.LedgerRepository {
	return &ledgerRepository{db: db}
}

type paymentRow struct {
	ID         string    `db:"id"`
	StudentID  string    `db:"student_id"`
	Amount     int       `db:"amount"`
	Method     string    `db:"method"`
	Reference  string    `db:"reference"`
	ItemType   string    `db:"item_type"`
	Quantity   float64   `db:"quantity"`
	UnitValue  float64   `db:"unit_value"`
	RecordedBy string    `db:"recorded_by"`
	CreatedAt  time.Time `db:"created_at"`
}

func (row paymentRow) payment() fees.Payment {
	return fees.Payment{
		ID:         row.ID,
		StudentID:  row.StudentID,
		Amount:     row.Amount,
		Method:     fees.PaymentMethod(row.Method),
		Reference:  row.Reference,
		ItemType:   row.ItemType,
		Quantity:   row.Quantity,
		UnitValue:  row.UnitValue,
		RecordedBy: row.RecordedBy,
		CreatedAt:  row.CreatedAt,
	}
}

const paymentCols = `id, student_id, amount, method, reference, item_type, quantity, unit_value, recorded_by, created_at`

func (repo *ledgerRepository) RecordPayment(p fees.Payment) (fees.Payment, error) {
	q := `
		INSERT INTO payment (` + paymentCols + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := repo.db.Exec(q,
		p.ID, p.StudentID, p.Amount, string(p.Method), p.Reference,
		p.ItemType, p.Quantity, p.UnitValue, p.RecordedBy, p.CreatedAt,
	)
	if err != nil {
		return fees.Payment{}, dbErr(err, "recording payment")
	}
	return p, nil
}

func (repo *ledgerRepository) GetPayment(id string) (fees.Payment, error) {
	var row paymentRow
	if err := repo.db.Get(&row, `SELECT `+paymentCols+` FROM payment WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return fees.Payment{}, fees.ErrPaymentNotFound
		}
		return fees.Payment{}, dbErr(err, "getting payment")
	}
	return row.payment(), nil
}

func (repo *ledgerRepository) PaymentsByStudent(studentID string) ([]fees.Payment, error) {
	var rows []paymentRow
	q := `SELECT ` + paymentCols + ` FROM payment WHERE student_id = $1 ORDER BY created_at`
	if err := repo.db.Select(&rows, q, studentID); err != nil {
		return nil, dbErr(err, "querying payments")
	}
	payments := make([]fees.Payment, len(rows))
	for i, row := range rows {
		payments[i] = row.payment()
	}
	return payments, nil
}

func (repo *ledgerRepository) DeletePayment(id string) error {
	res, err := repo.db.Exec(`DELETE FROM payment WHERE id = $1`, id)
	if err != nil {
		return dbErr(err, "deleting payment")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fees.ErrPaymentNotFound
	}
	return nil
}
