package dummydb

import (
	"sort"

	"github.com/jkimani/karo/core/fees"
)

type ledgerRepository struct {
	db *paymentTable
}

var _ fees.LedgerRepository = (*ledgerRepository)(nil) // interface compliance check

func NewLedgerRepository(db *DB) fees.LedgerRepository {
	return &ledgerRepository{db: db.payment}
}

func (repo *ledgerRepository) RecordPayment(p fees.Payment) (fees.Payment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.table[p.ID] = &p
	return p, nil
}

func (repo *ledgerRepository) GetPayment(id string) (fees.Payment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if p, ok := repo.db.table[id]; ok {
		return *p, nil
	}
	return fees.Payment{}, fees.ErrPaymentNotFound
}

func (repo *ledgerRepository) PaymentsByStudent(studentID string) ([]fees.Payment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var payments []fees.Payment
	for _, p := range repo.db.table {
		if p.StudentID == studentID {
			payments = append(payments, *p)
		}
	}
	sort.Slice(payments, func(i, j int) bool { return payments[i].CreatedAt.Before(payments[j].CreatedAt) })
	return payments, nil
}

func (repo *ledgerRepository) DeletePayment(id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return fees.ErrPaymentNotFound
	}
	delete(repo.db.table, id)
	return nil
}
