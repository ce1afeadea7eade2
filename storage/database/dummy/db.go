package dummydb

import (
	"sync"

	"github.com/jkimani/karo/core/account"
	"github.com/jkimani/karo/core/fees"
)

type (
	DB struct {
		account *accountTable
		payment *paymentTable
	}

	accountTable struct {
		sync.RWMutex
		table map[string]*account.Account
	}

	paymentTable struct {
		sync.RWMutex
		table map[string]*fees.Payment
	}
)

func Open() (*DB, error) {
	db := &DB{
		account: &accountTable{table: make(map[string]*account.Account)},
		payment: &paymentTable{table: make(map[string]*fees.Payment)},
	}
	return db, nil
}
