package models

import "github.com/mmdatafocus/ledger_backend/utils"

type Identifier interface {
	GetId() int
}

// Data is what a batched loader returns per key.
type Data interface {
	Identifier
	GetDefault(int) Data
}

func (a Account) GetId() int {
	return a.ID
}

// GetDefault stands in for an id that did not resolve (deleted or another company's account).
func (a Account) GetDefault(id int) Data {
	return Account{
		ID:           id,
		Name:         "Unknown account",
		IsActive:     utils.NewFalse(),
		AllowPosting: utils.NewFalse(),
	}
}
