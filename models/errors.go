package models

import "errors"

var (
	ErrAccountTypeNotFound    = errors.New("account type not found")
	ErrAccountCodeExists      = errors.New("account code already exists")
	ErrAccountHasChildren     = errors.New("cannot delete an account that has sub-accounts")
	ErrAccountInUse           = errors.New("cannot delete an account that has journal entries")
	ErrAccountFrozen          = errors.New("opening balance and account type cannot change once entries are posted")
	ErrAccountInactive        = errors.New("account is inactive")
	ErrAccountNoPosting       = errors.New("account does not allow posting")
	ErrSystemAccountMissing   = errors.New("system account is not configured")
	ErrPostedEntryImmutable   = errors.New("posted journal entries cannot be modified")
	ErrPostedEntryDelete      = errors.New("cannot delete posted journal entries")
	ErrConcurrentPost         = errors.New("journal entry was posted concurrently")
	ErrEntryNotPosted         = errors.New("only posted journal entries can be reversed")
	ErrEntryAlreadyReversed   = errors.New("journal entry is already reversed")
	ErrPeriodClosed           = errors.New("financial period is closed")
	ErrPeriodOverlap          = errors.New("financial period overlaps an existing period")
	ErrDocumentNotDraft       = errors.New("only draft documents can be changed")
	ErrInvalidStatus          = errors.New("operation not allowed in the current status")
	ErrOverpayment            = errors.New("payment exceeds the balance due")
	ErrDocumentHasPayments    = errors.New("cannot cancel a document that has payments")
	ErrPartyInUse             = errors.New("cannot delete a contact that has invoices or bills")
	ErrBankAccountLinkExists  = errors.New("ledger account is already linked to a bank account")
	ErrAccountLinkedToBank    = errors.New("cannot delete an account linked to a bank account")
	ErrBankAccountHasPayments = errors.New("bank account has payments; deactivate it instead")
)
