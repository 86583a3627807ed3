package models

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/ledger"
	"github.com/mmdatafocus/ledger_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("github.com/mmdatafocus/ledger_backend/models")

// PostJournalEntry flips a draft to posted exactly once and moves account balances.
func PostJournalEntry(ctx context.Context, id int) (*JournalEntry, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	ctx, span := tracer.Start(ctx, "PostJournalEntry")
	defer span.End()
	span.SetAttributes(attribute.String("company_id", companyId), attribute.Int("journal_entry_id", id))

	var entry JournalEntry
	err := WithPostingLock(ctx, companyId, func(tx *gorm.DB) error {
		return postJournalEntryTx(ctx, tx, companyId, id, &entry)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &entry, nil
}

// postJournalEntryTx must run inside WithPostingLock. out receives the posted entry.
func postJournalEntryTx(ctx context.Context, tx *gorm.DB, companyId string, id int, out *JournalEntry) error {
	var entry JournalEntry
	if err := tx.WithContext(ctx).Clauses(lockForUpdate()).
		Where("company_id = ? AND id = ?", companyId, id).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorRecordNotFound
		}
		return err
	}
	if err := tx.WithContext(ctx).Where("company_id = ? AND journal_entry_id = ?", companyId, id).
		Order("line_no").Find(&entry.Lines).Error; err != nil {
		return err
	}

	lines := entry.LedgerLines()
	if err := ledger.CanPost(entry.IsPosted, lines); err != nil {
		return err
	}
	if err := checkPeriodOpen(ctx, tx, companyId, entry.EntryDate); err != nil {
		return err
	}

	accountIds := make([]int, 0, len(lines))
	for _, l := range lines {
		accountIds = append(accountIds, l.AccountId)
	}
	accounts, err := loadPostableAccounts(ctx, tx, companyId, accountIds, true)
	if err != nil {
		return err
	}

	deltas := ledger.BalanceDeltas(lines, func(accountId int) ledger.Side {
		return accounts[accountId].Side()
	})
	// update in id order so concurrent postings touching the same accounts never deadlock
	ids := make([]int, 0, len(deltas))
	for accountId := range deltas {
		ids = append(ids, accountId)
	}
	sort.Ints(ids)
	for _, accountId := range ids {
		if err := tx.WithContext(ctx).Model(&Account{}).
			Where("company_id = ? AND id = ?", companyId, accountId).
			UpdateColumn("current_balance", gorm.Expr("current_balance + ?", deltas[accountId])).Error; err != nil {
			return err
		}
	}

	debit, _ := ledger.Totals(lines)
	now := time.Now().UTC()
	userId, _ := utils.GetUserIdFromContext(ctx)
	userName, _ := utils.GetUserNameFromContext(ctx)
	updates := map[string]interface{}{
		"is_posted":      true,
		"posted_at":      now,
		"posted_by_name": userName,
		"total_amount":   debit,
	}
	if userId > 0 {
		updates["posted_by"] = userId
	}
	res := tx.WithContext(ctx).Model(&JournalEntry{}).
		Where("company_id = ? AND id = ? AND is_posted = ?", companyId, id, false).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return ErrConcurrentPost
	}

	entry.IsPosted = true
	entry.PostedAt = &now
	entry.PostedByName = userName
	if userId > 0 {
		entry.PostedBy = &userId
	}
	entry.TotalAmount = debit

	if err := writeLedgerEvent(ctx, tx, LedgerEventJournalPosted, &entry, deltas); err != nil {
		return err
	}

	config.GetLogger().WithFields(logrus.Fields{
		"company_id":     companyId,
		"entry_number":   entry.EntryNumber,
		"total_amount":   debit.String(),
		"correlation_id": correlationIdFromContextOrNew(ctx),
	}).Info("journal entry posted")

	*out = entry
	return nil
}

// ReverseJournalEntry posts a mirror entry (debits and credits swapped) and links both entries.
func ReverseJournalEntry(ctx context.Context, id int, reason string, date *time.Time) (*JournalEntry, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, utils.InvalidInput("reversal reason is required")
	}
	ctx, span := tracer.Start(ctx, "ReverseJournalEntry")
	defer span.End()

	var reversal JournalEntry
	err := WithPostingLock(ctx, companyId, func(tx *gorm.DB) error {
		r, err := reverseJournalEntryTx(ctx, tx, companyId, id, reason, date)
		if err != nil {
			return err
		}
		reversal = *r
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &reversal, nil
}

func reverseJournalEntryTx(ctx context.Context, tx *gorm.DB, companyId string, id int, reason string, date *time.Time) (*JournalEntry, error) {
	var original JournalEntry
	if err := tx.WithContext(ctx).Clauses(lockForUpdate()).
		Where("company_id = ? AND id = ?", companyId, id).First(&original).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	if !original.IsPosted {
		return nil, ErrEntryNotPosted
	}
	if original.ReversedById != nil {
		return nil, ErrEntryAlreadyReversed
	}
	if err := tx.WithContext(ctx).Where("company_id = ? AND journal_entry_id = ?", companyId, id).
		Order("line_no").Find(&original.Lines).Error; err != nil {
		return nil, err
	}

	reversalDate := time.Now().UTC()
	if date != nil && !date.IsZero() {
		reversalDate = *date
	}
	input := &NewJournalEntry{
		EntryDate:   reversalDate,
		Reference:   original.EntryNumber,
		Description: fmt.Sprintf("Reversal of %s: %s", original.EntryNumber, reason),
	}
	for _, l := range ledger.Reverse(original.LedgerLines()) {
		input.Lines = append(input.Lines, NewJournalLine{AccountId: l.AccountId, DebitAmount: l.Debit, CreditAmount: l.Credit})
	}
	for i := range input.Lines {
		input.Lines[i].Description = original.Lines[i].Description
	}

	reversal, err := newJournalEntry(ctx, companyId, input, JournalSourceReversal, &original.ID)
	if err != nil {
		return nil, err
	}
	reversal.ReversalOfId = &original.ID
	reversal.ReversalReason = reason
	if err := tx.WithContext(ctx).Create(reversal).Error; err != nil {
		return nil, err
	}
	if err := postJournalEntryTx(ctx, tx, companyId, reversal.ID, reversal); err != nil {
		return nil, err
	}

	res := tx.WithContext(ctx).Model(&JournalEntry{}).
		Where("company_id = ? AND id = ? AND reversed_by_id IS NULL", companyId, original.ID).
		Updates(map[string]interface{}{"reversed_by_id": reversal.ID, "reversal_reason": reason})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected != 1 {
		return nil, ErrEntryAlreadyReversed
	}
	original.ReversedById = &reversal.ID
	if err := writeLedgerEvent(ctx, tx, LedgerEventJournalReversed, &original, nil); err != nil {
		return nil, err
	}
	return reversal, nil
}

// postSystemEntry creates and posts a journal entry for an invoice, bill or payment.
// It must run inside WithPostingLock.
func postSystemEntry(ctx context.Context, tx *gorm.DB, companyId string, input *NewJournalEntry, sourceType JournalSourceType, sourceId int) (*JournalEntry, error) {
	if err := ledger.CheckBalanced(newLinesToLedger(input.Lines)); err != nil {
		return nil, err
	}
	entry, err := newJournalEntry(ctx, companyId, input, sourceType, &sourceId)
	if err != nil {
		return nil, err
	}
	if err := tx.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, err
	}
	if err := postJournalEntryTx(ctx, tx, companyId, entry.ID, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// mergeLines drops zero legs and folds legs of the same account and side together.
func mergeLines(lines []NewJournalLine) []NewJournalLine {
	type key struct {
		account int
		debit   bool
	}
	index := make(map[key]int)
	out := make([]NewJournalLine, 0, len(lines))
	for _, l := range lines {
		if l.DebitAmount.IsZero() && l.CreditAmount.IsZero() {
			continue
		}
		k := key{account: l.AccountId, debit: l.DebitAmount.IsPositive()}
		if i, ok := index[k]; ok {
			out[i].DebitAmount = out[i].DebitAmount.Add(l.DebitAmount)
			out[i].CreditAmount = out[i].CreditAmount.Add(l.CreditAmount)
			continue
		}
		index[k] = len(out)
		out = append(out, l)
	}
	return out
}
