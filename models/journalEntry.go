package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/ledger"
	"github.com/mmdatafocus/ledger_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const journalNumberPrefix = "JE-"

type JournalEntry struct {
	ID             int               `gorm:"primary_key" json:"id"`
	CompanyId      string            `gorm:"size:64;not null;uniqueIndex:uniq_journal_number;index:idx_journal_date,priority:1" json:"company_id"`
	EntryNumber    string            `gorm:"size:30;not null;uniqueIndex:uniq_journal_number" json:"entry_number"`
	SequenceNo     int64             `gorm:"not null;index" json:"sequence_no"`
	EntryDate      time.Time         `gorm:"not null;index:idx_journal_date,priority:2" json:"entry_date"`
	Reference      string            `gorm:"size:100" json:"reference"`
	Description    string            `gorm:"type:text" json:"description"`
	TotalAmount    decimal.Decimal   `gorm:"type:decimal(20,4);not null;default:0" json:"total_amount"`
	IsPosted       bool              `gorm:"not null;default:false;index" json:"is_posted"`
	PostedAt       *time.Time        `json:"posted_at"`
	PostedBy       *int              `json:"posted_by"`
	PostedByName   string            `gorm:"size:200" json:"posted_by_name"`
	IsRecurring    bool              `gorm:"not null;default:false" json:"is_recurring"`
	SourceType     JournalSourceType `gorm:"size:20;not null;default:'MANUAL';index" json:"source_type"`
	SourceId       *int              `gorm:"index" json:"source_id"`
	ReversalOfId   *int              `gorm:"index" json:"reversal_of_id"`
	ReversedById   *int              `json:"reversed_by_id"`
	ReversalReason string            `gorm:"size:255" json:"reversal_reason"`
	CreatedBy      int               `json:"created_by"`
	Lines          []JournalLineItem `gorm:"foreignKey:JournalEntryId" json:"lines"`
	CreatedAt      time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

type JournalLineItem struct {
	ID             int             `gorm:"primary_key" json:"id"`
	CompanyId      string          `gorm:"size:64;not null;index" json:"company_id"`
	JournalEntryId int             `gorm:"not null;index" json:"journal_entry_id"`
	LineNo         int             `gorm:"not null" json:"line_no"`
	AccountId      int             `gorm:"not null;index" json:"account_id"`
	Description    string          `gorm:"size:255" json:"description"`
	DebitAmount    decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"debit_amount"`
	CreditAmount   decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"credit_amount"`
	Account        *AccountSummary `gorm:"-" json:"account,omitempty"`
}

// AccountSummary is what a journal line shows of its account.
type AccountSummary struct {
	ID         int             `json:"id"`
	Code       string          `json:"code"`
	Name       string          `json:"name"`
	Category   AccountCategory `json:"category"`
	NormalSide NormalSide      `json:"normal_side"`
}

type NewJournalEntry struct {
	EntryDate   time.Time        `json:"entry_date" validate:"required"`
	Reference   string           `json:"reference" validate:"max=100"`
	Description string           `json:"description"`
	IsRecurring bool             `json:"is_recurring"`
	Lines       []NewJournalLine `json:"lines" validate:"dive"`
}

type NewJournalLine struct {
	AccountId    int             `json:"account_id" validate:"required"`
	Description  string          `json:"description" validate:"max=255"`
	DebitAmount  decimal.Decimal `json:"debit_amount"`
	CreditAmount decimal.Decimal `json:"credit_amount"`
}

type JournalEntryFilter struct {
	Status    JournalStatusFilter `form:"status"`
	From      *time.Time          `form:"from" time_format:"2006-01-02"`
	To        *time.Time          `form:"to" time_format:"2006-01-02"`
	Search    string              `form:"search"`
	MinAmount *decimal.Decimal    `form:"-"`
	MaxAmount *decimal.Decimal    `form:"-"`
	AccountId int                 `form:"account_id"`
}

type JournalEntriesConnection struct {
	Edges    []*JournalEntriesEdge `json:"edges"`
	PageInfo *PageInfo             `json:"pageInfo"`
}

type JournalEntriesEdge struct {
	Cursor string        `json:"cursor"`
	Node   *JournalEntry `json:"node"`
}

func (je JournalEntry) GetCompanyId() string {
	return je.CompanyId
}

func (je *JournalEntry) BeforeDelete(tx *gorm.DB) error {
	if je.IsPosted {
		return ErrPostedEntryDelete
	}
	return nil
}

func (a *Account) Summary() *AccountSummary {
	return &AccountSummary{ID: a.ID, Code: a.Code, Name: a.Name, Category: a.Category, NormalSide: a.NormalSide}
}

// LedgerLines converts stored lines for the pure ledger rules.
func (je *JournalEntry) LedgerLines() []ledger.Line {
	return lineItemsToLedger(je.Lines)
}

func lineItemsToLedger(items []JournalLineItem) []ledger.Line {
	lines := make([]ledger.Line, 0, len(items))
	for _, l := range items {
		lines = append(lines, ledger.Line{AccountId: l.AccountId, Debit: l.DebitAmount, Credit: l.CreditAmount})
	}
	return lines
}

func newLinesToLedger(items []NewJournalLine) []ledger.Line {
	lines := make([]ledger.Line, 0, len(items))
	for _, l := range items {
		lines = append(lines, ledger.Line{AccountId: l.AccountId, Debit: l.DebitAmount, Credit: l.CreditAmount})
	}
	return lines
}

// validate input for both create & update. (id = 0 for create)
func (input *NewJournalEntry) validate(ctx context.Context, companyId string, id int) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.EntryDate.IsZero() {
		return utils.InvalidInput("entry date is required")
	}
	if id > 0 {
		if err := utils.ValidateResourceId[JournalEntry](ctx, companyId, id); err != nil {
			return err
		}
	}
	if err := ledger.ValidateLines(newLinesToLedger(input.Lines)); err != nil {
		return err
	}
	accountIds := make([]int, 0, len(input.Lines))
	for _, l := range input.Lines {
		accountIds = append(accountIds, l.AccountId)
	}
	_, err := loadPostableAccounts(ctx, config.GetDB(), companyId, accountIds, false)
	return err
}

// loadPostableAccounts checks that every account exists in the company, is active and allows posting.
func loadPostableAccounts(ctx context.Context, tx *gorm.DB, companyId string, accountIds []int, lock bool) (map[int]*Account, error) {
	ids := utils.UniqueSlice(accountIds)
	var accounts []*Account
	dbCtx := tx.WithContext(ctx).Where("company_id = ? AND id IN ?", companyId, ids)
	if lock {
		dbCtx = dbCtx.Clauses(lockForUpdate()).Order("id")
	}
	if err := dbCtx.Find(&accounts).Error; err != nil {
		return nil, err
	}
	byId := make(map[int]*Account, len(accounts))
	for _, a := range accounts {
		byId[a.ID] = a
	}
	for i, id := range accountIds {
		a, ok := byId[id]
		if !ok {
			return nil, &ledger.ValidationError{Rule: ledger.RuleAccount, Line: i + 1, Description: "account not found"}
		}
		if err := a.CheckPostable(); err != nil {
			return nil, &ledger.ValidationError{Rule: ledger.RuleAccount, Line: i + 1, Description: err.Error()}
		}
	}
	return byId, nil
}

func buildLineItems(companyId string, journalEntryId int, input []NewJournalLine) []JournalLineItem {
	items := make([]JournalLineItem, 0, len(input))
	for i, l := range input {
		items = append(items, JournalLineItem{
			CompanyId:      companyId,
			JournalEntryId: journalEntryId,
			LineNo:         i + 1,
			AccountId:      l.AccountId,
			Description:    strings.TrimSpace(l.Description),
			DebitAmount:    l.DebitAmount,
			CreditAmount:   l.CreditAmount,
		})
	}
	return items
}

func nextJournalNumber(ctx context.Context, companyId string, date time.Time) (int64, string, error) {
	seq, err := utils.GetSequence[JournalEntry](ctx, companyId)
	if err != nil {
		return 0, "", err
	}
	return seq, utils.GenerateDocumentNumber(journalNumberPrefix, date, seq), nil
}

// CreateJournalEntry saves a draft; with postNow the entry is posted in the same transaction.
func CreateJournalEntry(ctx context.Context, input *NewJournalEntry, postNow bool) (*JournalEntry, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	if postNow && !config.PostOnCreateAllowed() {
		return nil, fmt.Errorf("%w: posting on create is disabled; create the draft and post it", utils.ErrorForbidden)
	}
	if err := input.validate(ctx, companyId, 0); err != nil {
		return nil, err
	}
	if postNow {
		if err := ledger.CheckBalanced(newLinesToLedger(input.Lines)); err != nil {
			return nil, err
		}
	}

	entry, err := newJournalEntry(ctx, companyId, input, JournalSourceManual, nil)
	if err != nil {
		return nil, err
	}

	if postNow {
		err = WithPostingLock(ctx, companyId, func(tx *gorm.DB) error {
			if err := tx.WithContext(ctx).Create(entry).Error; err != nil {
				return err
			}
			return postJournalEntryTx(ctx, tx, companyId, entry.ID, entry)
		})
	} else {
		err = config.GetDB().WithContext(ctx).Create(entry).Error
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func newJournalEntry(ctx context.Context, companyId string, input *NewJournalEntry, sourceType JournalSourceType, sourceId *int) (*JournalEntry, error) {
	seq, number, err := nextJournalNumber(ctx, companyId, input.EntryDate)
	if err != nil {
		return nil, err
	}
	userId, _ := utils.GetUserIdFromContext(ctx)
	debit, _ := ledger.Totals(newLinesToLedger(input.Lines))
	return &JournalEntry{
		CompanyId:   companyId,
		EntryNumber: number,
		SequenceNo:  seq,
		EntryDate:   input.EntryDate.UTC(),
		Reference:   strings.TrimSpace(input.Reference),
		Description: input.Description,
		TotalAmount: debit,
		IsRecurring: input.IsRecurring,
		SourceType:  sourceType,
		SourceId:    sourceId,
		CreatedBy:   userId,
		Lines:       buildLineItems(companyId, 0, input.Lines),
	}, nil
}

// UpdateJournalEntry replaces a draft's header and lines. Posted entries are immutable.
func UpdateJournalEntry(ctx context.Context, id int, input *NewJournalEntry) (*JournalEntry, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	if err := input.validate(ctx, companyId, id); err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.Begin()
	var entry JournalEntry
	if err := tx.WithContext(ctx).Clauses(lockForUpdate()).
		Where("company_id = ? AND id = ?", companyId, id).First(&entry).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	if entry.IsPosted {
		tx.Rollback()
		return nil, ErrPostedEntryImmutable
	}

	debit, _ := ledger.Totals(newLinesToLedger(input.Lines))
	if err := tx.WithContext(ctx).Model(&entry).Updates(map[string]interface{}{
		"EntryDate":   input.EntryDate.UTC(),
		"Reference":   strings.TrimSpace(input.Reference),
		"Description": input.Description,
		"IsRecurring": input.IsRecurring,
		"TotalAmount": debit,
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.WithContext(ctx).Where("company_id = ? AND journal_entry_id = ?", companyId, id).
		Delete(&JournalLineItem{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	lines := buildLineItems(companyId, id, input.Lines)
	if err := tx.WithContext(ctx).Create(&lines).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	entry.Lines = lines
	return &entry, nil
}

// DeleteJournalEntry removes a draft and its lines.
func DeleteJournalEntry(ctx context.Context, id int) (*JournalEntry, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}

	db := config.GetDB()
	tx := db.Begin()
	var entry JournalEntry
	if err := tx.WithContext(ctx).Clauses(lockForUpdate()).
		Where("company_id = ? AND id = ?", companyId, id).First(&entry).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	if entry.IsPosted {
		tx.Rollback()
		return nil, ErrPostedEntryDelete
	}
	if err := tx.WithContext(ctx).Where("company_id = ? AND journal_entry_id = ?", companyId, id).
		Delete(&JournalLineItem{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Delete(&entry).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	return &entry, tx.Commit().Error
}

// DuplicateJournalEntry copies an entry's lines into a new draft dated date (recurring entries).
func DuplicateJournalEntry(ctx context.Context, id int, date *time.Time) (*JournalEntry, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	source, err := GetJournalEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	input := &NewJournalEntry{
		EntryDate:   time.Now().UTC(),
		Reference:   source.Reference,
		Description: source.Description,
		IsRecurring: source.IsRecurring,
	}
	if date != nil && !date.IsZero() {
		input.EntryDate = *date
	}
	for _, l := range source.Lines {
		input.Lines = append(input.Lines, NewJournalLine{
			AccountId:    l.AccountId,
			Description:  l.Description,
			DebitAmount:  l.DebitAmount,
			CreditAmount: l.CreditAmount,
		})
	}
	return CreateJournalEntry(ctx, input, false)
}

func GetJournalEntry(ctx context.Context, id int) (*JournalEntry, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	db := config.GetDB()
	var entry JournalEntry
	err := db.WithContext(ctx).Where("company_id = ?", companyId).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("line_no") }).
		First(&entry, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// ListJournalEntries pages newest first by (entry_date, id).
func ListJournalEntries(ctx context.Context, filter JournalEntryFilter, limit int, after *string) (*JournalEntriesConnection, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&JournalEntry{}).Where("journal_entries.company_id = ?", companyId)
	switch filter.Status {
	case JournalStatusPosted:
		dbCtx = dbCtx.Where("journal_entries.is_posted = ?", true)
	case JournalStatusDraft:
		dbCtx = dbCtx.Where("journal_entries.is_posted = ?", false)
	case JournalStatusRecurring:
		dbCtx = dbCtx.Where("journal_entries.is_recurring = ?", true)
	case JournalStatusAll:
	default:
		return nil, utils.InvalidInput("invalid status filter %q", filter.Status)
	}
	if filter.From != nil {
		dbCtx = dbCtx.Where("journal_entries.entry_date >= ?", utils.StartOfDay(*filter.From))
	}
	if filter.To != nil {
		dbCtx = dbCtx.Where("journal_entries.entry_date <= ?", utils.EndOfDay(*filter.To))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		like := "%" + s + "%"
		dbCtx = dbCtx.Where("(journal_entries.entry_number LIKE ? OR journal_entries.reference LIKE ? OR journal_entries.description LIKE ?)", like, like, like)
	}
	if filter.MinAmount != nil {
		dbCtx = dbCtx.Where("journal_entries.total_amount >= ?", *filter.MinAmount)
	}
	if filter.MaxAmount != nil {
		dbCtx = dbCtx.Where("journal_entries.total_amount <= ?", *filter.MaxAmount)
	}
	if filter.AccountId > 0 {
		dbCtx = dbCtx.Where("EXISTS (SELECT 1 FROM journal_line_items li WHERE li.journal_entry_id = journal_entries.id AND li.account_id = ?)", filter.AccountId)
	}

	if after != nil && *after != "" {
		cursorValue, cursorId := DecodeCompositeCursor(after)
		cursorDate, err := time.Parse(time.RFC3339Nano, cursorValue)
		if cursorId == 0 || err != nil {
			return nil, utils.InvalidInput("invalid cursor")
		}
		dbCtx = dbCtx.Where("(journal_entries.entry_date < ? OR (journal_entries.entry_date = ? AND journal_entries.id < ?))", cursorDate, cursorDate, cursorId)
	}

	var results []*JournalEntry
	if err := dbCtx.Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("line_no") }).
		Order("journal_entries.entry_date DESC").Order("journal_entries.id DESC").
		Limit(limit + 1).Find(&results).Error; err != nil {
		return nil, err
	}

	hasNextPage := len(results) > limit
	if hasNextPage {
		results = results[:limit]
	}
	edges := make([]*JournalEntriesEdge, len(results))
	for i, r := range results {
		edges[i] = &JournalEntriesEdge{
			Cursor: EncodeCompositeCursor(r.EntryDate.Format(time.RFC3339Nano), r.ID),
			Node:   r,
		}
	}
	pageInfo := &PageInfo{HasNextPage: &hasNextPage}
	if len(edges) > 0 {
		pageInfo.StartCursor = edges[0].Cursor
		pageInfo.EndCursor = edges[len(edges)-1].Cursor
	}
	return &JournalEntriesConnection{Edges: edges, PageInfo: pageInfo}, nil
}
