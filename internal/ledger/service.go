package ledger

import (
	"context"
	"fmt"
	"time"

	"ferryline/internal/pricing"
	"ferryline/internal/shared/apperrors"
	"ferryline/pkg/logger"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ConnectionBalances moves an agent connection's balance inside the
// posting transaction and returns the new balance.
type ConnectionBalances interface {
	AddBalance(ctx context.Context, tx *gorm.DB, id uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error)
}

type Service interface {
	ActiveSettings(ctx context.Context, tx *gorm.DB) (*PlatformSettings, error)
	UpdateSettings(ctx context.Context, req UpdateSettingsRequest) (*PlatformSettings, error)
	PostIssue(ctx context.Context, tx *gorm.DB, in IssueInput) (*IssueResult, error)
	Reverse(ctx context.Context, tx *gorm.DB, r Reversal) ([]CommissionEntry, error)
	Balance(ctx context.Context, party Party, partyID *uuid.UUID) (*PartyBalance, error)
	Entries(ctx context.Context, filter EntryFilter) (*PaginatedEntries, error)
	Statement(ctx context.Context, party Party, partyID *uuid.UUID, from, to time.Time) (*Statement, error)
}

type service struct {
	repo        Repository
	connections ConnectionBalances
	node        *snowflake.Node
	now         func() time.Time
	log         *logger.Logger
}

func NewService(repo Repository, connections ConnectionBalances, node *snowflake.Node) Service {
	return &service{
		repo:        repo,
		connections: connections,
		node:        node,
		now:         time.Now,
		log:         logger.GetDefault(),
	}
}

func (s *service) ActiveSettings(ctx context.Context, tx *gorm.DB) (*PlatformSettings, error) {
	settings, err := s.repo.ActiveSettings(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to load platform settings: %w", err)
	}
	return settings, nil
}

func (s *service) UpdateSettings(ctx context.Context, req UpdateSettingsRequest) (*PlatformSettings, error) {
	if req.CommissionPerBooking.IsNegative() {
		return nil, apperrors.Validation("commission_per_booking", "must not be negative")
	}
	current, err := s.repo.ActiveSettings(ctx, nil)
	if err != nil {
		return nil, err
	}
	next := &PlatformSettings{
		CommissionPerBooking: pricing.Money(req.CommissionPerBooking),
		Currency:             current.Currency,
		RetainFeeOnRefund:    req.RetainFeeOnRefund,
	}
	if req.Currency != "" {
		next.Currency = req.Currency
	}
	if err := s.repo.ReplaceSettings(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to update platform settings: %w", err)
	}
	return next, nil
}

// PostIssue records the payment and posts the commission entries for an
// issued booking. It must run in the same transaction as the status flip.
func (s *service) PostIssue(ctx context.Context, tx *gorm.DB, in IssueInput) (*IssueResult, error) {
	if !in.Method.IsValid() {
		return nil, apperrors.Validation("payment_method", "must be cash or bank_transfer")
	}
	settings, err := s.ActiveSettings(ctx, tx)
	if err != nil {
		return nil, err
	}
	commission := pricing.Money(settings.CommissionPerBooking)
	now := s.now()

	txn := &PaymentTransaction{
		BookingID:         in.BookingID,
		BookingCode:       in.BookingCode,
		ScheduleID:        in.ScheduleID,
		OwnerID:           in.OwnerID,
		Amount:            pricing.Money(in.GrandTotal),
		Currency:          in.Currency,
		Method:            in.Method,
		Status:            "COMPLETED",
		Reference:         "TXN-" + s.node.Generate().String(),
		ExternalReference: in.ExternalReference,
		Notes:             in.Notes,
		ProcessedBy:       in.ProcessedBy,
	}
	if err := s.repo.CreateTransaction(ctx, tx, txn); err != nil {
		return nil, fmt.Errorf("failed to record payment transaction: %w", err)
	}

	ownerID := in.OwnerID
	txnID := txn.ID
	entries := make([]CommissionEntry, 0, 3)

	app, err := s.appendLookback(ctx, tx, CommissionEntry{
		TransactionID: &txnID,
		BookingID:     in.BookingID,
		Party:         PartyAppOwner,
		FromOwnerID:   &ownerID,
		ToAppOwner:    true,
		EntryType:     EntryCredit,
		Amount:        commission,
		Currency:      settings.Currency,
		Description:   fmt.Sprintf("Commission for booking %s", in.BookingCode),
		EntryDate:     now,
	})
	if err != nil {
		return nil, err
	}
	entries = append(entries, *app)

	owner, err := s.appendLookback(ctx, tx, CommissionEntry{
		TransactionID: &txnID,
		BookingID:     in.BookingID,
		Party:         PartyBoatOwner,
		PartyID:       &ownerID,
		FromOwnerID:   &ownerID,
		ToAppOwner:    true,
		EntryType:     EntryDebit,
		Amount:        commission,
		Currency:      settings.Currency,
		Description:   fmt.Sprintf("Commission owed for booking %s", in.BookingCode),
		EntryDate:     now,
	})
	if err != nil {
		return nil, err
	}
	entries = append(entries, *owner)

	if in.Agent != nil {
		agentID, connID := in.Agent.AgentID, in.Agent.ConnectionID
		agent, err := s.appendConnection(ctx, tx, CommissionEntry{
			TransactionID: &txnID,
			BookingID:     in.BookingID,
			Party:         PartyAgent,
			PartyID:       &agentID,
			ConnectionID:  &connID,
			FromOwnerID:   &ownerID,
			EntryType:     EntryCredit,
			Amount:        pricing.Money(in.GrandTotal),
			Currency:      in.Currency,
			Description:   fmt.Sprintf("Payable to owner for booking %s", in.BookingCode),
			EntryDate:     now,
		})
		if err != nil {
			return nil, err
		}
		entries = append(entries, *agent)
	}

	return &IssueResult{
		TransactionID:    txn.ID,
		Reference:        txn.Reference,
		CommissionAmount: commission,
		OwnerAmount:      pricing.Money(in.GrandTotal.Sub(commission)),
		Entries:          entries,
	}, nil
}

// Reverse offsets the booking's postings. Commission lines are scaled by
// r.Ratio; the agent payable is reduced by r.Removed, or cleared when the
// whole booking goes. Each original is reversed against what is still
// outstanding on it, so repeated partial cancels never reverse more than
// was posted.
func (s *service) Reverse(ctx context.Context, tx *gorm.DB, r Reversal) ([]CommissionEntry, error) {
	one := decimal.NewFromInt(1)
	if !r.Ratio.IsPositive() || r.Ratio.GreaterThan(one) {
		return nil, apperrors.Validation("ratio", "must be in (0, 1]")
	}
	if r.Removed.IsNegative() {
		return nil, apperrors.Validation("removed", "must not be negative")
	}
	full := r.Ratio.Equal(one)
	existing, err := s.repo.EntriesForBooking(ctx, tx, r.BookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking entries: %w", err)
	}
	settings, err := s.ActiveSettings(ctx, tx)
	if err != nil {
		return nil, err
	}

	reversed := make(map[int64]decimal.Decimal)
	for _, e := range existing {
		if e.ReversesID != nil {
			reversed[*e.ReversesID] = reversed[*e.ReversesID].Add(e.Amount)
		}
	}

	now := s.now()
	var posted []CommissionEntry
	for _, orig := range existing {
		if orig.ReversesID != nil {
			continue
		}
		if settings.RetainFeeOnRefund && orig.Party != PartyAgent {
			continue
		}
		outstanding := orig.Amount.Sub(reversed[orig.ID])
		var amount decimal.Decimal
		switch {
		case full:
			amount = pricing.Money(outstanding)
		case orig.Party == PartyAgent:
			amount = pricing.Money(decimal.Min(r.Removed, outstanding))
		default:
			amount = pricing.Money(outstanding.Mul(r.Ratio))
		}
		if !amount.IsPositive() {
			continue
		}

		origID := orig.ID
		entry := CommissionEntry{
			TransactionID: orig.TransactionID,
			BookingID:     r.BookingID,
			Party:         orig.Party,
			PartyID:       orig.PartyID,
			ConnectionID:  orig.ConnectionID,
			FromOwnerID:   orig.FromOwnerID,
			ToAppOwner:    orig.ToAppOwner,
			EntryType:     orig.EntryType.Opposite(),
			Amount:        amount,
			Currency:      orig.Currency,
			Description:   fmt.Sprintf("Reversal of entry %d: %s", orig.ID, r.Reason),
			EntryDate:     now,
			ReversesID:    &origID,
		}

		var saved *CommissionEntry
		if orig.Party == PartyAgent && orig.ConnectionID != nil {
			saved, err = s.appendConnection(ctx, tx, entry)
		} else {
			saved, err = s.appendLookback(ctx, tx, entry)
		}
		if err != nil {
			return nil, err
		}
		posted = append(posted, *saved)
	}
	return posted, nil
}

// appendLookback derives the running balance from the party's latest entry
// under the party's advisory lock.
func (s *service) appendLookback(ctx context.Context, tx *gorm.DB, entry CommissionEntry) (*CommissionEntry, error) {
	if err := s.repo.LockParty(ctx, tx, entry.Party, entry.PartyID); err != nil {
		return nil, fmt.Errorf("failed to lock ledger party: %w", err)
	}
	last, err := s.repo.LastBalance(ctx, tx, entry.Party, entry.PartyID)
	if err != nil {
		return nil, fmt.Errorf("failed to read running balance: %w", err)
	}
	entry.RunningBalance = last.Add(entry.EntryType.Signed(entry.Amount))
	if err := s.repo.Append(ctx, tx, &entry); err != nil {
		return nil, fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return &entry, nil
}

// appendConnection uses the agent connection's balance as the running balance.
func (s *service) appendConnection(ctx context.Context, tx *gorm.DB, entry CommissionEntry) (*CommissionEntry, error) {
	balance, err := s.connections.AddBalance(ctx, tx, *entry.ConnectionID, entry.EntryType.Signed(entry.Amount))
	if err != nil {
		return nil, err
	}
	entry.RunningBalance = balance
	if err := s.repo.Append(ctx, tx, &entry); err != nil {
		return nil, fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return &entry, nil
}

// Balance is the lookback balance for app and owner parties. Agents can
// hold several connections, so their balance is the net of all entries.
func (s *service) Balance(ctx context.Context, party Party, partyID *uuid.UUID) (*PartyBalance, error) {
	if err := checkParty(party, partyID); err != nil {
		return nil, err
	}
	var (
		balance decimal.Decimal
		err     error
	)
	if party == PartyAgent {
		balance, err = s.repo.NetBefore(ctx, party, partyID, nil)
	} else {
		balance, err = s.repo.LastBalance(ctx, nil, party, partyID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read balance: %w", err)
	}
	return &PartyBalance{Party: party, PartyID: partyID, Balance: pricing.Money(balance)}, nil
}

func (s *service) Entries(ctx context.Context, filter EntryFilter) (*PaginatedEntries, error) {
	if filter.Party != "" {
		if err := checkParty(filter.Party, filter.PartyID); err != nil {
			return nil, err
		}
	}
	list, total, err := s.repo.ListEntries(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	page, limit := filter.Page, filter.Limit
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}
	return &PaginatedEntries{Entries: list, TotalCount: total, Page: page, Limit: limit}, nil
}

// Statement covers [from, to).
func (s *service) Statement(ctx context.Context, party Party, partyID *uuid.UUID, from, to time.Time) (*Statement, error) {
	if err := checkParty(party, partyID); err != nil {
		return nil, err
	}
	if !to.After(from) {
		return nil, apperrors.Validation("to", "must be after from")
	}

	opening, err := s.repo.NetBefore(ctx, party, partyID, &from)
	if err != nil {
		return nil, fmt.Errorf("failed to compute opening balance: %w", err)
	}
	credits, debits, count, err := s.repo.Totals(ctx, party, partyID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to total statement: %w", err)
	}

	return &Statement{
		Party:          party,
		PartyID:        partyID,
		From:           from,
		To:             to,
		OpeningBalance: pricing.Money(opening),
		Credits:        pricing.Money(credits),
		Debits:         pricing.Money(debits),
		ClosingBalance: pricing.Money(opening.Add(credits).Sub(debits)),
		EntryCount:     count,
	}, nil
}

func checkParty(party Party, partyID *uuid.UUID) error {
	if !party.IsValid() {
		return apperrors.Validation("party", "must be APP_OWNER, BOAT_OWNER or AGENT")
	}
	if party == PartyAppOwner && partyID != nil {
		return apperrors.Validation("party_id", "is not used for APP_OWNER")
	}
	if party != PartyAppOwner && partyID == nil {
		return apperrors.Validation("party_id", "is required")
	}
	return nil
}
