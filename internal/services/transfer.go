package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/sparksfinance/ledger-core/internal/logger"
	"github.com/sparksfinance/ledger-core/internal/models"
	"github.com/sparksfinance/ledger-core/internal/repositories"
)

var (
	// ErrInvalidAmount is returned for a zero or negative transfer amount.
	ErrInvalidAmount = errors.New("transfer amount must be positive")
	// ErrSameAccount is returned when sender and receiver are the same account.
	ErrSameAccount = errors.New("cannot transfer to the same account")
)

// Failure reasons recorded on failed transactions. These are business
// rejections: the call succeeds and the caller inspects the status field.
const (
	ReasonInsufficientBalance = "insufficient balance"
	ReasonAccountInactive     = "account is not active"
	ReasonDailyLimitExceeded  = "daily transfer limit exceeded"
)

// AccountLocker re-reads account rows under exclusive row locks and writes
// balances inside the current unit of work.
type AccountLocker interface {
	GetForUpdate(ctx context.Context, accountID uuid.UUID) (*models.AccountDB, error)
	UpdateBalance(ctx context.Context, accountID uuid.UUID, balance decimal.Decimal) error
}

// TransactionWriter appends transaction records.
type TransactionWriter interface {
	Save(ctx context.Context, txn *models.TransactionDB) error
}

// TransactionReader lists transactions and computes aggregates.
type TransactionReader interface {
	ListByAccount(ctx context.Context, accountID uuid.UUID, filter models.TransactionFilter) ([]models.TransactionDB, error)
	SentTotalSince(ctx context.Context, accountID uuid.UUID, since time.Time) (decimal.Decimal, error)
}

// KafkaWriter defines a Kafka writer abstraction.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// TransferService orchestrates atomic transfers between two accounts.
type TransferService struct {
	runner      TxRunner
	accounts    AccountLocker
	txnWriter   TransactionWriter
	txnReader   TransactionReader
	audit       Auditor
	cache       BalanceCache
	kafkaWriter KafkaWriter
}

func NewTransferService(
	runner TxRunner,
	accounts AccountLocker,
	txnWriter TransactionWriter,
	txnReader TransactionReader,
	audit Auditor,
	cache BalanceCache,
	kafkaWriter KafkaWriter,
) *TransferService {
	return &TransferService{
		runner:      runner,
		accounts:    accounts,
		txnWriter:   txnWriter,
		txnReader:   txnReader,
		audit:       audit,
		cache:       cache,
		kafkaWriter: kafkaWriter,
	}
}

// maxReferenceAttempts bounds regeneration when a generated reference
// collides with an existing transaction row.
const maxReferenceAttempts = 5

// newReference builds an external transaction reference: TXN + yyyymmdd + 8 hex chars.
func newReference() string {
	u := uuid.New()
	return fmt.Sprintf("TXN%s%X", time.Now().UTC().Format("20060102"), u[:4])
}

// Transfer moves amount from sender to receiver as one atomic unit of work.
//
// Input validation failures (non-positive amount, same account, unknown
// account) return an error and leave no record. Business rejections
// (insufficient balance, inactive account, daily limit) commit a failed
// transaction row plus its audit entry and return it with a nil error.
//
// Both rows are locked before the balances are read, always in ascending
// account-id order regardless of transfer direction, so two concurrent
// opposite-direction transfers between the same pair cannot deadlock and
// the check-then-act sequence cannot race.
func (s *TransferService) Transfer(ctx context.Context, actor uuid.UUID, senderID, receiverID uuid.UUID, amount decimal.Decimal, meta RequestMeta) (*models.TransactionDB, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if senderID == receiverID {
		return nil, ErrSameAccount
	}

	var result *models.TransactionDB
	var err error

	// Each attempt generates a fresh reference; a collision with an
	// existing row rolls the whole unit of work back and is retried.
	for attempt := 0; attempt < maxReferenceAttempts; attempt++ {
		result, err = s.attemptTransfer(ctx, actor, senderID, receiverID, amount, meta)
		if err != nil && repositories.IsUniqueViolationOn(err, repositories.ConstraintTransactionsRef) {
			logger.Log.Warnw("transaction reference collision, retrying", "attempt", attempt+1)
			continue
		}
		break
	}
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		logger.Log.Errorw("transfer failed", "sender", senderID, "receiver", receiverID, "amount", amount, "error", err)
		return nil, err
	}

	if result == nil {
		return nil, errors.New("transfer produced no record")
	}

	if result.Status == models.TransactionCompleted {
		if err := s.cache.Invalidate(ctx, senderID, receiverID); err != nil {
			logger.Log.Warnw("failed to invalidate balance cache after transfer", "reference", result.Reference, "error", err)
		}
	}
	s.publishTransfer(ctx, result)

	return result, nil
}

// attemptTransfer runs one unit of work for the transfer.
func (s *TransferService) attemptTransfer(ctx context.Context, actor uuid.UUID, senderID, receiverID uuid.UUID, amount decimal.Decimal, meta RequestMeta) (*models.TransactionDB, error) {
	var result *models.TransactionDB

	err := s.runner.Do(ctx, func(ctx context.Context) error {
		first, second := senderID, receiverID
		if bytes.Compare(second[:], first[:]) < 0 {
			first, second = second, first
		}

		firstAcc, err := s.accounts.GetForUpdate(ctx, first)
		if err != nil {
			return err
		}
		secondAcc, err := s.accounts.GetForUpdate(ctx, second)
		if err != nil {
			return err
		}
		if firstAcc == nil || secondAcc == nil {
			return ErrAccountNotFound
		}

		sender, receiver := firstAcc, secondAcc
		if first != senderID {
			sender, receiver = secondAcc, firstAcc
		}

		txn := &models.TransactionDB{
			TransactionID: uuid.New(),
			Reference:     newReference(),
			SenderID:      senderID,
			ReceiverID:    receiverID,
			Amount:        amount,
			CreatedAt:     time.Now().UTC(),
		}

		if reason, err := s.rejectionReason(ctx, sender, receiver, amount); err != nil {
			return err
		} else if reason != "" {
			txn.Status = models.TransactionFailed
			txn.Reason = reason
			if err := s.txnWriter.Save(ctx, txn); err != nil {
				return err
			}
			if err := s.audit.Record(ctx, actor, models.AuditTransactionFailed, txn.Reference,
				fmt.Sprintf("transfer of %s from %s to %s rejected: %s",
					amount.StringFixed(2), sender.AccountNumber, receiver.AccountNumber, reason),
				meta); err != nil {
				return err
			}
			// The failure record commits; only the balances stay untouched.
			result = txn
			return nil
		}

		senderAfter := sender.Balance.Sub(amount)
		receiverAfter := receiver.Balance.Add(amount)

		txn.Status = models.TransactionCompleted
		txn.SenderBalanceBefore = decimal.NewNullDecimal(sender.Balance)
		txn.SenderBalanceAfter = decimal.NewNullDecimal(senderAfter)
		txn.ReceiverBalanceBefore = decimal.NewNullDecimal(receiver.Balance)
		txn.ReceiverBalanceAfter = decimal.NewNullDecimal(receiverAfter)

		if err := s.accounts.UpdateBalance(ctx, senderID, senderAfter); err != nil {
			return err
		}
		if err := s.accounts.UpdateBalance(ctx, receiverID, receiverAfter); err != nil {
			return err
		}
		if err := s.txnWriter.Save(ctx, txn); err != nil {
			return err
		}
		if err := s.audit.Record(ctx, actor, models.AuditTransactionCompleted, txn.Reference,
			fmt.Sprintf("transfer of %s from %s to %s completed",
				amount.StringFixed(2), sender.AccountNumber, receiver.AccountNumber),
			meta); err != nil {
			return err
		}

		result = txn
		return nil
	})
	return result, err
}

// rejectionReason checks the business rules against state re-read under
// lock. An empty reason means the transfer may proceed.
func (s *TransferService) rejectionReason(ctx context.Context, sender, receiver *models.AccountDB, amount decimal.Decimal) (string, error) {
	if !sender.IsActive || !receiver.IsActive {
		return ReasonAccountInactive, nil
	}
	if sender.Balance.LessThan(amount) {
		return ReasonInsufficientBalance, nil
	}

	dayStart := time.Now().UTC().Truncate(24 * time.Hour)
	sentToday, err := s.txnReader.SentTotalSince(ctx, sender.AccountID, dayStart)
	if err != nil {
		return "", err
	}
	if sentToday.Add(amount).GreaterThan(sender.DailyTransferLimit) {
		return ReasonDailyLimitExceeded, nil
	}

	return "", nil
}

// List returns transactions touching the account, newest first.
func (s *TransferService) List(ctx context.Context, accountID uuid.UUID, filter models.TransactionFilter) ([]models.TransactionDB, error) {
	txns, err := s.txnReader.ListByAccount(ctx, accountID, filter)
	if err != nil {
		logger.Log.Errorw("failed to list transactions", "accountID", accountID, "error", err)
		return nil, err
	}
	return txns, nil
}

// Statement summarizes completed transfers for an account over a period.
type Statement struct {
	Transactions   []models.TransactionDB `json:"transactions"`
	SentTotal      decimal.Decimal        `json:"sent_total"`
	ReceivedTotal  decimal.Decimal        `json:"received_total"`
	NetChange      decimal.Decimal        `json:"net_change"`
	OpeningBalance decimal.Decimal        `json:"opening_balance"`
	ClosingBalance decimal.Decimal        `json:"closing_balance"`
}

// GetStatement builds the account statement for the period: completed
// transactions oldest first, totals, and opening/closing balance derived
// from the current committed balance.
func (s *TransferService) GetStatement(ctx context.Context, acc *models.AccountDB, from, to *time.Time) (*Statement, error) {
	txns, err := s.txnReader.ListByAccount(ctx, acc.AccountID, models.TransactionFilter{
		Status: models.TransactionCompleted,
		From:   from,
		To:     to,
	})
	if err != nil {
		logger.Log.Errorw("failed to build statement", "accountID", acc.AccountID, "error", err)
		return nil, err
	}

	sent, received := decimal.Zero, decimal.Zero
	for _, txn := range txns {
		if txn.SenderID == acc.AccountID {
			sent = sent.Add(txn.Amount)
		} else {
			received = received.Add(txn.Amount)
		}
	}

	// ListByAccount returns newest first; statements read oldest first.
	for i, j := 0, len(txns)-1; i < j; i, j = i+1, j-1 {
		txns[i], txns[j] = txns[j], txns[i]
	}

	net := received.Sub(sent)
	return &Statement{
		Transactions:   txns,
		SentTotal:      sent,
		ReceivedTotal:  received,
		NetChange:      net,
		OpeningBalance: acc.Balance.Sub(net),
		ClosingBalance: acc.Balance,
	}, nil
}

// publishTransfer publishes the transfer outcome to Kafka, best effort.
func (s *TransferService) publishTransfer(ctx context.Context, txn *models.TransactionDB) {
	if s.kafkaWriter == nil {
		logger.Log.Warnw("Kafka writer not configured, skipping publishing", "reference", txn.Reference)
		return
	}

	event := models.TransferEvent{
		TransactionID: txn.TransactionID.String(),
		Reference:     txn.Reference,
		SenderID:      txn.SenderID.String(),
		ReceiverID:    txn.ReceiverID.String(),
		Amount:        txn.Amount.StringFixed(2),
		Status:        txn.Status,
		Reason:        txn.Reason,
		Timestamp:     txn.CreatedAt.Unix(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		logger.Log.Errorw("failed to marshal transfer event", "reference", txn.Reference, "error", err)
		return
	}

	msg := kafka.Message{
		Key:   []byte(txn.Reference),
		Value: data,
	}

	if err := s.kafkaWriter.WriteMessages(ctx, msg); err != nil {
		logger.Log.Errorw("failed to publish transfer event", "reference", txn.Reference, "error", err)
	} else {
		logger.Log.Infow("transfer event published", "reference", txn.Reference, "status", txn.Status)
	}
}
