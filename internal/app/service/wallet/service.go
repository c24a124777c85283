package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ticglobal/tokenledger/internal/models"
	"github.com/ticglobal/tokenledger/pkg/config"
	"github.com/ticglobal/tokenledger/pkg/logctx"
	"github.com/ticglobal/tokenledger/pkg/tool"
	"github.com/ticglobal/tokenledger/pkg/types"
)

var (
	ErrNonPositiveAmount   = errors.New("amount must be positive")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Service applies credits and debits to user wallets. Every mutation is
// paired with an append-only WalletTransaction row, and balance updates
// go through single atomic increments, never read-modify-write.
type Service struct {
	cfg *config.Config
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(cfg *config.Config, db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{cfg: cfg, db: db, log: log}
}

func balanceColumn(token types.TokenSymbol) string {
	switch token {
	case types.TokenTIC:
		return "tic_balance"
	case types.TokenGIC:
		return "gic_balance"
	default:
		return "total_balance"
	}
}

// CreditRequest describes one wallet credit. TransactionID may be a
// deterministic id; a replay then hits the ledger primary key and the
// credit becomes a no-op.
type CreditRequest struct {
	UserID          string
	Token           types.TokenSymbol
	Amount          decimal.Decimal
	TransactionID   string
	Type            types.TransactionType
	Currency        string
	Description     string
	RelatedEntityID string
}

// Credit applies a credit in its own transaction.
func (s *Service) Credit(ctx context.Context, req *CreditRequest) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.CreditTx(ctx, tx, req)
	})
}

// CreditTx applies a credit inside a caller-owned transaction. The
// ledger insert and the balance increment commit or roll back together.
func (s *Service) CreditTx(ctx context.Context, tx *gorm.DB, req *CreditRequest) error {
	if !req.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if req.UserID == "" {
		return fmt.Errorf("credit: user id required")
	}

	txnID := req.TransactionID
	if txnID == "" {
		txnID = tool.GenerateUUIDV7()
	}

	txn := &models.WalletTransaction{
		ID:              txnID,
		UserID:          req.UserID,
		Type:            req.Type,
		Token:           req.Token,
		Amount:          req.Amount,
		Currency:        req.Currency,
		Status:          types.TransactionStatusCompleted,
		RelatedEntityID: req.RelatedEntityID,
		Description:     req.Description,
	}
	res := tx.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(txn)
	if res.Error != nil {
		return fmt.Errorf("failed to create ledger entry: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Already credited under this transaction id.
		logctx.FromCtx(ctx, s.log).Infow("credit replay ignored", "transaction_id", txnID, "user_id", req.UserID)
		return nil
	}

	if err := s.ensureWalletTx(ctx, tx, req.UserID); err != nil {
		return err
	}
	col := balanceColumn(req.Token)
	err := tx.WithContext(ctx).Model(&models.UserWallet{}).
		Where("user_id = ?", req.UserID).
		Updates(map[string]any{
			col:          gorm.Expr(col+" + ?", req.Amount),
			"updated_at": time.Now(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to credit wallet: %w", err)
	}
	return nil
}

// DebitRequest describes one wallet debit. FeeAmount is informational
// and already included in Amount.
type DebitRequest struct {
	UserID          string
	Token           types.TokenSymbol
	Amount          decimal.Decimal
	FeeAmount       decimal.Decimal
	TransactionID   string
	Type            types.TransactionType
	Currency        string
	Description     string
	RelatedEntityID string
}

// Debit applies a balance-checked debit. The guard lives in the UPDATE
// predicate, so two concurrent debits can never jointly overdraw.
func (s *Service) Debit(ctx context.Context, req *DebitRequest) error {
	if !req.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if req.UserID == "" {
		return fmt.Errorf("debit: user id required")
	}

	txnID := req.TransactionID
	if txnID == "" {
		txnID = tool.GenerateUUIDV7()
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txn := &models.WalletTransaction{
			ID:              txnID,
			UserID:          req.UserID,
			Type:            req.Type,
			Token:           req.Token,
			Amount:          req.Amount,
			FeeAmount:       req.FeeAmount,
			Currency:        req.Currency,
			Status:          types.TransactionStatusCompleted,
			RelatedEntityID: req.RelatedEntityID,
			Description:     req.Description,
		}
		res := tx.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(txn)
		if res.Error != nil {
			return fmt.Errorf("failed to create ledger entry: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// Already debited under this transaction id.
			return nil
		}

		col := balanceColumn(req.Token)
		upd := tx.WithContext(ctx).Model(&models.UserWallet{}).
			Where("user_id = ? AND "+col+" >= ?", req.UserID, req.Amount).
			Updates(map[string]any{
				col:          gorm.Expr(col+" - ?", req.Amount),
				"updated_at": time.Now(),
			})
		if upd.Error != nil {
			return fmt.Errorf("failed to debit wallet: %w", upd.Error)
		}
		if upd.RowsAffected == 0 {
			return ErrInsufficientBalance
		}
		return nil
	})
}

func (s *Service) ensureWalletTx(ctx context.Context, tx *gorm.DB, userID string) error {
	err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.UserWallet{UserID: userID}).Error
	if err != nil {
		return fmt.Errorf("failed to ensure wallet row: %w", err)
	}
	return nil
}

// GetWallet returns the cached wallet, or a zero-valued wallet if the
// user has no row yet.
func (s *Service) GetWallet(ctx context.Context, userID string) (*models.UserWallet, error) {
	var w models.UserWallet
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.UserWallet{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// History returns a user's ledger entries, newest first.
func (s *Service) History(ctx context.Context, userID string, from, size int) ([]*models.WalletTransaction, int64, error) {
	if size <= 0 {
		size = 10
	}
	if from < 0 {
		from = 0
	}
	var total int64
	q := s.db.WithContext(ctx).Model(&models.WalletTransaction{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var items []*models.WalletTransaction
	if err := q.Order("created_at desc").Offset(from).Limit(size).Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
