package types

type TransactionType string

const (
	TransactionTypeDeposit      TransactionType = "deposit"
	TransactionTypeWithdrawal   TransactionType = "withdrawal"
	TransactionTypePayment      TransactionType = "payment"
	TransactionTypeRefund       TransactionType = "refund"
	TransactionTypeDistribution TransactionType = "distribution"
	TransactionTypeRankBonus    TransactionType = "rank_bonus"
)

// Sign returns the direction a transaction applies to a balance:
// +1 for credits, -1 for debits.
func (t TransactionType) Sign() int {
	switch t {
	case TransactionTypeWithdrawal, TransactionTypePayment:
		return -1
	default:
		return 1
	}
}

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

type DistributionStatus string

const (
	DistributionStatusPending   DistributionStatus = "pending"
	DistributionStatusCompleted DistributionStatus = "completed"
	DistributionStatusFailed    DistributionStatus = "failed"
)
