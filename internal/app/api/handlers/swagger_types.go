package handlers

import (
	"time"

	"github.com/ticglobal/tokenledger/internal/app/service/distribution"
	"github.com/ticglobal/tokenledger/internal/app/service/statistics"
	"github.com/ticglobal/tokenledger/pkg/response"
)

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

// RespRunDistribution wraps distribution.RunResult in the standard envelope.
type RespRunDistribution struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    distribution.RunResult   `json:"data"`
}

// RespDistributionStatus wraps distribution.StatusResult in the standard envelope.
type RespDistributionStatus struct {
	Code    response.APIResponseCode  `json:"code"`
	Message string                    `json:"message"`
	Data    distribution.StatusResult `json:"data"`
}

// RespRepairDistribution wraps distribution.RepairResult in the standard envelope.
type RespRepairDistribution struct {
	Code    response.APIResponseCode  `json:"code"`
	Message string                    `json:"message"`
	Data    distribution.RepairResult `json:"data"`
}

// RespGrantSubscription wraps distribution.GrantResult in the standard envelope.
type RespGrantSubscription struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    distribution.GrantResult `json:"data"`
}

// RespListDistributions wraps ListDistributionsResponse in the standard envelope.
type RespListDistributions struct {
	Code    response.APIResponseCode  `json:"code"`
	Message string                    `json:"message"`
	Data    ListDistributionsResponse `json:"data"`
}

// RespLedgerStatistic wraps LedgerStatisticResponse in the standard envelope.
type RespLedgerStatistic struct {
	Code    response.APIResponseCode           `json:"code"`
	Message string                             `json:"message"`
	Data    statistics.LedgerStatisticResponse `json:"data"`
}

// RespWallet wraps the cached wallet view in the standard envelope.
type RespWallet struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    SwaggerWallet            `json:"data"`
}

// RespWalletHistory wraps WalletHistoryResponse in the standard envelope.
type RespWalletHistory struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    WalletHistoryResponse    `json:"data"`
}

// RespWithdraw wraps the withdrawal receipt in the standard envelope.
type RespWithdraw struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    SwaggerWithdrawResult    `json:"data"`
}

// SwaggerWallet is a simplified view of models.UserWallet for documentation purposes.
type SwaggerWallet struct {
	UserID       string    `json:"user_id"`
	TicBalance   string    `json:"tic_balance"`
	GicBalance   string    `json:"gic_balance"`
	TotalBalance string    `json:"total_balance"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SwaggerWithdrawResult is a simplified view of wallet.WithdrawResult for documentation purposes.
type SwaggerWithdrawResult struct {
	TransactionID string `json:"transaction_id"`
	Amount        string `json:"amount"`
	Fee           string `json:"fee"`
	NetAmount     string `json:"net_amount"`
}
