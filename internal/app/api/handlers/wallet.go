package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	subsvc "github.com/ticglobal/tokenledger/internal/app/service/subscription"
	"github.com/ticglobal/tokenledger/internal/app/service/wallet"
	"github.com/ticglobal/tokenledger/internal/models"
	"github.com/ticglobal/tokenledger/pkg/response"
)

// @Summary      Get Wallet Balance
// @Description  Returns the user's cached wallet balances. Users without wallet activity get zero balances.
// @Tags         Wallet
// @Produce      json
// @Param        user_id path string true "User ID"
// @Success      200  {object}  handlers.RespWallet
// @Router       /api/v1/wallet/balance/{user_id} [get]
func ApiGetWallet(w *wallet.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("user_id")
		if userID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing user_id"))
			return
		}
		res, err := w.GetWallet(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

type WalletHistoryResponse struct {
	Items []*models.WalletTransaction `json:"items"`
	Total int64                       `json:"total"`
}

// @Summary      Get Wallet History
// @Description  Returns the user's ledger transactions, newest first.
// @Tags         Wallet
// @Produce      json
// @Param        user_id path string true "User ID"
// @Param        from    query int false "Offset"
// @Param        size    query int false "Page size"
// @Success      200  {object}  handlers.RespWalletHistory
// @Router       /api/v1/wallet/history/{user_id} [get]
func ApiWalletHistory(w *wallet.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("user_id")
		if userID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing user_id"))
			return
		}
		from, _ := strconv.Atoi(c.DefaultQuery("from", "0"))
		size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
		items, total, err := w.History(c.Request.Context(), userID, from, size)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(&WalletHistoryResponse{Items: items, Total: total}))
	}
}

type DepositRequest struct {
	UserID   string `json:"user_id"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// @Summary      Deposit
// @Description  Credits the user's total balance and records a deposit ledger entry.
// @Tags         Wallet
// @Accept       json
// @Produce      json
// @Param        request body DepositRequest true "Deposit request"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/wallet/deposit [post]
func ApiDeposit(w *wallet.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req DepositRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		amount, err := decimal.NewFromString(req.Amount)
		if err != nil || req.UserID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing user_id or valid amount"))
			return
		}
		txnID, err := w.Deposit(c.Request.Context(), req.UserID, amount, req.Currency)
		if err != nil {
			code := response.APIResponseCodeError
			if errors.Is(err, wallet.ErrNonPositiveAmount) {
				code = response.APIResponseCodeBadRequest
			}
			c.JSON(http.StatusOK, response.ErrorT[any](code, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(map[string]string{"transaction_id": txnID}))
	}
}

type WithdrawRequest struct {
	UserID   string `json:"user_id"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// @Summary      Withdraw
// @Description  Debits the user's total balance after applying the processing fee.
// @Tags         Wallet
// @Accept       json
// @Produce      json
// @Param        request body WithdrawRequest true "Withdraw request"
// @Success      200  {object}  handlers.RespWithdraw
// @Router       /api/v1/wallet/withdraw [post]
func ApiWithdraw(w *wallet.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req WithdrawRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		amount, err := decimal.NewFromString(req.Amount)
		if err != nil || req.UserID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing user_id or valid amount"))
			return
		}
		res, err := w.Withdraw(c.Request.Context(), req.UserID, amount, req.Currency)
		if err != nil {
			code := response.APIResponseCodeError
			if errors.Is(err, wallet.ErrNonPositiveAmount) || errors.Is(err, wallet.ErrInsufficientBalance) {
				code = response.APIResponseCodeBadRequest
			}
			c.JSON(http.StatusOK, response.ErrorT[any](code, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      List User Subscriptions
// @Description  Returns all of a user's plan subscriptions, newest first.
// @Tags         Wallet
// @Produce      json
// @Param        user_id path string true "User ID"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/wallet/subscriptions/{user_id} [get]
func ApiUserSubscriptions(sub *subsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("user_id")
		if userID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing user_id"))
			return
		}
		res, err := sub.GetUserSubscriptions(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterWalletRoutes(r gin.IRouter, w *wallet.Service, sub *subsvc.Service) {
	r.GET("/balance/:user_id", ApiGetWallet(w))
	r.GET("/history/:user_id", ApiWalletHistory(w))
	r.GET("/subscriptions/:user_id", ApiUserSubscriptions(sub))
	r.POST("/deposit", ApiDeposit(w))
	r.POST("/withdraw", ApiWithdraw(w))
}
