package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/ticglobal/tokenledger/internal/app/service/distribution"
	"github.com/ticglobal/tokenledger/internal/app/service/reconcile"
	"github.com/ticglobal/tokenledger/internal/app/service/statistics"
	subsvc "github.com/ticglobal/tokenledger/internal/app/service/subscription"
	"github.com/ticglobal/tokenledger/internal/app/service/wallet"
	"github.com/ticglobal/tokenledger/internal/models"
	"github.com/ticglobal/tokenledger/pkg/response"
	"github.com/ticglobal/tokenledger/pkg/types"

	"github.com/shopspring/decimal"
)

// validDate accepts an optional YYYY-MM-DD date; empty means today. The
// key itself is passed through to the engine, which resolves it in the
// reference timezone.
func validDate(s string) bool {
	if s == "" {
		return true
	}
	_, err := time.Parse(time.DateOnly, s)
	return err == nil
}

func operatorID(c *gin.Context) string {
	if v, ok := c.Get("operatorID"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

type RunDistributionRequest struct {
	Date           string `json:"date"`
	UserID         string `json:"user_id"`
	SubscriptionID string `json:"subscription_id"`
}

func (r *RunDistributionRequest) scope() *subsvc.Scope {
	if r.UserID == "" && r.SubscriptionID == "" {
		return nil
	}
	return &subsvc.Scope{UserID: r.UserID, SubscriptionID: r.SubscriptionID}
}

// @Summary      Run Daily Distribution (Admin)
// @Description  Distributes the daily token accrual to active subscriptions for a day. Safe to re-run.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body RunDistributionRequest true "Target date (YYYY-MM-DD, empty = today) and optional user/subscription scope"
// @Success      200  {object}  handlers.RespRunDistribution
// @Router       /api/v1/admin/run_distribution [post]
func ApiRunDistribution(dist *distribution.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RunDistributionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		if !validDate(req.Date) {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "invalid date, expected YYYY-MM-DD"))
			return
		}
		res, err := dist.Run(c.Request.Context(), &distribution.RunRequest{Date: req.Date, Scope: req.scope()})
		if err != nil {
			// Only a systemic store failure aborts a run.
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Distribution Status (Admin)
// @Description  Reports coverage of completed distributions against active subscriptions for a day.
// @Tags         Admin
// @Produce      json
// @Param        date query string false "Target date (YYYY-MM-DD, empty = today)"
// @Success      200  {object}  handlers.RespDistributionStatus
// @Router       /api/v1/admin/distribution_status [get]
func ApiDistributionStatus(dist *distribution.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		date := c.Query("date")
		if !validDate(date) {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "invalid date, expected YYYY-MM-DD"))
			return
		}
		res, err := dist.Status(c.Request.Context(), date)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Repair Distributions (Admin)
// @Description  Removes a day's distribution records with their credits and re-runs the engine. Audited.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body RunDistributionRequest true "Target date and optional scope"
// @Success      200  {object}  handlers.RespRepairDistribution
// @Router       /api/v1/admin/repair_distribution [post]
func ApiRepairDistribution(dist *distribution.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RunDistributionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		if !validDate(req.Date) {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "invalid date, expected YYYY-MM-DD"))
			return
		}
		op := operatorID(c)
		if op == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing operator identity"))
			return
		}
		res, err := dist.Repair(c.Request.Context(), &distribution.RepairRequest{Date: req.Date, Scope: req.scope(), OperatorID: op})
		if err != nil {
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

type ReconcileRequest struct {
	UserID string `json:"user_id"`
}

// @Summary      Reconcile Balances (Admin)
// @Description  Recomputes wallet balances from the ledger; with user_id reconciles one user, otherwise all users.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body ReconcileRequest true "Optional user scope"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/reconcile_balances [post]
func ApiReconcileBalances(rec *reconcile.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ReconcileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		triggeredBy := "admin:" + operatorID(c)
		if req.UserID != "" {
			res, err := rec.Reconcile(c.Request.Context(), req.UserID, triggeredBy)
			if err != nil {
				c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
				return
			}
			c.JSON(http.StatusOK, response.OKT(res))
			return
		}
		res, err := rec.ReconcileAll(c.Request.Context(), triggeredBy)
		if err != nil {
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

type ListDistributionsRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type DistributionItem struct {
	ID               string          `json:"id"`
	SubscriptionID   string          `json:"subscription_id"`
	UserID           string          `json:"user_id"`
	PlanID           string          `json:"plan_id"`
	TokenAmount      decimal.Decimal `json:"token_amount"`
	DistributionDate string          `json:"distribution_date"`
	Status           string          `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
}

type ListDistributionsResponse struct {
	Items []*DistributionItem `json:"items"`
	Total int64               `json:"total"`
}

func toDistributionItem(m *models.TokenDistribution) *DistributionItem {
	return &DistributionItem{
		ID:               m.ID,
		SubscriptionID:   m.SubscriptionID,
		UserID:           m.UserID,
		PlanID:           m.PlanID,
		TokenAmount:      m.TokenAmount,
		DistributionDate: m.DistributionDate,
		Status:           string(m.Status),
		CreatedAt:        m.CreatedAt,
	}
}

// @Summary      List Distributions (Admin)
// @Description  Retrieves a paginated and filterable list of distribution records.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body ListDistributionsRequest true "List request with filters, pagination, and sorting"
// @Success      200  {object}  handlers.RespListDistributions
// @Router       /api/v1/admin/list_distributions [post]
func ApiListDistributions(dist *distribution.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ListDistributionsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := dist.Scan(c.Request.Context(), &distribution.ScanRequest{
			Filters: req.Filters, From: req.From, Size: req.Size, SortBy: req.SortBy, SortOrder: req.SortOrder,
		})
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		items := lo.Map(res.Items, func(it *models.TokenDistribution, _ int) *DistributionItem { return toDistributionItem(it) })
		c.JSON(http.StatusOK, response.OKT(&ListDistributionsResponse{Items: items, Total: res.Total}))
	}
}

type ListLedgerTransactionsResponse struct {
	Items []*models.WalletTransaction `json:"items"`
	Total int64                       `json:"total"`
}

// @Summary      List Ledger Transactions (Admin)
// @Description  Retrieves a paginated and filterable list of wallet ledger transactions.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body ListDistributionsRequest true "List request with filters, pagination, and sorting"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/list_transactions [post]
func ApiListLedgerTransactions(w *wallet.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ListDistributionsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := w.Scan(c.Request.Context(), &wallet.ScanRequest{
			Filters: req.Filters, From: req.From, Size: req.Size, SortBy: req.SortBy, SortOrder: req.SortOrder,
		})
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(&ListLedgerTransactionsResponse{Items: res.Items, Total: res.Total}))
	}
}

// @Summary      Get Ledger Statistics (Admin)
// @Description  Retrieves daily ledger statistics.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body statistics.LedgerStatisticRequest true "Statistic request parameters"
// @Success      200  {object}  handlers.RespLedgerStatistic
// @Router       /api/v1/admin/get_ledger_statistic [post]
func ApiGetLedgerStatistic(svc *statistics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statistics.LedgerStatisticRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := svc.GetLedgerStatistic(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

type GrantSubscriptionRequest struct {
	UserID string `json:"user_id"`
	PlanID string `json:"plan_id"`
}

// @Summary      Grant Subscription (Admin)
// @Description  Grants a plan subscription to a user and distributes its first day immediately.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body GrantSubscriptionRequest true "Grant subscription request"
// @Success      200  {object}  handlers.RespGrantSubscription
// @Router       /api/v1/admin/grant_subscription [post]
func ApiGrantSubscription(dist *distribution.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req GrantSubscriptionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		op := operatorID(c)
		if req.UserID == "" || req.PlanID == "" || op == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing user_id or plan_id or operator identity"))
			return
		}
		created, err := dist.Grant(c.Request.Context(), req.UserID, req.PlanID, op)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(created))
	}
}

type RankBonusRequest struct {
	UserID string `json:"user_id"`
	Rank   string `json:"rank"`
	Amount string `json:"amount"`
	Month  string `json:"month"`
}

// @Summary      Credit Rank Bonus (Admin)
// @Description  Credits a monthly rank bonus split evenly between TIC and GIC. Safe to re-run for the same month.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body RankBonusRequest true "Rank bonus request; month as YYYY-MM"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/credit_rank_bonus [post]
func ApiCreditRankBonus(w *wallet.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RankBonusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		amount, err := decimal.NewFromString(req.Amount)
		if err != nil || req.UserID == "" || req.Rank == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing user_id, rank or valid amount"))
			return
		}
		month, err := time.Parse("2006-01", req.Month)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "invalid month, expected YYYY-MM"))
			return
		}
		if err := w.RankBonus(c.Request.Context(), req.UserID, req.Rank, amount, month); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

func RegisterAdminRoutes(r gin.IRouter, dist *distribution.Service, rec *reconcile.Service, stats *statistics.Service, w *wallet.Service) {
	r.POST("/run_distribution", ApiRunDistribution(dist))
	r.GET("/distribution_status", ApiDistributionStatus(dist))
	r.POST("/repair_distribution", ApiRepairDistribution(dist))
	r.POST("/reconcile_balances", ApiReconcileBalances(rec))
	r.POST("/list_distributions", ApiListDistributions(dist))
	r.POST("/list_transactions", ApiListLedgerTransactions(w))
	r.POST("/get_ledger_statistic", ApiGetLedgerStatistic(stats))
	r.POST("/grant_subscription", ApiGrantSubscription(dist))
	r.POST("/credit_rank_bonus", ApiCreditRankBonus(w))
}
