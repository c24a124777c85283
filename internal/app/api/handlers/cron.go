package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ticglobal/tokenledger/internal/app/service/distribution"
	"github.com/ticglobal/tokenledger/internal/app/service/reconcile"
	subsvc "github.com/ticglobal/tokenledger/internal/app/service/subscription"
	"github.com/ticglobal/tokenledger/pkg/response"
)

// @Summary      Daily Distribution Trigger (Cron)
// @Description  Expires overdue subscriptions and distributes today's accrual. Idempotent per day.
// @Tags         Cron
// @Produce      json
// @Success      200  {object}  handlers.RespRunDistribution
// @Router       /api/cron/daily_distribution [post]
func ApiCronDailyDistribution(dist *distribution.Service, sub *subsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := sub.ExpireOverdue(c.Request.Context(), time.Now()); err != nil {
			// A systemic store failure; the scheduler treats the day as
			// not yet distributed and retries.
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		res, err := dist.Run(c.Request.Context(), &distribution.RunRequest{})
		if err != nil {
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Balance Reconciliation Trigger (Cron)
// @Description  Recomputes every user's wallet balances from the ledger and corrects drift.
// @Tags         Cron
// @Produce      json
// @Success      200  {object}  handlers.RespOK
// @Router       /api/cron/reconcile_balances [post]
func ApiCronReconcileBalances(rec *reconcile.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := rec.ReconcileAll(c.Request.Context(), "cron")
		if err != nil {
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterCronRoutes(r gin.IRouter, dist *distribution.Service, sub *subsvc.Service, rec *reconcile.Service) {
	r.POST("/daily_distribution", ApiCronDailyDistribution(dist, sub))
	r.POST("/reconcile_balances", ApiCronReconcileBalances(rec))
}
