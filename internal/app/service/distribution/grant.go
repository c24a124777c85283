package distribution

import (
	"context"

	subsvc "github.com/ticglobal/tokenledger/internal/app/service/subscription"
	"github.com/ticglobal/tokenledger/internal/models"
	"github.com/ticglobal/tokenledger/pkg/logctx"
)

// GrantResult pairs a granted subscription with its first-day run.
type GrantResult struct {
	Subscription *models.Subscription `json:"subscription"`
	RunResult    *RunResult           `json:"run_result,omitempty"`
}

// Grant creates the subscription and immediately distributes its first
// day, so a purchase starts accruing without waiting for the next daily
// trigger. The scoped run uses the same idempotency gate as the daily
// run; whichever fires first wins and the other skips.
func (s *Service) Grant(ctx context.Context, userID, planID, operatorID string) (*GrantResult, error) {
	sub, err := s.subs.Grant(ctx, userID, planID, operatorID)
	if err != nil {
		return nil, err
	}

	run, err := s.Run(ctx, &RunRequest{
		Scope: &subsvc.Scope{UserID: userID, SubscriptionID: sub.ID},
	})
	if err != nil {
		// The subscription stands; the next daily run covers today.
		logctx.FromCtx(ctx, s.log).Warnw("post-purchase distribution failed",
			"user_id", userID, "subscription_id", sub.ID, "err", err)
		return &GrantResult{Subscription: sub}, nil
	}
	return &GrantResult{Subscription: sub, RunResult: run}, nil
}
