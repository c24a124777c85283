package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/ticglobal/tokenledger/internal/app/api/server"
	"github.com/ticglobal/tokenledger/internal/app/service/accrual"
	"github.com/ticglobal/tokenledger/internal/app/service/distribution"
	"github.com/ticglobal/tokenledger/internal/app/service/reconcile"
	"github.com/ticglobal/tokenledger/internal/app/service/statistics"
	"github.com/ticglobal/tokenledger/internal/app/service/subscription"
	"github.com/ticglobal/tokenledger/internal/app/service/wallet"
	"github.com/ticglobal/tokenledger/internal/platform/db"
	"github.com/ticglobal/tokenledger/internal/platform/scheduler"
	"github.com/ticglobal/tokenledger/pkg/config"
	"github.com/ticglobal/tokenledger/pkg/logger"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	server.Module,
	accrual.Module,
	subscription.Module,
	wallet.Module,
	distribution.Module,
	reconcile.Module,
	statistics.Module,
	scheduler.Module,
)
