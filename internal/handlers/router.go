package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/payledger/internal/handlers/middleware"
	"github.com/nkiryanov/payledger/internal/logger"
	"github.com/nkiryanov/payledger/internal/models"
	"github.com/nkiryanov/payledger/internal/repository"
	"github.com/nkiryanov/payledger/internal/service/ingest"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

type RouterConfig struct {
	// Secret to verify webhook signature; empty disables verification
	WebhookSecret string

	// Prometheus exposition handler, optional
	Metrics http.Handler
}

func NewRouter(
	cfg RouterConfig,
	ingestService ingestService,
	ledgerService ledgerService,
	db pinger,
	logger logger.Logger,
) http.Handler {
	api := http.NewServeMux()

	api.Handle("POST /webhook/bank/{$}", chain(handleBankWebhook(ingestService, logger),
		middleware.SignatureMiddleware(cfg.WebhookSecret),
	))
	api.Handle("GET /organizations/{inn}/balance/{$}", handleOrganizationBalance(ledgerService, logger))
	api.Handle("GET /organizations/{inn}/balance-log/{$}", handleOrganizationBalanceLog(ledgerService, logger))
	api.Handle("GET /payments/{$}", handleListPayments(ledgerService, logger))
	api.Handle("GET /payments/{operation_id}/{$}", handleGetPayment(ledgerService, logger))

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", api))
	root.Handle("GET /healthz", handleHealth(db, logger))
	if cfg.Metrics != nil {
		root.Handle("GET /metrics", cfg.Metrics)
	}

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
	)

	return handler
}

type ingestService interface {
	// Apply payment event at most once
	// Has to return non nil error only if the event was not applied because of failure
	Ingest(ctx context.Context, e models.PaymentEvent) (ingest.Result, error)
}

type ledgerService interface {
	// Has to return apperrors.ErrOrganizationNotFound if organization not found
	GetBalance(ctx context.Context, inn string) (models.Organization, error)

	// Has to return apperrors.ErrOrganizationNotFound if organization not found
	ListBalanceLog(ctx context.Context, inn string) ([]models.BalanceLogEntry, error)

	// Has to return apperrors.ErrPaymentNotFound if payment not found
	GetPayment(ctx context.Context, operationID uuid.UUID) (models.Payment, error)

	// Has to return apperrors.ErrInvalidOrdering if ordering is not supported
	ListPayments(ctx context.Context, opts repository.ListPaymentsOpts) ([]models.Payment, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}
