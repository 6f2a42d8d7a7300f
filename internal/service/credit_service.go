package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/iudofia2026/youtubedubber.com-sub004/internal/ledger"
	"github.com/iudofia2026/youtubedubber.com-sub004/internal/model"
)

// Pricing plans: credits granted per completed purchase. Payment capture
// happens upstream with the payment provider; this service only records
// the grant.
var pricingPlans = map[string]int64{
	"creator":      50,
	"professional": 250,
	"enterprise":   1000,
}

// CreditService exposes the account-facing slice of the ledger.
type CreditService struct {
	ledger ledger.Ledger
	log    *zap.Logger
}

func NewCreditService(lg ledger.Ledger, log *zap.Logger) *CreditService {
	return &CreditService{ledger: lg, log: log}
}

// Balance returns the account's spendable credits.
func (s *CreditService) Balance(ctx context.Context, accountID string) (*model.BalanceResponse, error) {
	balance, err := s.ledger.Balance(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &model.BalanceResponse{AccountID: accountID, Balance: balance}, nil
}

// ConfirmPurchase grants the plan's credits for a completed purchase.
// Confirming the same payment id twice grants once; the replay gets the
// same acknowledgement the original did.
func (s *CreditService) ConfirmPurchase(ctx context.Context, accountID string, req *model.ConfirmPurchaseRequest) (*model.ConfirmPurchaseResponse, error) {
	credits, ok := pricingPlans[req.Plan]
	if !ok {
		return nil, fmt.Errorf("%w: unknown plan %q", ErrInvalidRequest, req.Plan)
	}

	err := s.ledger.Grant(ctx, accountID, credits, req.PaymentID, "purchase:"+req.PaymentID)
	if err != nil && !errors.Is(err, ledger.ErrDuplicateGrant) {
		return nil, err
	}
	balance, err := s.ledger.Balance(ctx, accountID)
	if err != nil {
		return nil, err
	}

	s.log.Info("credits granted",
		zap.String("accountId", accountID),
		zap.String("plan", req.Plan),
		zap.Int64("credits", credits))

	return &model.ConfirmPurchaseResponse{CreditsAdded: credits, Balance: balance}, nil
}
