package handler

import (
	"context"

	"go.uber.org/zap"

	"github.com/rl1809/vending-ledger/internal/core/domain"
	"github.com/rl1809/vending-ledger/internal/core/service"
)

type GRPCHandler struct {
	dispatcher *service.Dispatcher
	logger     *zap.Logger
}

var _ VendingServer = (*GRPCHandler)(nil)

func NewGRPCHandler(dispatcher *service.Dispatcher, logger *zap.Logger) *GRPCHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GRPCHandler{dispatcher: dispatcher, logger: logger}
}

func (h *GRPCHandler) Instantiate(ctx context.Context, req *InstantiateRequest) (*LedgerResponse, error) {
	resp, err := h.dispatcher.Instantiate(ctx, req.Sender, service.InitMsg{
		Owner:         req.Owner,
		InitialAmount: req.InitialAmount,
	})
	return h.result(resp, err, "ledger initialized"), nil
}

func (h *GRPCHandler) Withdraw(ctx context.Context, req *WithdrawRequest) (*LedgerResponse, error) {
	item := req.Item
	resp, err := h.dispatcher.Execute(ctx, req.Sender, service.ExecuteMsg{GetItem: &item})
	return h.result(resp, err, "item retrieved"), nil
}

func (h *GRPCHandler) Restock(ctx context.Context, req *RestockRequest) (*LedgerResponse, error) {
	resp, err := h.dispatcher.Execute(ctx, req.Sender, service.ExecuteMsg{
		Refill: &service.RefillMsg{Item: req.Item, Amount: req.Amount},
	})
	return h.result(resp, err, "item refilled"), nil
}

// ItemsCount returns a transport error on failure since there is no
// response envelope to carry it.
func (h *GRPCHandler) ItemsCount(ctx context.Context, _ *ItemsCountRequest) (*ItemsCountResponse, error) {
	resp, err := h.dispatcher.Query(ctx, service.QueryMsg{ItemsCount: &struct{}{}})
	if err != nil {
		h.logger.Error("items count failed", zap.Error(err))
		return nil, err
	}
	return &ItemsCountResponse{Items: resp.Items}, nil
}

func (h *GRPCHandler) result(resp domain.Response, err error, message string) *LedgerResponse {
	if err != nil {
		_, code, msg := classify(err)
		if code == codeInternal {
			h.logger.Error("ledger call failed", zap.Error(err))
		}
		return &LedgerResponse{
			Success: false,
			Message: msg,
			Code:    code,
		}
	}

	return &LedgerResponse{
		Success:    true,
		Message:    message,
		Attributes: resp.Attributes,
		Events:     resp.Events,
	}
}
