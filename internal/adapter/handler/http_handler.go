package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/rl1809/vending-ledger/internal/core/domain"
	"github.com/rl1809/vending-ledger/internal/core/service"
)

type HTTPHandler struct {
	dispatcher *service.Dispatcher
	logger     *zap.Logger
}

type InstantiateHTTPRequest struct {
	Sender        string              `json:"sender"`
	Owner         string              `json:"owner"`
	InitialAmount []domain.ItemAmount `json:"initial_amount"`
}

type WithdrawHTTPRequest struct {
	Sender string      `json:"sender"`
	Item   domain.Item `json:"item"`
}

type RestockHTTPRequest struct {
	Sender string      `json:"sender"`
	Item   domain.Item `json:"item"`
	Amount uint64      `json:"amount"`
}

type ExecuteHTTPRequest struct {
	Sender string             `json:"sender"`
	Msg    service.ExecuteMsg `json:"msg"`
}

type LedgerHTTPResponse struct {
	Success    bool                `json:"success"`
	Message    string              `json:"message"`
	Code       string              `json:"code,omitempty"`
	Attributes []domain.Attribute  `json:"attributes,omitempty"`
	Events     []domain.Event      `json:"events,omitempty"`
	Items      []domain.ItemAmount `json:"items,omitempty"`
}

type SchemaHTTPResponse struct {
	Items       []domain.Item `json:"items"`
	Instantiate []string      `json:"instantiate"`
	Execute     []string      `json:"execute"`
	Query       []string      `json:"query"`
}

func NewHTTPHandler(dispatcher *service.Dispatcher, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{dispatcher: dispatcher, logger: logger}
}

func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HealthCheck)
	mux.HandleFunc("/api/instantiate", h.Instantiate)
	mux.HandleFunc("/api/execute", h.Execute)
	mux.HandleFunc("/api/items", h.Items)
	mux.HandleFunc("/api/items/withdraw", h.Withdraw)
	mux.HandleFunc("/api/items/restock", h.Restock)
	mux.HandleFunc("/api/schema", h.Schema)
}

func (h *HTTPHandler) Instantiate(w http.ResponseWriter, r *http.Request) {
	var req InstantiateHTTPRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.dispatcher.Instantiate(r.Context(), req.Sender, service.InitMsg{
		Owner:         req.Owner,
		InitialAmount: req.InitialAmount,
	})
	h.writeResult(w, resp, err, "ledger initialized")
}

func (h *HTTPHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req WithdrawHTTPRequest
	if !h.decode(w, r, &req) {
		return
	}

	item := req.Item
	resp, err := h.dispatcher.Execute(r.Context(), req.Sender, service.ExecuteMsg{GetItem: &item})
	h.writeResult(w, resp, err, "item retrieved")
}

func (h *HTTPHandler) Restock(w http.ResponseWriter, r *http.Request) {
	var req RestockHTTPRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.dispatcher.Execute(r.Context(), req.Sender, service.ExecuteMsg{
		Refill: &service.RefillMsg{Item: req.Item, Amount: req.Amount},
	})
	h.writeResult(w, resp, err, "item refilled")
}

func (h *HTTPHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteHTTPRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.dispatcher.Execute(r.Context(), req.Sender, req.Msg)
	h.writeResult(w, resp, err, "executed")
}

func (h *HTTPHandler) Items(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp, err := h.dispatcher.Query(r.Context(), service.QueryMsg{ItemsCount: &struct{}{}})
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, LedgerHTTPResponse{
		Success: true,
		Message: "ok",
		Items:   resp.Items,
	})
}

func (h *HTTPHandler) Schema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SchemaHTTPResponse{
		Items:       domain.Items(),
		Instantiate: []string{"owner", "initial_amount"},
		Execute:     []string{"get_item", "refill"},
		Query:       []string{"items_count"},
	})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, LedgerHTTPResponse{
			Success: false,
			Message: "invalid request body: " + err.Error(),
			Code:    codeInvalidRequest,
		})
		return false
	}
	return true
}

func (h *HTTPHandler) writeResult(w http.ResponseWriter, resp domain.Response, err error, message string) {
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, LedgerHTTPResponse{
		Success:    true,
		Message:    message,
		Attributes: resp.Attributes,
		Events:     resp.Events,
	})
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status, code, message := classify(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("ledger call failed", zap.Error(err))
	}

	writeJSON(w, status, LedgerHTTPResponse{
		Success: false,
		Message: message,
		Code:    code,
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
