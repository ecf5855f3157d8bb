package handler

import (
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/tilebid/backend/api/transport"
	"github.com/tilebid/backend/pkg/httpcontext"
	awardUC "github.com/tilebid/backend/usecase/award"
	bidUC "github.com/tilebid/backend/usecase/bid"
)

type BidHandler struct {
	baseHandler
	bids  *bidUC.UseCase
	award *awardUC.UseCase
}

func NewBidHandler(bids *bidUC.UseCase, award *awardUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *BidHandler {
	return &BidHandler{
		baseHandler: newBaseHandler(adapter, logger),
		bids:        bids,
		award:       award,
	}
}

// @Summary Submit a bid on a task
// @Tags bids
// @Router /api/v1/tasks/{id}/bids [post]
func (h *BidHandler) SubmitBid(ctx *fasthttp.RequestCtx) {
	callerID := h.callerID(ctx)
	if callerID == "" {
		return
	}

	taskID, _ := ctx.UserValue("id").(string)
	if taskID == "" {
		h.respondInvalid(ctx, "missing task id")
		return
	}

	var req transport.BidSubmitRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondInvalid(ctx, "invalid payload")
		return
	}
	if req.Amount == nil {
		h.respondInvalid(ctx, "bid amount is required")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	bid, err := h.bids.Submit(stdCtx, callerID, taskID, *req.Amount, req.Message)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, bid)
}

// @Summary List bids on a task (owner only)
// @Tags bids
// @Router /api/v1/tasks/{id}/bids [get]
func (h *BidHandler) ListTaskBids(ctx *fasthttp.RequestCtx) {
	callerID := h.callerID(ctx)
	if callerID == "" {
		return
	}

	taskID, _ := ctx.UserValue("id").(string)
	if taskID == "" {
		h.respondInvalid(ctx, "missing task id")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	bids, err := h.bids.ListForTask(stdCtx, callerID, taskID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, bids)
}

// @Summary List the caller's bids
// @Tags bids
// @Router /api/v1/bids [get]
func (h *BidHandler) ListMyBids(ctx *fasthttp.RequestCtx) {
	callerID := h.callerID(ctx)
	if callerID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	bids, err := h.bids.ListMine(stdCtx, callerID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, bids)
}

// @Summary Withdraw an active bid
// @Tags bids
// @Router /api/v1/bids/{id}/withdraw [post]
func (h *BidHandler) WithdrawBid(ctx *fasthttp.RequestCtx) {
	callerID := h.callerID(ctx)
	if callerID == "" {
		return
	}

	bidID, _ := ctx.UserValue("id").(string)
	if bidID == "" {
		h.respondInvalid(ctx, "missing bid id")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	bid, err := h.bids.Withdraw(stdCtx, callerID, bidID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, bid)
}

// @Summary Request a revision of an active bid
// @Tags bids
// @Router /api/v1/bids/{id}/revision [post]
func (h *BidHandler) RequestRevision(ctx *fasthttp.RequestCtx) {
	callerID := h.callerID(ctx)
	if callerID == "" {
		return
	}

	bidID, _ := ctx.UserValue("id").(string)
	if bidID == "" {
		h.respondInvalid(ctx, "missing bid id")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	bid, err := h.bids.RequestRevision(stdCtx, callerID, bidID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, bid)
}

// @Summary Accept a bid and provision the conversation
// @Tags bids
// @Router /api/v1/tasks/{id}/accept [post]
func (h *BidHandler) AcceptBid(ctx *fasthttp.RequestCtx) {
	callerID := h.callerID(ctx)
	if callerID == "" {
		return
	}

	taskID, _ := ctx.UserValue("id").(string)
	if taskID == "" {
		h.respondInvalid(ctx, "missing task id")
		return
	}

	var req transport.AcceptBidRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.BidID == "" {
		h.respondInvalid(ctx, "bid_id is required")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.award.Accept(stdCtx, callerID, taskID, req.BidID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, result)
}
