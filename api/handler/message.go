package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/tilebid/backend/api/transport"
	"github.com/tilebid/backend/pkg/httpcontext"
	chatUC "github.com/tilebid/backend/usecase/chat"
)

type MessageHandler struct {
	baseHandler
	uc *chatUC.UseCase
}

func NewMessageHandler(uc *chatUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Open or reuse a pre-bid inquiry thread
// @Tags conversations
// @Router /api/v1/conversations [post]
func (h *MessageHandler) OpenInquiry(ctx *fasthttp.RequestCtx) {
	callerID := h.callerID(ctx)
	if callerID == "" {
		return
	}

	var req transport.InquiryRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.CounterpartID == "" {
		h.respondInvalid(ctx, "counterpart_id is required")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	conv, err := h.uc.OpenInquiry(stdCtx, callerID, req.CounterpartID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, conv)
}

// @Summary List the caller's conversations
// @Tags conversations
// @Router /api/v1/conversations [get]
func (h *MessageHandler) ListConversations(ctx *fasthttp.RequestCtx) {
	callerID := h.callerID(ctx)
	if callerID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	convs, err := h.uc.ListConversations(stdCtx, callerID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, convs)
}

// @Summary List messages in a conversation
// @Tags conversations
// @Router /api/v1/conversations/{id}/messages [get]
func (h *MessageHandler) ListMessages(ctx *fasthttp.RequestCtx) {
	callerID := h.callerID(ctx)
	if callerID == "" {
		return
	}

	convID, _ := ctx.UserValue("id").(string)
	if convID == "" {
		h.respondInvalid(ctx, "missing conversation id")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	msgs, err := h.uc.History(stdCtx, callerID, convID,
		string(ctx.QueryArgs().Peek("after")),
		parseInt(string(ctx.QueryArgs().Peek("limit")), 50),
	)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, msgs)
}

// @Summary Send a message
// @Tags conversations
// @Router /api/v1/conversations/{id}/messages [post]
func (h *MessageHandler) SendMessage(ctx *fasthttp.RequestCtx) {
	callerID := h.callerID(ctx)
	if callerID == "" {
		return
	}

	convID, _ := ctx.UserValue("id").(string)
	if convID == "" {
		h.respondInvalid(ctx, "missing conversation id")
		return
	}

	var req transport.MessageSendRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondInvalid(ctx, "invalid payload")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	msg, err := h.uc.Send(stdCtx, callerID, convID, req.Body, req.AttachmentURL)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, msg)
}

// @Summary Stream new messages as server-sent events
// @Tags conversations
// @Router /api/v1/conversations/{id}/subscribe [get]
//
// The stream runs under the server-wide write timeout, so a subscription
// is severed after HTTP_WRITE_TIMEOUT at the latest. Clients are expected
// to reconnect on EOF and reconcile via GET /messages?after=<last id>;
// the outbox makes delivery at-least-once across such gaps, never
// exactly-once within one connection.
func (h *MessageHandler) Subscribe(ctx *fasthttp.RequestCtx) {
	callerID := h.callerID(ctx)
	if callerID == "" {
		return
	}

	convID, _ := ctx.UserValue("id").(string)
	if convID == "" {
		h.respondInvalid(ctx, "missing conversation id")
		return
	}

	// The stream outlives the handler return, so it gets its own
	// lifetime instead of the per-request deadline. Teardown happens when
	// the client disconnects (Flush fails) or the stream closes.
	streamCtx, cancel := context.WithCancel(context.Background())

	stream, err := h.uc.Subscribe(streamCtx, callerID, convID)
	if err != nil {
		cancel()
		h.respondError(ctx, err)
		return
	}

	ctx.Response.Header.SetContentType("text/event-stream")
	ctx.Response.Header.Set("Cache-Control", "no-cache")
	ctx.Response.Header.Set("Connection", "keep-alive")

	ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		defer stream.Close()

		heartbeat := time.NewTicker(15 * time.Second)
		defer heartbeat.Stop()

		for {
			select {
			case msg, ok := <-stream.Messages():
				if !ok {
					return
				}
				payload, err := json.Marshal(msg)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "id: %s\nevent: message\ndata: %s\n\n", msg.ID, payload)
				if err := w.Flush(); err != nil {
					return
				}
			case <-heartbeat.C:
				fmt.Fprint(w, ": ping\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})
}
