package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cwrk-planet/chat-service/internal/auth"
	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/service"
	"github.com/cwrk-planet/chat-service/internal/transport/dto"
	"github.com/cwrk-planet/chat-service/internal/transport/http/httputil"
)

const maxPageLimit = 500

type Handler struct {
	chatSvc *service.ChatService
}

func NewHandler(chat *service.ChatService) *Handler {
	return &Handler{chatSvc: chat}
}

// POST /api/chat/send
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req dto.SendMessageRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	msg, err := h.chatSvc.Send(r.Context(), auth.UserIDFromCtx(r.Context()), req.Input())
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusCreated, dto.FromMessage(*msg))
}

// GET /api/chat/conversation/{userA}/{userB}?after=&limit=
func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	page := domain.Page{After: r.URL.Query().Get("after")}
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxPageLimit {
			httputil.WriteError(w, r, domain.Invalid("limit", "must be an integer between 1 and 500"))
			return
		}
		page.Limit = n
	}

	items, next, err := h.chatSvc.History(r.Context(), auth.UserIDFromCtx(r.Context()),
		chi.URLParam(r, "userA"), chi.URLParam(r, "userB"), page)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, dto.HistoryResponse{Items: dto.FromMessages(items), NextCursor: next})
}

// GET /api/chat/conversations/{userId}
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	sums, err := h.chatSvc.Conversations(r.Context(), auth.UserIDFromCtx(r.Context()), chi.URLParam(r, "userId"))
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, dto.FromSummaries(sums))
}

// PATCH /api/chat/mark-read
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	var req dto.MarkReadRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	n, err := h.chatSvc.MarkRead(r.Context(), auth.UserIDFromCtx(r.Context()), req.MessageIDs, req.Room())
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, dto.MarkReadResponse{Success: true, Updated: n})
}

// GET /api/chat/unread-count
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.chatSvc.UnreadCount(r.Context(), auth.UserIDFromCtx(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, dto.UnreadCountResponse{Count: n})
}
