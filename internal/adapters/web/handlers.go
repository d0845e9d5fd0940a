package web

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"unreplied/internal/domain"
	"unreplied/internal/usecases"
	"unreplied/pkg/log"

	"github.com/gofiber/fiber/v2"
)

// DefaultRequestTimeout bounds one API request.
const DefaultRequestTimeout = 30 * time.Second

// Dependencies are the use cases the handlers serve.
type Dependencies struct {
	Pages         usecases.PageFetcher
	Coordinator   *usecases.Coordinator
	Walker        *usecases.Walker
	Conversations *usecases.ListConversationsUseCase
	Stats         *usecases.Stats
	Feed          FeedConfig
	Timeout       time.Duration
}

// Handlers contains the HTTP handlers for the JSON API.
type Handlers struct {
	pages         usecases.PageFetcher
	coordinator   *usecases.Coordinator
	walker        *usecases.Walker
	conversations *usecases.ListConversationsUseCase
	stats         *usecases.Stats
	feed          FeedConfig
	timeout       time.Duration
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps Dependencies) *Handlers {
	if deps.Timeout <= 0 {
		deps.Timeout = DefaultRequestTimeout
	}
	return &Handlers{
		pages:         deps.Pages,
		coordinator:   deps.Coordinator,
		walker:        deps.Walker,
		conversations: deps.Conversations,
		stats:         deps.Stats,
		feed:          deps.Feed,
		timeout:       deps.Timeout,
	}
}

// errorBody is the JSON error response.
type errorBody struct {
	Error string `json:"error"`
}

// sessionBody is the JSON response of the session endpoints.
type sessionBody struct {
	SessionID string              `json:"sessionId"`
	State     usecases.PageState `json:"state"`
}

// createSessionRequest is the body of POST /api/sessions.
type createSessionRequest struct {
	FID       uint64 `json:"fid"`
	DayFilter string `json:"dayFilter"`
	Limit     int    `json:"limit"`
}

// Health reports liveness.
func (h *Handlers) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"result": "ok"})
}

// Unreplied serves one page of unreplied replies.
// GET /api/unreplied?fid=&limit=&cursor=&dayFilter=
func (h *Handlers) Unreplied(c *fiber.Ctx) error {
	req, err := pageRequest(c.Query("fid"), c)
	if err != nil {
		return h.writeError(c, err)
	}

	ctx, cancel := context.WithTimeout(log.WithFields(c.UserContext(), "fid", req.FID), h.timeout)
	defer cancel()

	page, err := h.pages.Execute(ctx, req)
	if err != nil {
		log.GlobalErrorCtx(ctx, "fetch unreplied failed", "error", err)
		return h.writeError(c, err)
	}
	return c.JSON(page)
}

// CreateSession registers a pagination session and loads its first page.
// POST /api/sessions
func (h *Handlers) CreateSession(c *fiber.Ctx) error {
	var body createSessionRequest
	if err := c.BodyParser(&body); err != nil {
		return h.writeError(c, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err))
	}
	if body.FID == 0 {
		return h.writeError(c, fmt.Errorf("%w: fid is required", domain.ErrInvalidInput))
	}
	if body.Limit < 0 {
		return h.writeError(c, fmt.Errorf("%w: limit must not be negative", domain.ErrInvalidInput))
	}
	filter, err := domain.ParseDayFilter(body.DayFilter)
	if err != nil {
		return h.writeError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	sess, st, err := h.coordinator.Start(ctx, body.FID, filter, body.Limit)
	if err != nil {
		log.GlobalErrorCtx(ctx, "session first page failed", "session_id", sess.ID(), "fid", body.FID, "error", err)
		return h.writeError(c, err)
	}
	log.GlobalDebugCtx(ctx, "session created", "session_id", sess.ID(), "fid", body.FID)
	return c.Status(fiber.StatusCreated).JSON(sessionBody{SessionID: sess.ID(), State: st})
}

// GetSession returns a session snapshot.
// GET /api/sessions/:id
func (h *Handlers) GetSession(c *fiber.Ctx) error {
	sess, err := h.coordinator.Session(c.Params("id"))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(sessionBody{SessionID: sess.ID(), State: sess.Snapshot()})
}

// NextPage loads the next page of a session. A guarded call returns the
// current state with skipped=true.
// POST /api/sessions/:id/next
func (h *Handlers) NextPage(c *fiber.Ctx) error {
	return h.sessionCall(c, "load next page", (*usecases.Session).LoadNextPage)
}

// RefreshSession reloads the first page bypassing the listing cache.
// POST /api/sessions/:id/refresh
func (h *Handlers) RefreshSession(c *fiber.Ctx) error {
	return h.sessionCall(c, "refresh", (*usecases.Session).Refresh)
}

func (h *Handlers) sessionCall(c *fiber.Ctx, op string, fn func(*usecases.Session, context.Context) (usecases.PageState, error)) error {
	sess, err := h.coordinator.Session(c.Params("id"))
	if err != nil {
		return h.writeError(c, err)
	}

	ctx, cancel := context.WithTimeout(log.WithFields(c.UserContext(), "session_id", sess.ID()), h.timeout)
	defer cancel()

	st, err := fn(sess, ctx)
	if err != nil {
		log.GlobalErrorCtx(ctx, "session "+op+" failed", "error", err)
		return h.writeError(c, err)
	}
	log.GlobalDebugCtx(ctx, "session "+op, "skipped", st.Skipped, "generation", st.Generation)
	return c.JSON(sessionBody{SessionID: sess.ID(), State: st})
}

// CastTree walks and returns the reply tree of one cast.
// GET /api/casts/:fid/:hash/tree
func (h *Handlers) CastTree(c *fiber.Ctx) error {
	fid, err := ParseFID(c.Params("fid"))
	if err != nil {
		return h.writeError(c, err)
	}
	hash, err := ParseHash(c.Params("hash"))
	if err != nil {
		return h.writeError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	tree, err := h.walker.WalkHash(ctx, domain.CastID{FID: fid, Hash: hash})
	if err != nil {
		log.GlobalErrorCtx(ctx, "walk cast failed", "fid", fid, "cast_hash", hash, "error", err)
		return h.writeError(c, err)
	}
	return c.JSON(tree)
}

// Conversations serves the read-replica conversation summaries.
// GET /api/conversations/:fid?limit=
func (h *Handlers) Conversations(c *fiber.Ctx) error {
	if h.conversations == nil {
		return h.writeError(c, fmt.Errorf("%w: conversation summaries need the replica source", domain.ErrMisconfigured))
	}
	fid, err := ParseFID(c.Params("fid"))
	if err != nil {
		return h.writeError(c, err)
	}
	limit, err := ParseLimit(c.Query("limit"))
	if err != nil {
		return h.writeError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	list, err := h.conversations.Execute(ctx, fid, limit)
	if err != nil {
		log.GlobalErrorCtx(ctx, "list conversations failed", "fid", fid, "error", err)
		return h.writeError(c, err)
	}
	return c.JSON(list)
}

// Feed renders the first unreplied page as RSS.
// GET /api/unreplied/:fid/feed.rss?dayFilter=&limit=
func (h *Handlers) Feed(c *fiber.Ctx) error {
	req, err := pageRequest(c.Params("fid"), c)
	if err != nil {
		return h.writeError(c, err)
	}
	req.Cursor = ""

	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	page, err := h.pages.Execute(ctx, req)
	if err != nil {
		log.GlobalErrorCtx(ctx, "feed page failed", "fid", req.FID, "error", err)
		return h.writeError(c, err)
	}

	rss, err := BuildFeed(h.feed, req.FID, page, time.Now())
	if err != nil {
		return h.writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/rss+xml; charset=utf-8")
	return c.SendString(rss)
}

// Stats returns the process counters.
// GET /api/stats
func (h *Handlers) Stats(c *fiber.Ctx) error {
	return c.JSON(h.stats.Snapshot())
}

// pageRequest reads the page query parameters shared by the unreplied
// endpoints.
func pageRequest(rawFID string, c *fiber.Ctx) (usecases.PageRequest, error) {
	fid, err := ParseFID(rawFID)
	if err != nil {
		return usecases.PageRequest{}, err
	}
	limit, err := ParseLimit(c.Query("limit"))
	if err != nil {
		return usecases.PageRequest{}, err
	}
	filter, err := domain.ParseDayFilter(c.Query("dayFilter"))
	if err != nil {
		return usecases.PageRequest{}, err
	}
	return usecases.PageRequest{
		FID:       fid,
		Limit:     limit,
		Cursor:    c.Query("cursor"),
		DayFilter: filter,
	}, nil
}

// writeError maps an error to its status and the {"error": ...} body.
func (h *Handlers) writeError(c *fiber.Ctx, err error) error {
	status, msg := errorStatus(err)
	return c.Status(status).JSON(errorBody{Error: msg})
}

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) (int, string) {
	msg := err.Error()
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return fiber.StatusBadRequest, msg
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrSessionNotFound):
		return fiber.StatusNotFound, msg
	case errors.Is(err, domain.ErrMisconfigured):
		if !strings.HasPrefix(msg, domain.ErrMisconfigured.Error()) {
			msg = domain.ErrMisconfigured.Error() + ": " + msg
		}
		return fiber.StatusInternalServerError, msg
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusInternalServerError, domain.ErrUpstreamUnavailable.Error() + ": request timed out"
	default:
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return fe.Code, fe.Message
		}
		return fiber.StatusInternalServerError, msg
	}
}

// ErrorHandler is the fiber error handler; it keeps the JSON error shape
// for routing errors and panics.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status, msg := errorStatus(err)
	return c.Status(status).JSON(errorBody{Error: msg})
}
