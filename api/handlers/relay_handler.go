package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"tss-cli/internal/dto"
	"tss-cli/internal/logger"
	"tss-cli/internal/relay"
	"tss-cli/internal/session"
)

// RelayHandler serves the rendezvous endpoints. It never interprets the
// payloads it stores.
type RelayHandler struct {
	store    relay.Store
	sessions *session.Manager
}

// NewRelayHandler creates a handler serving entries from store and signups from sessions.
func NewRelayHandler(store relay.Store, sessions *session.Manager) *RelayHandler {
	return &RelayHandler{store: store, sessions: sessions}
}

// Set stores an entry.
func (h *RelayHandler) Set(c *gin.Context) {
	var entry dto.Entry
	if err := c.ShouldBindJSON(&entry); err != nil {
		c.JSON(http.StatusOK, dto.ErrResult[dto.Entry]("invalid entry: %v", err))
		return
	}
	if err := h.store.Set(c.Request.Context(), entry.Key, entry.Value); err != nil {
		logger.Log.Errorf("Failed to store %s: %v", entry.Key, err)
		c.JSON(http.StatusOK, dto.ErrResult[dto.Entry]("%v", err))
		return
	}
	c.JSON(http.StatusOK, dto.EmptyOk)
}

// Get returns an entry, or a "not found" error the clients keep polling on.
func (h *RelayHandler) Get(c *gin.Context) {
	var index dto.Index
	if err := c.ShouldBindJSON(&index); err != nil {
		c.JSON(http.StatusOK, dto.ErrResult[dto.Entry]("invalid index: %v", err))
		return
	}
	value, err := h.store.Get(c.Request.Context(), index.Key)
	if errors.Is(err, relay.ErrNotFound) {
		c.JSON(http.StatusOK, dto.ErrResult[dto.Entry]("%s", dto.NotFound))
		return
	}
	if err != nil {
		logger.Log.Errorf("Failed to read %s: %v", index.Key, err)
		c.JSON(http.StatusOK, dto.ErrResult[dto.Entry]("%v", err))
		return
	}
	c.JSON(http.StatusOK, dto.OkResult(dto.Entry{Key: index.Key, Value: value}))
}

// SignupKeygen hands out the next ordinal of a keygen session.
func (h *RelayHandler) SignupKeygen(c *gin.Context) {
	var req dto.KeygenSignupRequest
	body, err := c.GetRawData()
	if err == nil {
		err = json.Unmarshal(body, &req)
	}
	if err != nil {
		c.JSON(http.StatusOK, dto.ErrResult[dto.PartySignup]("invalid signup: %v", err))
		return
	}
	signup, err := h.sessions.SignupKeygen(req.Params, req.Curve)
	if err != nil {
		c.JSON(http.StatusOK, dto.ErrResult[dto.PartySignup]("%v", err))
		return
	}
	logger.Log.Infof("Keygen signup %d of %s for session %s", signup.Number, req.Params.Parties, signup.UUID)
	c.JSON(http.StatusOK, dto.OkResult(signup))
}

// SignupSign registers or refreshes a signer in a signing room.
func (h *RelayHandler) SignupSign(c *gin.Context) {
	var req dto.SigningSignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, dto.ErrResult[dto.SigningPartySignup]("invalid signup: %v", err))
		return
	}
	signup, err := h.sessions.SignupSign(req)
	if err != nil {
		c.JSON(http.StatusOK, dto.ErrResult[dto.SigningPartySignup]("%v", err))
		return
	}
	if signup.RoomUUID != "" {
		logger.Log.Debugf("Room %s closed, party %d seated", req.RoomID, signup.PartyOrder)
	}
	c.JSON(http.StatusOK, dto.OkResult(signup))
}
