package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"voiceagents/internal/calls"
	"voiceagents/internal/engine"
)

type outcomeRequest struct {
	Outcome         string `json:"outcome"`
	Notes           string `json:"notes"`
	DurationSeconds *int   `json:"duration_seconds"`
}

// UpdateCallOutcome is called by the voice agent's post-call analysis or by a reviewer.
func (h Handlers) UpdateCallOutcome(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req outcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Outcome == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "outcome required"})
		return
	}
	out, err := h.Calls.RecordOutcome(c.Request.Context(), userID, c.ClientIP(), c.Param("callId"), calls.OutcomeChange{
		Outcome:         calls.Outcome(req.Outcome),
		Notes:           req.Notes,
		DurationSeconds: req.DurationSeconds,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type statusRequest struct {
	Status          string `json:"status"`
	Notes           string `json:"notes"`
	DurationSeconds *int   `json:"duration_seconds"`
}

func (h Handlers) UpdateCallStatus(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	out, err := h.Calls.UpdateStatus(c.Request.Context(), userID, c.Param("callId"), calls.StatusChange{
		Status:          calls.CallStatus(req.Status),
		Notes:           req.Notes,
		DurationSeconds: req.DurationSeconds,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type manualCallRequest struct {
	AssistantID string `json:"assistant_id"`
	PhoneNumber string `json:"phone_number"`
	ContactName string `json:"contact_name"`
}

// PlaceManualCall dials one number for one assistant outside any campaign.
// A repeat request while the previous call is still ringing returns that call.
func (h Handlers) PlaceManualCall(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req manualCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	call, reused, err := h.Manual.Call(c.Request.Context(), engine.ManualRequest{
		UserID:      userID,
		IP:          c.ClientIP(),
		AssistantID: req.AssistantID,
		PhoneNumber: req.PhoneNumber,
		ContactName: req.ContactName,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	status := http.StatusCreated
	if reused {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"call": call, "reused": reused})
}
