package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"voiceagents/internal/audit"
	"voiceagents/internal/auth"
	"voiceagents/internal/calls"
	"voiceagents/internal/campaigns"
	"voiceagents/internal/engine"
	"voiceagents/internal/reporting"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Audit     *audit.Service
	Campaigns *campaigns.Service
	Calls     *calls.Service
	Reporting *reporting.Service
	Manual    *engine.ManualCaller
}

// Register mounts the control API on r. Every route requires authMW.
func (h Handlers) Register(r gin.IRouter, authMW gin.HandlerFunc) {
	g := r.Group("")
	g.Use(authMW)

	cg := g.Group("/campaigns")
	{
		cg.POST("", h.CreateCampaign)
		cg.GET("", h.ListCampaigns)
		cg.GET("/:id", h.GetCampaign)
		cg.POST("/:id/start", h.StartCampaign)
		cg.POST("/:id/pause", h.PauseCampaign)
		cg.POST("/:id/resume", h.ResumeCampaign)
		cg.POST("/:id/stop", h.StopCampaign)
		cg.GET("/:id/status", h.CampaignStatus)
		cg.GET("/:id/calls", h.CampaignCalls)
		cg.GET("/:id/audit", h.CampaignAudit)
	}

	og := g.Group("/outbound-calls")
	{
		og.POST("", h.PlaceManualCall)
		og.PUT("/:callId/outcome", h.UpdateCallOutcome)
		og.PUT("/:callId/status", h.UpdateCallStatus)
	}
}

// requireUser reads the authenticated user or aborts with 401.
func requireUser(c *gin.Context) (string, bool) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil || userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return "", false
	}
	return userID, true
}
