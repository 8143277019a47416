package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"voiceagents/internal/campaigns"
	"voiceagents/internal/contacts"
	"voiceagents/internal/reporting"
)

const (
	defaultCallsPageSize = 50
	maxCallsPageSize     = 500
)

type createCampaignRequest struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	AssistantID    string   `json:"assistant_id"`
	ContactSource  string   `json:"contact_source"`
	ContactListID  string   `json:"contact_list_id"`
	CSVFileID      string   `json:"csv_file_id"`
	DailyCap       *int     `json:"daily_cap"`
	CallingDays    []string `json:"calling_days"`
	StartHour      *int     `json:"start_hour"`
	EndHour        *int     `json:"end_hour"`
	CampaignPrompt string   `json:"campaign_prompt"`
}

func (h Handlers) CreateCampaign(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req createCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	out, err := h.Campaigns.Create(c.Request.Context(), userID, c.ClientIP(), campaigns.CreateInput{
		Name:          req.Name,
		Description:   req.Description,
		AssistantID:   req.AssistantID,
		ContactSource: contacts.SourceKind(req.ContactSource),
		ContactListID: req.ContactListID,
		CSVFileID:     req.CSVFileID,
		DailyCap:      req.DailyCap,
		CallingDays:   req.CallingDays,
		StartHour:     req.StartHour,
		EndHour:       req.EndHour,
		Script:        req.CampaignPrompt,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h Handlers) ListCampaigns(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	list, err := h.Campaigns.List(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	if list == nil {
		list = []campaigns.Campaign{}
	}
	c.JSON(http.StatusOK, gin.H{"campaigns": list})
}

func (h Handlers) GetCampaign(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	out, err := h.Campaigns.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// campaignCommand is one of the user lifecycle commands on campaigns.Service.
type campaignCommand func(ctx context.Context, userID, ip, id string) (campaigns.Campaign, error)

func runCommand(c *gin.Context, cmd campaignCommand) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	out, err := cmd(c.Request.Context(), userID, c.ClientIP(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) StartCampaign(c *gin.Context)  { runCommand(c, h.Campaigns.Start) }
func (h Handlers) PauseCampaign(c *gin.Context)  { runCommand(c, h.Campaigns.Pause) }
func (h Handlers) ResumeCampaign(c *gin.Context) { runCommand(c, h.Campaigns.Resume) }
func (h Handlers) StopCampaign(c *gin.Context)   { runCommand(c, h.Campaigns.Stop) }

func (h Handlers) CampaignStatus(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	camp, err := h.Campaigns.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	rng, ok := queryRange(c)
	if !ok {
		return
	}
	breakdown, err := h.Reporting.CampaignBreakdown(c.Request.Context(), reporting.BreakdownRequest{CampaignID: camp.ID, Range: rng})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaign": camp, "calls": breakdown})
}

func (h Handlers) CampaignCalls(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", defaultCallsPageSize)
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return
	}
	if limit <= 0 || limit > maxCallsPageSize || offset < 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be within [1,500] and offset >= 0"})
		return
	}

	camp, err := h.Campaigns.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	rows, err := h.Calls.ListForCampaign(c.Request.Context(), camp.ID, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": rows, "limit": limit, "offset": offset})
}

func queryInt(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": key + " must be an integer"})
		return 0, false
	}
	return n, true
}

func (h Handlers) CampaignAudit(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		return
	}
	camp, err := h.Campaigns.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	trail, err := h.Audit.CampaignTrail(c.Request.Context(), userID, camp.ID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": trail})
}

// queryRange reads optional from/to bounds as RFC 3339 timestamps or UTC dates.
func queryRange(c *gin.Context) (reporting.TimeRange, bool) {
	var rng reporting.TimeRange
	for _, p := range []struct {
		key string
		dst *time.Time
	}{{"from", &rng.From}, {"to", &rng.To}} {
		raw := c.Query(p.key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			t, err = time.Parse(time.DateOnly, raw)
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": p.key + " must be RFC 3339 or YYYY-MM-DD"})
			return reporting.TimeRange{}, false
		}
		*p.dst = t
	}
	return rng, true
}
