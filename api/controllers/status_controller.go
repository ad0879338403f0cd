package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moyoez/cloudsend/api/models"
	"github.com/moyoez/cloudsend/notify"
	"github.com/moyoez/cloudsend/tool"
)

// UserStatus returns daemon status for local clients.
// GET /api/self/v1/status
func UserStatus(c *gin.Context) {
	cfg := tool.GetCurrentConfig()
	caller, loggedIn := models.GetCaller()
	resp := gin.H{
		"running":           true,
		"notify_ws_enabled": notify.NotifyWSEnabled(),
		"logged_in":         loggedIn,
		"server_url":        cfg.ServerURL,
		"chunk_size":        tool.HumanBytes(cfg.ChunkSizeBytes),
		"max_in_flight":     cfg.MaxInFlight,
	}
	if loggedIn {
		resp["user"] = caller.Name
		resp["role"] = caller.Role
	}
	c.JSON(http.StatusOK, resp)
}
