package workflow

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/models"
	"github.com/mmdatafocus/fulfillment_backend/utils"
	"github.com/sirupsen/logrus"
)

// ArchiveField is the multipart field carrying the purchase order ZIP.
const ArchiveField = "archive"

// RegisterRoutes mounts the run and settings endpoints.
func RegisterRoutes(r gin.IRoutes, ctrl *Controller, settingsPath string) {
	r.POST("/api/runs", StartRunHandler(ctrl))
	r.GET("/api/runs/current", CurrentRunHandler(ctrl))
	r.GET("/api/settings", GetSettingsHandler(ctrl))
	r.PUT("/api/settings", UpdateSettingsHandler(ctrl, settingsPath))
}

func StartRunHandler(ctrl *Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := ctrl.Settings().Validate(); err != nil {
			c.JSON(http.StatusPreconditionFailed, gin.H{"error": err.Error()})
			return
		}

		fh, err := c.FormFile(ArchiveField)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "archive file is required"})
			return
		}
		if !strings.EqualFold(filepath.Ext(fh.Filename), ".zip") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "archive must be a .zip file"})
			return
		}

		uploadDir := filepath.Join(ctrl.runner.WorkDir, "uploads")
		if err := os.MkdirAll(uploadDir, 0o755); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		zipPath := filepath.Join(uploadDir, uuid.NewString()+".zip")
		if err := c.SaveUploadedFile(fh, zipPath); err != nil {
			config.LogError(logger, "workflow", "StartRunHandler", "save upload", fh.Filename, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store archive"})
			return
		}

		status, err := ctrl.Start(c.Request.Context(), zipPath)
		if err != nil {
			var halt *models.ValidationHalt
			switch {
			case errors.Is(err, utils.ErrRunInFlight):
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			case errors.As(err, &halt):
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": halt.Error(), "halt": halt, "run": status})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "run": status})
			}
			return
		}

		operator, _ := utils.GetOperatorFromContext(c.Request.Context())
		logger.WithFields(logrus.Fields{"run_id": status.RunId, "archive": fh.Filename, "operator": operator}).Info("run started")
		c.JSON(http.StatusAccepted, status)
	}
}

func CurrentRunHandler(ctrl *Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, err := ctrl.Current()
		if errors.Is(err, utils.ErrNoActiveRun) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, status)
	}
}

func GetSettingsHandler(ctrl *Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, ctrl.Settings().Redacted())
	}
}

// UpdateSettingsHandler saves the settings file. An empty password keeps the stored one.
func UpdateSettingsHandler(ctrl *Controller, path string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req config.Settings
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if strings.TrimSpace(req.MarketplacePW) == "" {
			req.MarketplacePW = ctrl.Settings().MarketplacePW
		}
		if err := config.SaveSettings(path, &req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ctrl.SetSettings(req)
		c.JSON(http.StatusOK, req.Redacted())
	}
}
