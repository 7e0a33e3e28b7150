package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"smrms-be/models"
	"smrms-be/services"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type IssueController struct {
	issues *services.IssueService
	log    *zap.Logger
}

func NewIssueController(issues *services.IssueService, log *zap.Logger) *IssueController {
	registerValidators()
	return &IssueController{issues: issues, log: log}
}

// Create handles a multipart report with an optional photo and reportFile.
func (h *IssueController) Create(c *gin.Context) {
	reporter, ok := callerID(c)
	if !ok {
		return
	}

	var input struct {
		Title         string `form:"title" binding:"required,max=200"`
		Description   string `form:"description" binding:"max=2000"`
		Location      string `form:"location" binding:"max=200"`
		ExactLocation string `form:"exactLocation" binding:"max=200"`
		Priority      string `form:"priority" binding:"required,priority"`
		BuildingID    string `form:"buildingId" binding:"required,objectid"`
	}
	if err := c.ShouldBind(&input); err != nil {
		badRequest(c, err)
		return
	}
	photo, err := formFile(c, "photo")
	if err != nil {
		badRequest(c, err)
		return
	}
	reportFile, err := formFile(c, "reportFile")
	if err != nil {
		badRequest(c, err)
		return
	}

	buildingID, _ := primitive.ObjectIDFromHex(input.BuildingID)
	detail, err := h.issues.Create(c.Request.Context(), services.CreateIssueInput{
		ReporterID:    reporter,
		BuildingID:    buildingID,
		Title:         input.Title,
		Description:   input.Description,
		Location:      input.Location,
		ExactLocation: input.ExactLocation,
		Priority:      input.Priority,
		Photo:         photo,
		ReportFile:    reportFile,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, detail)
}

func (h *IssueController) List(c *gin.Context) {
	list, err := h.issues.List(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *IssueController) ListByBuilding(c *gin.Context) {
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	list, err := h.issues.ListByBuilding(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *IssueController) Get(c *gin.Context) {
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	detail, err := h.issues.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// Update applies a partial multipart patch. Omitted fields are untouched.
// Marking an issue FIXED without a resolverId credits the caller.
func (h *IssueController) Update(c *gin.Context) {
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	caller, ok := callerID(c)
	if !ok {
		return
	}

	var input struct {
		Priority   string `form:"priority" binding:"omitempty,priority"`
		Status     string `form:"status" binding:"omitempty,status"`
		ResolverID string `form:"resolverId" binding:"omitempty,objectid"`
	}
	if err := c.ShouldBind(&input); err != nil {
		badRequest(c, err)
		return
	}

	patch := services.IssuePatch{
		Title:         optionalForm(c, "title"),
		Description:   optionalForm(c, "description"),
		Location:      optionalForm(c, "location"),
		ExactLocation: optionalForm(c, "exactLocation"),
		Priority:      optionalForm(c, "priority"),
		BuildingCode:  optionalForm(c, "buildingCode"),
		Status:        optionalForm(c, "status"),
	}
	if raw := optionalForm(c, "resolverId"); raw != nil && strings.TrimSpace(*raw) != "" {
		resolver, err := primitive.ObjectIDFromHex(strings.TrimSpace(*raw))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid resolverId"})
			return
		}
		patch.ResolverID = &resolver
	}
	if patch.Status != nil && patch.ResolverID == nil {
		if st, err := models.ParseStatus(*patch.Status); err == nil && st == models.StatusFixed {
			patch.ResolverID = &caller
		}
	}
	if raw := optionalForm(c, "version"); raw != nil {
		v, err := strconv.ParseInt(strings.TrimSpace(*raw), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid version"})
			return
		}
		patch.Version = &v
	}
	reportFile, err := formFile(c, "reportFile")
	if err != nil {
		badRequest(c, err)
		return
	}

	detail, err := h.issues.Update(c.Request.Context(), id, patch, reportFile)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *IssueController) Delete(c *gin.Context) {
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.issues.Delete(c.Request.Context(), id); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Issue deleted successfully"})
}
