package controllers

import (
	"net/http"

	"smrms-be/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type BuildingController struct {
	buildings *services.BuildingService
	log       *zap.Logger
}

func NewBuildingController(buildings *services.BuildingService, log *zap.Logger) *BuildingController {
	registerValidators()
	return &BuildingController{buildings: buildings, log: log}
}

func (h *BuildingController) Create(c *gin.Context) {
	var input struct {
		Code string `form:"code" binding:"required,max=20"`
		Name string `form:"name" binding:"required,max=100"`
	}
	if err := c.ShouldBind(&input); err != nil {
		badRequest(c, err)
		return
	}
	image, err := formFile(c, "image")
	if err != nil {
		badRequest(c, err)
		return
	}

	b, err := h.buildings.Create(c.Request.Context(), services.BuildingInput{Code: input.Code, Name: input.Name, Image: image})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (h *BuildingController) Update(c *gin.Context) {
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	active, err := optionalBool(c, "active")
	if err != nil {
		badRequest(c, err)
		return
	}
	image, err := formFile(c, "image")
	if err != nil {
		badRequest(c, err)
		return
	}

	b, err := h.buildings.Update(c.Request.Context(), id, services.BuildingPatch{
		Code:   optionalForm(c, "code"),
		Name:   optionalForm(c, "name"),
		Active: active,
	}, image)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// Deactivate is the DELETE handler; buildings are only ever hidden.
func (h *BuildingController) Deactivate(c *gin.Context) {
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	b, err := h.buildings.Deactivate(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *BuildingController) ListActive(c *gin.Context) {
	list, err := h.buildings.ListActive(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *BuildingController) ListAll(c *gin.Context) {
	list, err := h.buildings.ListWithCounts(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *BuildingController) GetByCode(c *gin.Context) {
	b, err := h.buildings.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, b)
}
