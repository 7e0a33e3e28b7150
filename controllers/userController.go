package controllers

import (
	"context"
	"net/http"

	"smrms-be/services"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// UserController manages the staff and student rosters and actor removal.
type UserController struct {
	identity *services.IdentityService
	actors   *services.ActorService
	log      *zap.Logger
}

func NewUserController(identity *services.IdentityService, actors *services.ActorService, log *zap.Logger) *UserController {
	registerValidators()
	return &UserController{identity: identity, actors: actors, log: log}
}

func (h *UserController) ListStaff(c *gin.Context) {
	list, err := h.actors.ListStaff(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// CreateStaff makes the actor with this email maintenance staff, creating
// a local account when none exists.
func (h *UserController) CreateStaff(c *gin.Context) {
	var input struct {
		Name         string `json:"name" binding:"required,max=100"`
		Email        string `json:"email" binding:"required,email"`
		Password     string `json:"password" binding:"omitempty,min=6"`
		MobileNumber string `json:"mobileNumber" binding:"max=20"`
		StaffID      string `json:"staffId" binding:"required,max=30"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	view, err := h.identity.CreateStaff(c.Request.Context(), services.StaffInput{
		Name:         input.Name,
		Email:        input.Email,
		Password:     input.Password,
		MobileNumber: input.MobileNumber,
		StaffID:      input.StaffID,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *UserController) ListStudents(c *gin.Context) {
	list, err := h.actors.ListStudents(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *UserController) DeleteStaff(c *gin.Context) {
	h.deleteBy(c, h.actors.DeleteStaff)
}

func (h *UserController) DeleteStudent(c *gin.Context) {
	h.deleteBy(c, h.actors.DeleteStudent)
}

func (h *UserController) DeleteActor(c *gin.Context) {
	h.deleteBy(c, h.actors.DeleteActor)
}

type deleteFunc func(ctx context.Context, id primitive.ObjectID) (*services.DeletionReport, error)

func (h *UserController) deleteBy(c *gin.Context, del deleteFunc) {
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	report, err := del(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
