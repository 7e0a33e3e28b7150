package controllers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"smrms-be/middlewares"
	"smrms-be/models"
	"smrms-be/services"
	"smrms-be/storage"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// MaxUploadBytes bounds a single multipart file.
const MaxUploadBytes = 10 << 20

var validatorsOnce sync.Once

// registerValidators adds the tags used in request bindings to gin's
// validator: objectid, priority and status.
func registerValidators() {
	validatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("objectid", func(fl validator.FieldLevel) bool {
			return primitive.IsValidObjectID(fl.Field().String())
		})
		_ = v.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
			_, err := models.ParsePriority(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("status", func(fl validator.FieldLevel) bool {
			_, err := models.ParseStatus(fl.Field().String())
			return err == nil
		})
	})
}

func statusFor(kind services.Kind) int {
	switch kind {
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindConflict:
		return http.StatusConflict
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindUploadFailed:
		return http.StatusBadGateway
	case services.KindStorageTimeout:
		return http.StatusGatewayTimeout
	case services.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"error": message}. Unclassified errors are
// logged and hidden behind a generic message.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	var svcErr *services.Error
	if !errors.As(err, &svcErr) {
		log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
		return
	}

	msg := svcErr.Message
	if svcErr.Kind == services.KindValidation || msg == "" {
		msg = svcErr.Error()
	}
	if svcErr.Kind == services.KindUploadFailed || svcErr.Kind == services.KindStorageTimeout {
		log.Warn("storage error", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(statusFor(svcErr.Kind), gin.H{"error": msg})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func objectIDParam(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return primitive.NilObjectID, false
	}
	return id, true
}

// callerID is the authenticated actor's id.
func callerID(c *gin.Context) (primitive.ObjectID, bool) {
	claims, ok := middlewares.ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return primitive.NilObjectID, false
	}
	return id, true
}

// formFile reads an optional multipart file. A missing part is (nil, nil).
func formFile(c *gin.Context, field string) (*storage.Object, error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	if fh.Size > MaxUploadBytes {
		return nil, fmt.Errorf("%s exceeds %d bytes", field, MaxUploadBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	if len(data) > MaxUploadBytes {
		return nil, fmt.Errorf("%s exceeds %d bytes", field, MaxUploadBytes)
	}
	return &storage.Object{
		Data:        data,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
	}, nil
}

// optionalForm returns nil when the field was not sent at all, so an empty
// value can still clear a text field.
func optionalForm(c *gin.Context, key string) *string {
	v, ok := c.GetPostForm(key)
	if !ok {
		return nil
	}
	return &v
}

func optionalBool(c *gin.Context, key string) (*bool, error) {
	raw := optionalForm(c, key)
	if raw == nil {
		return nil, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(*raw))
	if err != nil {
		return nil, fmt.Errorf("%s must be true or false", key)
	}
	return &b, nil
}
