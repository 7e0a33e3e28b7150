package controllers

import (
	"net/http"
	"time"

	"smrms-be/middlewares"
	"smrms-be/services"
	authUtils "smrms-be/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthConfig struct {
	Secret       string
	TokenTTL     time.Duration
	Production   bool
	CookieDomain string
}

type AuthController struct {
	identity *services.IdentityService
	cfg      AuthConfig
	log      *zap.Logger
}

func NewAuthController(identity *services.IdentityService, cfg AuthConfig, log *zap.Logger) *AuthController {
	registerValidators()
	return &AuthController{identity: identity, cfg: cfg, log: log}
}

// issueSession signs a token for p, sets the auth cookie and writes the
// response body.
func (a *AuthController) issueSession(c *gin.Context, status int, p *services.Principal) {
	token, err := authUtils.GenerateToken(authUtils.Claims{
		UserID: p.Actor.ID.Hex(),
		Email:  p.Actor.Email,
		Roles:  p.Roles,
	}, a.cfg.TokenTTL, a.cfg.Secret)
	if err != nil {
		respondError(c, a.log, err)
		return
	}

	// For production, don't set domain to allow cross-origin cookies.
	domain := a.cfg.CookieDomain
	if a.cfg.Production {
		domain = ""
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     middlewares.AuthCookie,
		Value:    token,
		MaxAge:   int(a.cfg.TokenTTL.Seconds()),
		Path:     "/",
		Domain:   domain,
		Secure:   a.cfg.Production,
		HttpOnly: true,
		SameSite: http.SameSiteNoneMode,
	})
	c.JSON(status, gin.H{
		"user":  p.Actor,
		"roles": p.Roles,
		"token": token,
	})
}

// Register handles student self-registration.
func (a *AuthController) Register(c *gin.Context) {
	var input struct {
		Name          string `json:"name" binding:"required,max=100"`
		Email         string `json:"email" binding:"required,email"`
		Password      string `json:"password" binding:"required,min=6"`
		MobileNumber  string `json:"mobileNumber" binding:"max=20"`
		Department    string `json:"department" binding:"max=50"`
		StudentNumber string `json:"studentNumber" binding:"max=30"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	p, err := a.identity.RegisterLocal(c.Request.Context(), services.RegisterInput{
		Name:          input.Name,
		Email:         input.Email,
		Password:      input.Password,
		MobileNumber:  input.MobileNumber,
		Department:    input.Department,
		StudentNumber: input.StudentNumber,
	})
	if err != nil {
		respondError(c, a.log, err)
		return
	}
	a.issueSession(c, http.StatusCreated, p)
}

func (a *AuthController) Login(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	p, err := a.identity.AuthenticateLocal(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		respondError(c, a.log, err)
		return
	}
	a.issueSession(c, http.StatusOK, p)
}

// External is called by the identity provider bridge after it verified the
// user, so it trusts the email it is given.
func (a *AuthController) External(c *gin.Context) {
	var input struct {
		Email     string `json:"email" binding:"required,email"`
		Name      string `json:"name" binding:"max=100"`
		Provider  string `json:"provider" binding:"required"`
		AvatarURL string `json:"avatarUrl" binding:"omitempty,url"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	p, err := a.identity.ExternalLogin(c.Request.Context(), services.ExternalLoginInput{
		Email:     input.Email,
		Name:      input.Name,
		Provider:  input.Provider,
		AvatarURL: input.AvatarURL,
	})
	if err != nil {
		respondError(c, a.log, err)
		return
	}
	a.issueSession(c, http.StatusOK, p)
}

// Me returns the caller's actor, roles and profile.
func (a *AuthController) Me(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		return
	}
	view, err := a.identity.Profile(c.Request.Context(), id)
	if err != nil {
		respondError(c, a.log, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Logout clears the auth_token cookie.
func (a *AuthController) Logout(c *gin.Context) {
	c.SetCookie(middlewares.AuthCookie, "", -1, "/", a.cfg.CookieDomain, a.cfg.Production, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}
