package controllers

import (
	"net/http"
	"strings"
	"time"

	"clinicremind-backend/utils"

	"github.com/gin-gonic/gin"
)

type LoginInput struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthController signs in the single configured operator
type AuthController struct {
	Username     string
	PasswordHash string
	JWTSecret    string
	TokenTTL     time.Duration
}

func (ac *AuthController) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input")
		return
	}

	if ac.PasswordHash == "" ||
		strings.TrimSpace(input.Username) != ac.Username ||
		!utils.CheckPasswordHash(input.Password, ac.PasswordHash) {
		utils.RespondWithError(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := utils.GenerateToken(ac.Username, ac.JWTSecret, ac.TokenTTL)
	if err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	c.SetCookie(
		"token",
		token,
		int(ac.TokenTTL.Seconds()),
		"/",
		"",
		true,
		true,
	)

	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"expiresIn": int(ac.TokenTTL.Seconds()),
	})
}

// Me returns the operator bound to the request token
func Me(c *gin.Context) {
	operator, exists := c.Get("operator")
	if !exists {
		utils.RespondWithError(c, http.StatusUnauthorized, "Operator not found in context")
		return
	}
	c.JSON(http.StatusOK, gin.H{"operator": operator})
}
