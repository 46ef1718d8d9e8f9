package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"profileserver/config"
	"profileserver/db"
	"profileserver/models"
	"profileserver/utils"

	"github.com/gin-gonic/gin"
)

// Credentials defines the expected JSON body for signup and login requests.
type Credentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// userResponse is the public view of an account. The password hash never
// leaves the server.
type userResponse struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	CreationDate time.Time `json:"creationDate"`
}

func toUserResponse(user models.User) userResponse {
	return userResponse{
		ID:           user.ID,
		Username:     user.Username,
		CreationDate: user.CreationDate,
	}
}

// SignupHandler registers a new account and opens a session for it.
// @Summary      Sign Up
// @Description  Creates an account and sets the session cookie. Usernames follow the same rules as profile usernames.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        credentials body Credentials true "Username and password."
// @Success      201  {object}  userResponse
// @Failure      400  {object}  utils.APIError "Validation failure or username taken."
// @Router       /api/auth/signup [post]
func SignupHandler(c *gin.Context, database *db.Database, cfg *config.Config) {
	var creds Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		utils.GinBadRequest(c, "Both 'username' and 'password' are required")
		return
	}

	if !usernamePattern.MatchString(creds.Username) {
		utils.GinBadRequest(c, "Username must be at least 3 characters and contain only letters, numbers, and underscores")
		return
	}
	if len(creds.Password) < 8 {
		utils.GinBadRequest(c, "Password must be at least 8 characters")
		return
	}

	hash, err := utils.HashPassword(creds.Password, cfg.BcryptCost)
	if err != nil {
		utils.GinInternalServerError(c, "Failed to create account")
		return
	}

	// CreateUser assigns the ID and creation date.
	user, err := database.CreateUser(models.User{
		Username:     creds.Username,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, db.ErrUsernameTaken) {
			utils.GinBadRequest(c, "Username already taken")
		} else {
			utils.GinInternalServerError(c, fmt.Sprintf("Failed to create account: %v", err))
		}
		return
	}

	token, err := utils.GenerateJWT(&user, cfg)
	if err != nil {
		utils.GinInternalServerError(c, "Account created but session could not be started. Please log in.")
		return
	}
	utils.SetSessionCookie(c, token, cfg)

	c.JSON(http.StatusCreated, toUserResponse(user))
}

// LoginHandler verifies credentials and opens a session.
// @Summary      Log In
// @Description  Verifies the password and sets the session cookie. Unknown usernames and wrong passwords get the same response.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        credentials body Credentials true "Username and password."
// @Success      200  {object}  userResponse
// @Failure      401  {object}  utils.APIError "Invalid username or password."
// @Router       /api/auth/login [post]
func LoginHandler(c *gin.Context, database *db.Database, cfg *config.Config) {
	var creds Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		utils.GinBadRequest(c, "Both 'username' and 'password' are required")
		return
	}

	user, found := database.GetUserByUsername(creds.Username)
	if !found || !utils.CheckPasswordHash(creds.Password, user.PasswordHash) {
		// Uniform response; do not reveal whether the username exists.
		utils.GinUnauthorized(c, "Invalid username or password")
		return
	}

	token, err := utils.GenerateJWT(&user, cfg)
	if err != nil {
		utils.GinInternalServerError(c, "Failed to start session")
		return
	}
	utils.SetSessionCookie(c, token, cfg)

	c.JSON(http.StatusOK, toUserResponse(user))
}

// LogoutHandler ends the current session.
// @Summary      Log Out
// @Tags         Auth
// @Produce      json
// @Success      200  {object}  map[string]bool "{\"success\": true}"
// @Router       /api/auth/logout [post]
func LogoutHandler(c *gin.Context, database *db.Database, cfg *config.Config) {
	utils.ClearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// MeHandler returns the account behind the current session.
// @Summary      Current Account
// @Tags         Auth
// @Produce      json
// @Success      200  {object}  userResponse
// @Failure      401  {object}  utils.APIError "Session required."
// @Router       /api/auth/me [get]
func MeHandler(c *gin.Context, database *db.Database, cfg *config.Config) {
	userID := sessionUserID(c)
	user, found := database.GetUserByID(userID)
	if !found {
		utils.GinUnauthorized(c, "Session references an unknown account")
		return
	}

	c.JSON(http.StatusOK, toUserResponse(user))
}
