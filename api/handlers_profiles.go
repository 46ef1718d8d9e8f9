package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"

	"profileserver/config"
	"profileserver/db"
	"profileserver/models"
	"profileserver/utils"

	"github.com/gin-gonic/gin"
)

// usernamePattern is the only accepted username shape: word characters,
// minimum length 3. Checked on create; updates never carry a new username.
var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,}$`)

const maxBioLength = 500

// --- Create Profile ---

// InsertProfileRequest defines the fields a client may set when creating a
// profile. Server-owned fields (id, viewCount) are deliberately absent.
type InsertProfileRequest struct {
	Username             string  `json:"username" binding:"required"`
	DisplayName          *string `json:"displayName"`
	Bio                  *string `json:"bio"`
	ProfilePicture       *string `json:"profilePicture"`
	BackgroundVideo      *string `json:"backgroundVideo"`
	BackgroundVideoMuted *int    `json:"backgroundVideoMuted"`
	BackgroundAudio      *string `json:"backgroundAudio"`
	Snapchat             *string `json:"snapchat"`
	Discord              *string `json:"discord"`
	Twitter              *string `json:"twitter"`
	Instagram            *string `json:"instagram"`
	TikTok               *string `json:"tiktok"`
	YouTube              *string `json:"youtube"`
	GitHub               *string `json:"github"`
	Twitch               *string `json:"twitch"`
}

// CreateProfileHandler handles the creation of a new profile.
// @Summary      Create a Profile
// @Description  Creates a new public profile. The username must be unique, at least 3 characters, and contain only letters, digits, and underscores. The bio is capped at 500 characters. All other fields are optional.
// @Tags         Profiles
// @Accept       json
// @Produce      json
// @Param        profile body InsertProfileRequest true "The profile to create. Only 'username' is required."
// @Success      201  {object}  models.Profile "Profile created. viewCount starts at 0."
// @Failure      400  {object}  utils.APIError "Validation failure or duplicate username."
// @Failure      401  {object}  utils.APIError "Authentication required (only when the server runs with require-auth)."
// @Router       /api/profiles [post]
func CreateProfileHandler(c *gin.Context, database *db.Database, cfg *config.Config) {
	userID := sessionUserID(c)
	if cfg.RequireAuth && userID == "" {
		utils.GinUnauthorized(c, "Authentication required to create a profile")
		return
	}

	var req InsertProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.GinBadRequest(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	if !usernamePattern.MatchString(req.Username) {
		utils.GinBadRequest(c, "Username must be at least 3 characters and contain only letters, numbers, and underscores")
		return
	}
	if req.Bio != nil && len(*req.Bio) > maxBioLength {
		utils.GinBadRequest(c, fmt.Sprintf("Bio must be %d characters or fewer", maxBioLength))
		return
	}

	profile := models.Profile{
		Username:             req.Username,
		DisplayName:          req.DisplayName,
		Bio:                  req.Bio,
		ProfilePicture:       req.ProfilePicture,
		BackgroundVideo:      req.BackgroundVideo,
		BackgroundVideoMuted: 1, // Muted unless the client says otherwise
		BackgroundAudio:      req.BackgroundAudio,
		Snapchat:             req.Snapchat,
		Discord:              req.Discord,
		Twitter:              req.Twitter,
		Instagram:            req.Instagram,
		TikTok:               req.TikTok,
		YouTube:              req.YouTube,
		GitHub:               req.GitHub,
		Twitch:               req.Twitch,
		UserID:               userID,
	}
	if req.BackgroundVideoMuted != nil {
		profile.BackgroundVideoMuted = *req.BackgroundVideoMuted
	}

	created, err := database.CreateProfile(profile)
	if err != nil {
		if errors.Is(err, db.ErrDuplicateUsername) {
			utils.GinBadRequest(c, "Username already exists")
		} else {
			utils.GinInternalServerError(c, fmt.Sprintf("Failed to create profile: %v", err))
		}
		return
	}

	c.JSON(http.StatusCreated, created)
}

// --- List / Browse Profiles ---

// ListProfilesHandler returns all profiles, optionally filtered, sorted, and
// paginated for the browse surface.
// @Summary      List Profiles
// @Description  Returns all profiles as a JSON array. Optional query parameters: `search` (case-insensitive match on username/display name), `sort_by` (`username` or `view_count`), `order` (`asc`/`desc`), `page`, `limit` (max 100). Without parameters the full set is returned.
// @Tags         Profiles
// @Produce      json
// @Param        search   query  string  false  "Filter by username or display name (contains, case-insensitive)."
// @Param        sort_by  query  string  false  "Sort field." Enums(username, view_count)
// @Param        order    query  string  false  "Sort direction." Enums(asc, desc)
// @Param        page     query  int     false  "Page number (starts at 1)."
// @Param        limit    query  int     false  "Profiles per page." maximum(100)
// @Success      200  {array}   models.Profile
// @Failure      400  {object}  utils.APIError "Invalid query parameters."
// @Router       /api/profiles [get]
func ListProfilesHandler(c *gin.Context, database *db.Database, cfg *config.Config) {
	search := c.Query("search")
	sortBy := c.Query("sort_by")
	order := c.Query("order")
	pageQuery := c.Query("page")
	limitQuery := c.Query("limit")

	// The plain, parameterless call returns every profile; that shape is
	// part of the API contract.
	if search == "" && sortBy == "" && order == "" && pageQuery == "" && limitQuery == "" {
		c.JSON(http.StatusOK, database.GetAllProfiles())
		return
	}

	page, limit := 0, 0
	var err error
	if pageQuery != "" {
		if page, err = strconv.Atoi(pageQuery); err != nil || page < 1 {
			utils.GinBadRequest(c, "Invalid 'page' query parameter. Must be a positive integer.")
			return
		}
	}
	if limitQuery != "" {
		if limit, err = strconv.Atoi(limitQuery); err != nil || limit < 1 {
			utils.GinBadRequest(c, "Invalid 'limit' query parameter. Must be a positive integer.")
			return
		}
	}

	profiles, _, err := database.QueryProfiles(db.QueryProfilesParams{
		Search: search,
		SortBy: sortBy,
		Order:  order,
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		utils.GinBadRequest(c, err.Error())
		return
	}

	c.JSON(http.StatusOK, profiles)
}

// --- Get Profile ---

// GetProfileHandler retrieves a single profile by username.
// @Summary      Get a Profile
// @Tags         Profiles
// @Produce      json
// @Param        username  path  string  true  "Profile username"
// @Success      200  {object}  models.Profile
// @Failure      404  {object}  utils.APIError "No profile with that username."
// @Router       /api/profiles/{username} [get]
func GetProfileHandler(c *gin.Context, database *db.Database, cfg *config.Config) {
	username := c.Param("username")

	profile, found := database.GetProfileByUsername(username)
	if !found {
		utils.GinNotFound(c, "Profile not found")
		return
	}

	c.JSON(http.StatusOK, profile)
}

// --- Update Profile ---

// UpdateProfileRequest defines a partial profile update. Every field is
// optional; fields absent from the request body are left untouched, while
// an explicit JSON null clears a nullable field. Username is bound only so
// that attempts to change it can be rejected.
type UpdateProfileRequest struct {
	Username             *string `json:"username"`
	DisplayName          *string `json:"displayName"`
	Bio                  *string `json:"bio"`
	ProfilePicture       *string `json:"profilePicture"`
	BackgroundVideo      *string `json:"backgroundVideo"`
	BackgroundVideoMuted *int    `json:"backgroundVideoMuted"`
	BackgroundAudio      *string `json:"backgroundAudio"`
	Snapchat             *string `json:"snapchat"`
	Discord              *string `json:"discord"`
	Twitter              *string `json:"twitter"`
	Instagram            *string `json:"instagram"`
	TikTok               *string `json:"tiktok"`
	YouTube              *string `json:"youtube"`
	GitHub               *string `json:"github"`
	Twitch               *string `json:"twitch"`

	present map[string]bool
}

// UnmarshalJSON records which keys were present in the request body so that
// "field omitted" and "field set to null" can be told apart when applying
// the partial update.
func (r *UpdateProfileRequest) UnmarshalJSON(data []byte) error {
	type plain UpdateProfileRequest
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}

	*r = UpdateProfileRequest(p)
	r.present = make(map[string]bool, len(keys))
	for key := range keys {
		r.present[key] = true
	}
	return nil
}

// Has reports whether the named JSON key appeared in the request body.
func (r *UpdateProfileRequest) Has(key string) bool {
	return r.present[key]
}

// UpdateProfileHandler applies a partial update to an existing profile.
// @Summary      Update a Profile
// @Description  Applies a partial update: only fields present in the body change; omitted fields keep their current values. The username itself cannot be changed. When the profile is owned by an account, the owner's session is required.
// @Tags         Profiles
// @Accept       json
// @Produce      json
// @Param        username  path  string                true  "Profile username"
// @Param        profile   body  UpdateProfileRequest  true  "Fields to change."
// @Success      200  {object}  models.Profile
// @Failure      400  {object}  utils.APIError "Validation failure or username change attempt."
// @Failure      401  {object}  utils.APIError "Session required."
// @Failure      403  {object}  utils.APIError "Session does not own this profile."
// @Failure      404  {object}  utils.APIError "No profile with that username."
// @Router       /api/profiles/{username} [put]
func UpdateProfileHandler(c *gin.Context, database *db.Database, cfg *config.Config) {
	username := c.Param("username")

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.GinBadRequest(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	if req.Has("username") && (req.Username == nil || *req.Username != username) {
		utils.GinBadRequest(c, "Cannot change username")
		return
	}
	if req.Has("bio") && req.Bio != nil && len(*req.Bio) > maxBioLength {
		utils.GinBadRequest(c, fmt.Sprintf("Bio must be %d characters or fewer", maxBioLength))
		return
	}

	existing, found := database.GetProfileByUsername(username)
	if !found {
		utils.GinNotFound(c, "Profile not found")
		return
	}

	// Ownership: an owned profile may only be mutated by its owner. With
	// require-auth on, anonymous updates are rejected outright.
	userID := sessionUserID(c)
	if cfg.RequireAuth && userID == "" {
		utils.GinUnauthorized(c, "Authentication required to update a profile")
		return
	}
	if existing.UserID != "" {
		if userID == "" {
			utils.GinUnauthorized(c, "Authentication required to update this profile")
			return
		}
		if userID != existing.UserID {
			utils.GinForbidden(c, "You do not own this profile")
			return
		}
	}

	updated, err := database.UpdateProfile(username, func(profile *models.Profile) {
		if req.Has("displayName") {
			profile.DisplayName = req.DisplayName
		}
		if req.Has("bio") {
			profile.Bio = req.Bio
		}
		if req.Has("profilePicture") {
			profile.ProfilePicture = req.ProfilePicture
		}
		if req.Has("backgroundVideo") {
			profile.BackgroundVideo = req.BackgroundVideo
		}
		if req.Has("backgroundVideoMuted") {
			if req.BackgroundVideoMuted != nil {
				profile.BackgroundVideoMuted = *req.BackgroundVideoMuted
			} else {
				profile.BackgroundVideoMuted = 1
			}
		}
		if req.Has("backgroundAudio") {
			profile.BackgroundAudio = req.BackgroundAudio
		}
		if req.Has("snapchat") {
			profile.Snapchat = req.Snapchat
		}
		if req.Has("discord") {
			profile.Discord = req.Discord
		}
		if req.Has("twitter") {
			profile.Twitter = req.Twitter
		}
		if req.Has("instagram") {
			profile.Instagram = req.Instagram
		}
		if req.Has("tiktok") {
			profile.TikTok = req.TikTok
		}
		if req.Has("youtube") {
			profile.YouTube = req.YouTube
		}
		if req.Has("github") {
			profile.GitHub = req.GitHub
		}
		if req.Has("twitch") {
			profile.Twitch = req.Twitch
		}
	})
	if err != nil {
		switch {
		case errors.Is(err, db.ErrProfileNotFound):
			utils.GinNotFound(c, "Profile not found")
		case errors.Is(err, db.ErrImmutableUsername):
			utils.GinBadRequest(c, "Cannot change username")
		default:
			utils.GinInternalServerError(c, fmt.Sprintf("Failed to update profile: %v", err))
		}
		return
	}

	c.JSON(http.StatusOK, updated)
}

// --- Increment View Count ---

// IncrementViewHandler bumps a profile's view counter and returns the
// post-increment record.
// @Summary      Record a Profile View
// @Tags         Profiles
// @Produce      json
// @Param        username  path  string  true  "Profile username"
// @Success      200  {object}  models.Profile "The profile after the increment."
// @Failure      404  {object}  utils.APIError "No profile with that username."
// @Router       /api/profiles/{username}/view [post]
func IncrementViewHandler(c *gin.Context, database *db.Database, cfg *config.Config) {
	username := c.Param("username")

	profile, err := database.IncrementViewCount(username)
	if err != nil {
		if errors.Is(err, db.ErrProfileNotFound) {
			utils.GinNotFound(c, "Profile not found")
		} else {
			utils.GinInternalServerError(c, fmt.Sprintf("Failed to record view: %v", err))
		}
		return
	}

	c.JSON(http.StatusOK, profile)
}

// sessionUserID returns the authenticated user ID from the request context,
// or "" for anonymous requests.
func sessionUserID(c *gin.Context) string {
	if v, exists := c.Get("userID"); exists {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
