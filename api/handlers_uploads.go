package api

import (
	"errors"
	"fmt"
	"net/http"

	"profileserver/config"
	"profileserver/uploads"
	"profileserver/utils"

	"github.com/gin-gonic/gin"
)

// UploadRequest carries a base64 data-URI payload and the asset kind the
// file belongs to ("profile", "video", "audio", ...). The kind becomes the
// filename prefix.
type UploadRequest struct {
	FileData string `json:"fileData" binding:"required"`
	FileType string `json:"fileType" binding:"required"`
}

// UploadFileHandler stores a base64-encoded asset and returns its public path.
// @Summary      Upload a File
// @Description  Accepts a `data:<mime>;base64,<data>` payload, stores it under a random collision-resistant name, and returns the public path to reference from a profile.
// @Tags         Uploads
// @Accept       json
// @Produce      json
// @Param        upload body UploadRequest true "The file payload and asset kind."
// @Success      200  {object}  uploads.Result
// @Failure      400  {object}  utils.APIError "Missing fields or malformed payload."
// @Failure      500  {object}  utils.APIError "Storage failure."
// @Router       /api/upload [post]
func UploadFileHandler(c *gin.Context, service *uploads.Service, cfg *config.Config) {
	var req UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.GinBadRequest(c, "Both 'fileData' and 'fileType' are required")
		return
	}

	result, err := service.Save(req.FileData, req.FileType)
	if err != nil {
		if errors.Is(err, uploads.ErrInvalidPayload) {
			utils.GinBadRequest(c, "Invalid file data format. Expected a base64 data URI.")
		} else {
			utils.GinInternalServerError(c, fmt.Sprintf("Failed to store upload: %v", err))
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// DeleteFileHandler removes a previously uploaded file by name.
// @Summary      Delete an Uploaded File
// @Description  Deletes a file from the uploads directory. The filename must match the exact shape returned by the upload endpoint; anything containing path separators or traversal sequences is rejected.
// @Tags         Uploads
// @Produce      json
// @Param        filename  path  string  true  "Filename as returned by the upload endpoint."
// @Success      200  {object}  map[string]bool "{\"success\": true}"
// @Failure      400  {object}  utils.APIError "Invalid filename."
// @Failure      404  {object}  utils.APIError "No such file."
// @Router       /api/upload/{filename} [delete]
func DeleteFileHandler(c *gin.Context, service *uploads.Service, cfg *config.Config) {
	filename := c.Param("filename")

	if err := service.Remove(filename); err != nil {
		switch {
		case errors.Is(err, uploads.ErrInvalidFilename):
			utils.GinBadRequest(c, "Invalid filename")
		case errors.Is(err, uploads.ErrFileNotFound):
			utils.GinNotFound(c, "File not found")
		default:
			utils.GinInternalServerError(c, fmt.Sprintf("Failed to delete upload: %v", err))
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
