package api

import (
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mailtrust/go-mailtrust-server/services"
	"github.com/mailtrust/go-mailtrust-server/types"
)

type AttachmentsApi struct {
	attachmentService *services.AttachmentService
	validate          *validator.Validate
}

func NewAttachmentsApi(attachmentService *services.AttachmentService) *AttachmentsApi {
	return &AttachmentsApi{
		attachmentService: attachmentService,
		validate:          validator.New(),
	}
}

// Store a message attachment
// @Summary Store a message attachment
// @Description Stores an attachment object in the bucket. Verify-sender requests reference stored attachments by id when recovering keys attached to a message
// @Tags Messages
// @Param input body types.InputAttachment true "Attachment content, base64 encoded"
// @Success 200 {object} types.OutputAttachment
// @Failure 400 {object} api.ApiError "invalid input"
// @Failure 429 {object} api.ApiError "rate limit exceeded"
// @Failure 500 {object} api.ApiError "failed to store attachment"
// @Accept json
// @Produce json
// @Router /api/v1/attachments [post]
func (a *AttachmentsApi) PostAttachment(c *gin.Context) {
	var input types.InputAttachment
	if err := c.BindJSON(&input); err != nil {
		ApiErrorf(c, http.StatusBadRequest, "invalid input")
		return
	}
	if err := a.validate.Struct(input); err != nil {
		ApiErrorf(c, http.StatusBadRequest, ValidatorErrorToUser(err.(validator.ValidationErrors)))
		return
	}

	content, dErr := base64.StdEncoding.DecodeString(input.ContentBase64)
	if dErr != nil {
		ApiErrorf(c, http.StatusBadRequest, "content is not valid base64")
		return
	}

	attachmentID := input.AttachmentID
	if attachmentID == "" {
		attachmentID = uuid.NewString()
	}
	path, uErr := a.attachmentService.UploadAttachment(c.Request.Context(), attachmentID, content)
	if uErr != nil {
		if uErr == types.ErrBadRequest {
			ApiErrorf(c, http.StatusBadRequest, "attachment content is empty")
			return
		}
		ApiErrorf(c, http.StatusInternalServerError, "failed to store attachment")
		return
	}
	c.JSON(http.StatusOK, types.OutputAttachment{AttachmentID: attachmentID, Path: path})
}
