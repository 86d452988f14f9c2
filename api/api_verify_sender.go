package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/mailtrust/go-mailtrust-server/services"
	"github.com/mailtrust/go-mailtrust-server/types"
)

type VerifySenderApi struct {
	userService               *services.UserService
	senderVerificationService *services.SenderVerificationService
	validate                  *validator.Validate
}

func NewVerifySenderApi(userService *services.UserService, senderVerificationService *services.SenderVerificationService) *VerifySenderApi {
	return &VerifySenderApi{
		userService:               userService,
		senderVerificationService: senderVerificationService,
		validate:                  validator.New(),
	}
}

// Verify the sender of a received message
// @Summary Verify the sender of a received message
// @Description Resolves trusted keys for the claimed sender and verifies the detached body signature. Falls back to keys attached to the message, which prove signature validity only
// @Tags Messages
// @Param input body types.InputVerifySender true "Message body, detached signature and attachment references"
// @Success 200 {object} types.VerificationResult
// @Failure 400 {object} api.ApiError "invalid input"
// @Failure 404 {object} api.ApiError "owner not found"
// @Failure 429 {object} api.ApiError "rate limit exceeded"
// @Accept json
// @Produce json
// @Router /api/v1/messages/verify-sender [post]
func (a *VerifySenderApi) VerifySender(c *gin.Context) {
	var input types.InputVerifySender
	if err := c.BindJSON(&input); err != nil {
		ApiErrorf(c, http.StatusBadRequest, "invalid input")
		return
	}
	if err := a.validate.Struct(input); err != nil {
		ApiErrorf(c, http.StatusBadRequest, ValidatorErrorToUser(err.(validator.ValidationErrors)))
		return
	}

	user, uErr := a.userService.Get(input.OwnerAddress)
	if uErr != nil {
		if uErr == types.ErrNotFound {
			ApiErrorf(c, http.StatusNotFound, "owner not found")
			return
		}
		ApiErrorf(c, http.StatusInternalServerError, "failed to load owner")
		return
	}

	result, vErr := a.senderVerificationService.VerifyMessageSender(c.Request.Context(), user, &input)
	if vErr != nil {
		ApiErrorf(c, http.StatusInternalServerError, "sender verification failed")
		return
	}
	c.JSON(http.StatusOK, result)
}
