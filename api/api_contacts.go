package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/mailtrust/go-mailtrust-server/services"
	"github.com/mailtrust/go-mailtrust-server/types"
)

type ContactsApi struct {
	contactService *services.ContactService
	validate       *validator.Validate
}

func NewContactsApi(contactService *services.ContactService) *ContactsApi {
	return &ContactsApi{
		contactService: contactService,
		validate:       validator.New(),
	}
}

// Store the signed cards for a contact
// @Summary Store the signed cards for a contact
// @Description Replaces the stored card set for the owner/email pair. Cards are stored as submitted; signature verification happens at resolution time against the owners keys
// @Tags Contacts
// @Param email path string true "Contact email address"
// @Param input body types.InputContactCards true "Owner address and card set"
// @Success 200 {object} types.ContactCards
// @Failure 400 {object} api.ApiError "invalid input"
// @Failure 429 {object} api.ApiError "rate limit exceeded"
// @Failure 500 {object} api.ApiError "failed to store contact cards"
// @Accept json
// @Produce json
// @Router /api/v1/contacts/{email}/cards [put]
func (a *ContactsApi) PutContactCards(c *gin.Context) {
	email := c.Param("email")

	var input types.InputContactCards
	if err := c.BindJSON(&input); err != nil {
		ApiErrorf(c, http.StatusBadRequest, "invalid input")
		return
	}
	if err := a.validate.Struct(input); err != nil {
		ApiErrorf(c, http.StatusBadRequest, ValidatorErrorToUser(err.(validator.ValidationErrors)))
		return
	}

	now := time.Now().UTC().UnixMilli()
	cards := &types.ContactCards{
		OwnerAddress: input.OwnerAddress,
		Email:        email,
		Cards:        input.Cards,
		Created:      now,
		Modified:     now,
	}
	if err := a.contactService.SaveContactCards(c.Request.Context(), cards); err != nil {
		if err == types.ErrConflict {
			ApiErrorf(c, http.StatusConflict, "conflict")
			return
		}
		ApiErrorf(c, http.StatusInternalServerError, "failed to store contact cards")
		return
	}
	c.JSON(http.StatusOK, cards)
}

// Get the stored cards for a contact
// @Summary Get the stored cards for a contact
// @Description Returns the stored card set for the owner/email pair
// @Tags Contacts
// @Param email path string true "Contact email address"
// @Param owner query string true "Owner address"
// @Success 200 {object} types.ContactCards
// @Failure 404 {object} api.ApiError "contact not found"
// @Failure 429 {object} api.ApiError "rate limit exceeded"
// @Accept json
// @Produce json
// @Router /api/v1/contacts/{email}/cards [get]
func (a *ContactsApi) GetContactCards(c *gin.Context) {
	email := c.Param("email")
	owner := c.Query("owner")
	if owner == "" {
		ApiErrorf(c, http.StatusBadRequest, "owner query parameter is required")
		return
	}

	cards, err := a.contactService.GetContactCards(c.Request.Context(), owner, email)
	if err != nil {
		if err == types.ErrNotFound {
			ApiErrorf(c, http.StatusNotFound, "contact not found")
			return
		}
		ApiErrorf(c, http.StatusInternalServerError, "failed to load contact cards")
		return
	}
	c.JSON(http.StatusOK, cards)
}
