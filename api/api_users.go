package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/mailtrust/go-mailtrust-server/services"
	"github.com/mailtrust/go-mailtrust-server/types"
)

type UsersApi struct {
	userService *services.UserService
	validate    *validator.Validate
}

func NewUsersApi(userService *services.UserService) *UsersApi {
	return &UsersApi{
		userService: userService,
		validate:    validator.New(),
	}
}

// Provision the owner account record
// @Summary Provision the owner account record
// @Description Stores the addresses and keys of an account owner. These keys anchor the own-address short circuit and serve as the trust roots for contact card verification
// @Tags Users
// @Param address path string true "Owner address"
// @Param input body types.InputUser true "Owned addresses with their keys"
// @Success 200 {object} types.User
// @Failure 400 {object} api.ApiError "invalid input"
// @Failure 429 {object} api.ApiError "rate limit exceeded"
// @Failure 500 {object} api.ApiError "failed to store user"
// @Accept json
// @Produce json
// @Router /api/v1/users/{address} [put]
func (a *UsersApi) PutUser(c *gin.Context) {
	address := c.Param("address")

	var input types.InputUser
	if err := c.BindJSON(&input); err != nil {
		ApiErrorf(c, http.StatusBadRequest, "invalid input")
		return
	}
	if err := a.validate.Struct(input); err != nil {
		ApiErrorf(c, http.StatusBadRequest, ValidatorErrorToUser(err.(validator.ValidationErrors)))
		return
	}

	user := &types.User{
		ID_:       address,
		Addresses: input.Addresses,
		Created:   time.Now().UTC().UnixMilli(),
	}
	if err := a.userService.Save(address, user); err != nil {
		ApiErrorf(c, http.StatusInternalServerError, "failed to store user")
		return
	}
	c.JSON(http.StatusOK, user)
}
