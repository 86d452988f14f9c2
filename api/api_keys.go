package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mailtrust/go-mailtrust-server/metrics"
	"github.com/mailtrust/go-mailtrust-server/services"
	"github.com/mailtrust/go-mailtrust-server/types"
)

type KeysApi struct {
	userService             *services.UserService
	verificationKeysService *services.VerificationKeysService
	sendPreferencesService  *services.SendPreferencesService
	validate                *validator.Validate
}

func NewKeysApi(userService *services.UserService, verificationKeysService *services.VerificationKeysService, sendPreferencesService *services.SendPreferencesService) *KeysApi {
	return &KeysApi{
		userService:             userService,
		verificationKeysService: verificationKeysService,
		sendPreferencesService:  sendPreferencesService,
		validate:                validator.New(),
	}
}

// resolveOwner loads the user record for the owner query parameter. Aborts
// the request on failure.
func (a *KeysApi) resolveOwner(c *gin.Context) *types.User {
	owner := c.Query("owner")
	if owner == "" {
		ApiErrorf(c, http.StatusBadRequest, "owner query parameter is required")
		return nil
	}
	user, uErr := a.userService.Get(owner)
	if uErr != nil {
		if uErr == types.ErrNotFound {
			ApiErrorf(c, http.StatusNotFound, "owner not found")
			return nil
		}
		ApiErrorf(c, http.StatusInternalServerError, "failed to load owner")
		return nil
	}
	return user
}

// Resolve verification keys for an email address
// @Summary Resolve verification keys for an email address
// @Description Returns verified pinned keys and the key directory entry for the address
// @Tags Keys
// @Param email path string true "Email address"
// @Param owner query string true "Owner address the resolution runs on behalf of"
// @Success 200 {object} types.OutputVerificationKeys
// @Failure 400 {object} api.ApiError "invalid email"
// @Failure 404 {object} api.ApiError "recipient not found"
// @Failure 429 {object} api.ApiError "rate limit exceeded"
// @Failure 503 {object} api.ApiError "key directory unavailable"
// @Accept json
// @Produce json
// @Router /api/v1/keys/{email} [get]
func (a *KeysApi) GetVerificationKeys(c *gin.Context) {
	email := c.Param("email")
	user := a.resolveOwner(c)
	if user == nil {
		return
	}

	start := time.Now()
	pinned, keysResponse, kErr := a.verificationKeysService.FetchVerificationKeys(c.Request.Context(), user, email)
	elapsed := time.Since(start)
	metrics.VerificationKeysResolutionLatency.Observe(float64(elapsed.Milliseconds()))
	if kErr != nil {
		var dirErr *services.KeyDirectoryError
		if errors.As(kErr, &dirErr) {
			switch types.PGPTypeErrorCode(dirErr.Code) {
			case types.PGPTypeErrorEmailFailedValidation:
				ApiErrorf(c, http.StatusBadRequest, "%s", dirErr.Message)
			case types.PGPTypeErrorRecipientNotFound:
				ApiErrorf(c, http.StatusNotFound, "%s", dirErr.Message)
			default:
				ApiErrorf(c, http.StatusBadGateway, "%s", dirErr.Message)
			}
			return
		}
		if errors.Is(kErr, types.ErrKeyDirectoryUnavailable) {
			ApiErrorf(c, http.StatusServiceUnavailable, "key directory unavailable")
			return
		}
		ApiErrorf(c, http.StatusInternalServerError, "failed to resolve keys")
		return
	}

	isOwn := user.AddressFor(email) != nil
	output := &types.OutputVerificationKeys{
		Email:        email,
		PinnedKeys:   pinned,
		KeysResponse: keysResponse,
		IsOwnAddress: isOwn,
		SelfShortcut: isOwn,
		ResolvedInMs: elapsed.Milliseconds(),
		ResolutionID: uuid.NewString(),
	}
	c.JSON(http.StatusOK, output)
}

// Resolve the encryption status icon for a recipient
// @Summary Resolve the encryption status icon for a recipient
// @Description Returns the encryption icon (color, text, flags) a composer should show for the recipient
// @Tags Keys
// @Param email path string true "Email address"
// @Param owner query string true "Owner address the resolution runs on behalf of"
// @Param messagePassword query bool false "Message is protected by a shared password"
// @Success 200 {object} types.OutputEncryptionStatus
// @Failure 400 {object} api.ApiError "invalid input"
// @Failure 429 {object} api.ApiError "rate limit exceeded"
// @Accept json
// @Produce json
// @Router /api/v1/keys/{email}/encryption-status [get]
func (a *KeysApi) GetEncryptionStatus(c *gin.Context) {
	email := c.Param("email")
	user := a.resolveOwner(c)
	if user == nil {
		return
	}
	isMessagePassword, _ := strconv.ParseBool(c.Query("messagePassword"))

	status, errorCode := a.sendPreferencesService.CalculateEncryptionIcon(c.Request.Context(), user, email, isMessagePassword)
	output := &types.OutputEncryptionStatus{
		Email:     email,
		Status:    status,
		ErrorCode: errorCode,
	}
	c.JSON(http.StatusOK, output)
}

// Resolve send preferences for a recipient
// @Summary Resolve send preferences for a recipient
// @Description Returns whether to encrypt and sign, the scheme, MIME type and selected key for the recipient
// @Tags Keys
// @Param email path string true "Email address"
// @Param owner query string true "Owner address the resolution runs on behalf of"
// @Param messagePassword query bool false "Message is protected by a shared password"
// @Success 200 {object} types.OutputSendPreferences
// @Failure 400 {object} api.ApiError "invalid input"
// @Failure 429 {object} api.ApiError "rate limit exceeded"
// @Failure 503 {object} api.ApiError "key directory unavailable"
// @Accept json
// @Produce json
// @Router /api/v1/keys/{email}/send-preferences [get]
func (a *KeysApi) GetSendPreferences(c *gin.Context) {
	email := c.Param("email")
	user := a.resolveOwner(c)
	if user == nil {
		return
	}
	isMessagePassword, _ := strconv.ParseBool(c.Query("messagePassword"))

	preferences, pErr := a.sendPreferencesService.GetSendPreferences(c.Request.Context(), user, email, isMessagePassword)
	if pErr != nil {
		if errors.Is(pErr, types.ErrKeyDirectoryUnavailable) {
			ApiErrorf(c, http.StatusServiceUnavailable, "key directory unavailable")
			return
		}
		ApiErrorf(c, http.StatusInternalServerError, "failed to resolve send preferences")
		return
	}
	if preferences.Error != nil {
		ApiErrorf(c, http.StatusUnprocessableEntity, "%s", preferences.Error.Error())
		return
	}

	output := &types.OutputSendPreferences{
		Email:             email,
		Encrypt:           preferences.Encrypt,
		Sign:              preferences.Sign,
		Scheme:            preferences.Scheme,
		MIMEType:          preferences.MIMEType,
		IsPublicKeyPinned: preferences.IsPublicKeyPinned,
		HasApiKeys:        preferences.HasApiKeys,
	}
	if preferences.PublicKey != nil {
		armored, aErr := preferences.PublicKey.GetArmoredPublicKey()
		if aErr == nil {
			output.PublicKey = armored
		}
	}
	c.JSON(http.StatusOK, output)
}
