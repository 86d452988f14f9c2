package apiroutes

import (
	"github.com/gin-gonic/gin"
	"github.com/mailtrust/go-mailtrust-server/api"
	restinterceptors "github.com/mailtrust/go-mailtrust-server/api/interceptors"
	"github.com/mailtrust/go-mailtrust-server/global"
	"github.com/mailtrust/go-mailtrust-server/metrics"
	"github.com/mailtrust/go-mailtrust-server/repository"
	"github.com/mailtrust/go-mailtrust-server/services"
	"github.com/mailtrust/go-mailtrust-server/types"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// REST API routes
func ConfigRoutes(router *gin.Engine, dbSelector *repository.CouchDBSelector, env *types.Environment) *gin.Engine {
	// init metrics
	if global.Conf.Prometheus.Enabled {

		metrics.InitMetrics()

		authorized := router.Group("/metrics", gin.BasicAuth(gin.Accounts{
			global.Conf.Prometheus.Username: global.Conf.Prometheus.Password,
		}))

		authorized.GET("", gin.WrapH(promhttp.Handler()))
	}

	// SERVICE definitions
	userService := services.NewUserService(dbSelector, env)
	contactService := services.NewContactService(dbSelector, env)
	keyDirectoryService := services.NewKeyDirectoryService(env)
	verificationKeysService := services.NewVerificationKeysService(contactService, keyDirectoryService)
	sendPreferencesService := services.NewSendPreferencesService(contactService, keyDirectoryService, env)
	attachmentService := services.NewAttachmentService(env)
	senderVerificationService := services.NewSenderVerificationService(verificationKeysService, attachmentService)

	// API definitions
	healthCheckApi := api.NewHealthCheckAPI()
	keysApi := api.NewKeysApi(userService, verificationKeysService, sendPreferencesService)
	contactsApi := api.NewContactsApi(contactService)
	usersApi := api.NewUsersApi(userService)
	attachmentsApi := api.NewAttachmentsApi(attachmentService)
	verifySenderApi := api.NewVerifySenderApi(userService, senderVerificationService)

	// PUBLIC ROOT API
	rootPublicApi := router.Group("/")
	{
		rootPublicApi.GET("healthcheck", healthCheckApi.HealthCheck)
	}

	rootApi := router.Group("/api", metrics.MetricsMiddleware(), restinterceptors.RateLimitMiddleware())
	{
		rootApi.GET("/v1/keys/:email", keysApi.GetVerificationKeys)
		rootApi.GET("/v1/keys/:email/encryption-status", keysApi.GetEncryptionStatus)
		rootApi.GET("/v1/keys/:email/send-preferences", keysApi.GetSendPreferences)
		rootApi.GET("/v1/contacts/:email/cards", contactsApi.GetContactCards)
		rootApi.PUT("/v1/contacts/:email/cards", contactsApi.PutContactCards)
		rootApi.PUT("/v1/users/:address", usersApi.PutUser)
		rootApi.POST("/v1/attachments", attachmentsApi.PostAttachment)
		rootApi.POST("/v1/messages/verify-sender", verifySenderApi.VerifySender)
	}

	return router
}
