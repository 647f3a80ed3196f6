package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tss-cli/api/handlers"
)

func SetupRouter(relay *handlers.RelayHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	router.POST("/set", relay.Set)
	router.POST("/get", relay.Get)
	router.POST("/signupkeygen", relay.SignupKeygen)
	router.POST("/signupsign", relay.SignupSign)

	return router
}
