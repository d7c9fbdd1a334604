package api

import (
	"github.com/gin-gonic/gin"

	"qna-chatbot/backend/pkg/jwt"
	"qna-chatbot/backend/pkg/middleware"
)

// RegisterRoutes mounts the chat API. Guest routes skip authentication and
// are only mounted when the guest-sessions feature flag is on; everything
// touching stored chats requires a valid token.
func RegisterRoutes(router *gin.Engine, handler *ChatHandler, jwtService *jwt.Service, limiter *middleware.RateLimiter, enableGuest bool) {
	router.GET("/api/models", handler.ListModels)

	if enableGuest {
		guest := router.Group("/api/guest")
		guest.Use(limiter.Middleware())
		{
			guest.POST("/send", handler.GuestSend)
		}
	}

	chats := router.Group("/api")
	chats.Use(AuthMiddleware(jwtService))
	{
		chats.POST("/chats", handler.CreateChat)
		chats.GET("/chats", handler.ListChats)
		chats.GET("/chats/:chatId/messages", handler.ListMessages)
		chats.DELETE("/chats/:chatId", handler.DeleteChat)
		chats.POST("/send", limiter.Middleware(), handler.Send)
	}
}
