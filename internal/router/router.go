package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/tilebid/backend/api/handler"
)

type Handlers struct {
	Auth    *apiHandler.AuthHandler
	Profile *apiHandler.ProfileHandler
	Task    *apiHandler.TaskHandler
	Bid     *apiHandler.BidHandler
	Message *apiHandler.MessageHandler
	Health  *apiHandler.HealthHandler
}

func New(handlers Handlers, authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	// Auth routes
	r.POST("/api/v1/auth/login", handlers.Auth.Login)
	r.POST("/api/v1/auth/refresh", handlers.Auth.Refresh)

	// Protected routes
	r.GET("/api/v1/profile", authMiddleware(handlers.Profile.GetProfile))
	r.PUT("/api/v1/profile", authMiddleware(handlers.Profile.UpdateProfile))

	r.GET("/api/v1/tasks", authMiddleware(handlers.Task.ListTasks))
	r.POST("/api/v1/tasks", authMiddleware(handlers.Task.CreateTask))
	r.GET("/api/v1/tasks/{id}", authMiddleware(handlers.Task.GetTask))
	r.POST("/api/v1/tasks/{id}/close", authMiddleware(handlers.Task.CloseTask))

	r.POST("/api/v1/tasks/{id}/bids", authMiddleware(handlers.Bid.SubmitBid))
	r.GET("/api/v1/tasks/{id}/bids", authMiddleware(handlers.Bid.ListTaskBids))
	r.POST("/api/v1/tasks/{id}/accept", authMiddleware(handlers.Bid.AcceptBid))
	r.GET("/api/v1/bids", authMiddleware(handlers.Bid.ListMyBids))
	r.POST("/api/v1/bids/{id}/withdraw", authMiddleware(handlers.Bid.WithdrawBid))
	r.POST("/api/v1/bids/{id}/revision", authMiddleware(handlers.Bid.RequestRevision))

	r.POST("/api/v1/conversations", authMiddleware(handlers.Message.OpenInquiry))
	r.GET("/api/v1/conversations", authMiddleware(handlers.Message.ListConversations))
	r.GET("/api/v1/conversations/{id}/messages", authMiddleware(handlers.Message.ListMessages))
	r.POST("/api/v1/conversations/{id}/messages", authMiddleware(handlers.Message.SendMessage))
	r.GET("/api/v1/conversations/{id}/subscribe", authMiddleware(handlers.Message.Subscribe))

	return r
}
