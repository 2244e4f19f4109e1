package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/monocle-dev/scrumboard/internal/config"
	"github.com/monocle-dev/scrumboard/internal/handlers"
	"github.com/monocle-dev/scrumboard/internal/middleware"
	"github.com/monocle-dev/scrumboard/internal/types"
)

// resource is a board entity served over /api/{path}?id=N.
type resource struct {
	path                          string
	create, list, update, destroy gin.HandlerFunc
}

var resources = []resource{
	{"sprints", handlers.CreateSprint, handlers.GetSprints, handlers.UpdateSprint, handlers.DeleteSprint},
	{"user-stories", handlers.CreateUserStory, handlers.GetUserStories, handlers.UpdateUserStory, handlers.DeleteUserStory},
	{"tasks", handlers.CreateTask, handlers.GetTasks, handlers.UpdateTask, handlers.DeleteTask},
	{"rubrics", handlers.CreateRubric, handlers.GetRubrics, handlers.UpdateRubric, handlers.DeleteRubric},
	{"evaluations", handlers.CreateEvaluation, handlers.GetEvaluations, handlers.UpdateEvaluation, handlers.DeleteEvaluation},
	{"comments", handlers.CreateComment, handlers.GetComments, handlers.UpdateComment, handlers.DeleteComment},
}

func NewRouter(cfg *config.Config) *gin.Engine {
	handlers.RegisterValidation()

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Requested-With", types.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", types.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/", middleware.RequirePageAuth(), handlers.Home)

	api := r.Group("/api")
	{
		api.GET("/health", handlers.HealthCheck)
		api.GET("/ws/:project_id", middleware.AuthMiddleware(), handlers.WebSocket(cfg.AllowedOrigins))

		auth := api.Group("/auth")
		{
			auth.POST("/signup", handlers.Signup)
			auth.POST("/login", handlers.Login)
			auth.POST("/logout", handlers.Logout)
			auth.GET("/me", middleware.AuthMiddleware(), handlers.Me)
			auth.PATCH("/me", middleware.AuthMiddleware(), handlers.UpdateMe)
			auth.DELETE("/me", middleware.AuthMiddleware(), handlers.DeleteMe)
		}

		projects := api.Group("/projects", middleware.AuthMiddleware())
		{
			projects.POST("", handlers.CreateProject)
			projects.GET("", handlers.ListProjects)
			projects.GET("/:project_id", handlers.GetProject)
			projects.PATCH("/:project_id", handlers.UpdateProject)
			projects.DELETE("/:project_id", handlers.DeleteProject)

			projects.GET("/:project_id/members", handlers.ListMembers)
			projects.POST("/:project_id/members", handlers.AddMember)
			projects.PATCH("/:project_id/members/:user_id", handlers.UpdateMember)
			projects.DELETE("/:project_id/members/:user_id", handlers.RemoveMember)
		}

		users := api.Group("/users", middleware.AuthMiddleware())
		{
			users.GET("", handlers.ListUsers)
			users.PATCH("/:user_id/role", handlers.UpdateUserRole)
		}

		board := api.Group("", middleware.AuthMiddleware())
		for _, res := range resources {
			board.POST("/"+res.path, res.create)
			board.GET("/"+res.path, res.list)
			board.PUT("/"+res.path, res.update)
			board.DELETE("/"+res.path, res.destroy)
		}
	}

	return r
}
