package router

import (
	"github.com/wb-go/wbf/ginext"

	"github.com/aliskhannn/ai-image-analyzer/internal/api/handlers/image"
	"github.com/aliskhannn/ai-image-analyzer/internal/api/respond"
	"github.com/aliskhannn/ai-image-analyzer/internal/middleware"
)

func Setup(h *image.Handler, verifier middleware.TokenVerifier) *ginext.Engine {
	r := ginext.New()

	r.Use(middleware.CORS())
	r.Use(ginext.Logger())
	r.Use(ginext.Recovery())

	r.GET("/", func(c *ginext.Context) {
		respond.OK(c, map[string]string{
			"message": "AI Image Analyzer API",
			"version": "1.0.0",
		})
	})

	api := r.Group("/api/v1")

	api.GET("/health", h.Health)

	images := api.Group("/images")
	images.Use(middleware.Auth(verifier))

	images.POST("/process", h.Process)   // enqueue background processing
	images.POST("/register", h.Register) // register an uploaded file
	images.POST("/upload", h.Upload)     // upload, register and enqueue

	return r
}
