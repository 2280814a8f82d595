package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"basegraph.app/qna/internal/http/handler"
	"basegraph.app/qna/internal/model"
	"basegraph.app/qna/internal/service"
)

func SetupRoutes(router *gin.Engine, services *service.Services) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		schema := model.CollectionSchema()
		v1.GET("/schema", func(c *gin.Context) {
			c.JSON(http.StatusOK, schema)
		})

		questionHandler := handler.NewQuestionHandler(services.Questions())
		QuestionRouter(v1.Group("/questions"), questionHandler)
	}
}
