package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/qna/internal/http/handler"
)

func QuestionRouter(rg *gin.RouterGroup, h *handler.QuestionHandler) {
	rg.GET("", h.List)
	rg.POST("", h.Submit)
	rg.POST("/:id/replies", h.Reply)
	rg.POST("/:id/like", h.ToggleLike)
}
