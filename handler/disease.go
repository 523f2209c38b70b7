package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/TIANLI0/CaneScan/model"
	"github.com/TIANLI0/CaneScan/service"
)

type DiseaseHandler struct {
	kb *service.KnowledgeBase
}

func NewDiseaseHandler(kb *service.KnowledgeBase) *DiseaseHandler {
	return &DiseaseHandler{kb: kb}
}

// List 返回全部标签的病害说明
func (h *DiseaseHandler) List(c *gin.Context) {
	labels := h.kb.Labels()
	data := make([]model.DiseaseInfo, 0, len(labels))
	for _, label := range labels {
		record, _ := h.kb.Lookup(label)
		data = append(data, model.DiseaseInfo{Label: label, DiseaseRecord: record})
	}

	c.JSON(http.StatusOK, model.DiseaseResponse{
		Success: true,
		Message: "查询成功",
		Data:    data,
	})
}

// Get 按标签查询病害说明
func (h *DiseaseHandler) Get(c *gin.Context) {
	label := c.Param("label")
	record, ok := h.kb.Lookup(label)
	if !ok {
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Success: false,
			Message: "未找到该标签的病害说明",
			Error:   model.ErrLabelNotFound.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, model.DiseaseResponse{
		Success: true,
		Message: "查询成功",
		Data:    []model.DiseaseInfo{{Label: label, DiseaseRecord: record}},
	})
}
