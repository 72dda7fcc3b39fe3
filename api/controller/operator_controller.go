package controller

import (
	"net/http"

	"storefront-builder/api/middleware"
	domainRepo "storefront-builder/domain/repository"

	"github.com/gin-gonic/gin"
)

// OperatorController 当前操作员信息
type OperatorController struct {
	operatorRepo domainRepo.OperatorRepository
}

func NewOperatorController(operatorRepo domainRepo.OperatorRepository) *OperatorController {
	return &OperatorController{operatorRepo: operatorRepo}
}

// Me 返回 Webhook 同步过来的操作员资料
// GET /api/me
func (oc *OperatorController) Me(c *gin.Context) {
	operatorID := middleware.OperatorID(c)
	if operatorID == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "未获取到操作员信息"})
		return
	}

	operator, err := oc.operatorRepo.GetByID(operatorID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	if operator == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "操作员尚未同步"})
		return
	}
	c.JSON(http.StatusOK, operator)
}
