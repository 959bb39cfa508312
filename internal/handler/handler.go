package handler

import (
	"strconv"

	"pointsystem/internal/service"
	"pointsystem/pkg/response"

	"github.com/gin-gonic/gin"
)

// Handler 积分接口
type Handler struct {
	pointService *service.PointService
}

func NewHandler(pointService *service.PointService) *Handler {
	return &Handler{pointService: pointService}
}

// AmountRequest 充值/使用请求
// amount 为指针：缺失时是参数错误，0 或负数交给业务规则判断
type AmountRequest struct {
	Amount *int64 `json:"amount" binding:"required"`
}

func parseUserID(c *gin.Context) (int64, bool) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || userID < 0 {
		response.ParamError(c, "invalid user id")
		return 0, false
	}
	return userID, true
}

// GetPoint 查询积分
// GET /api/v1/point/:id
func (h *Handler) GetPoint(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	point, err := h.pointService.GetPoint(c.Request.Context(), userID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, point)
}

// GetHistory 查询积分流水
// GET /api/v1/point/:id/histories
func (h *Handler) GetHistory(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	histories, err := h.pointService.GetHistory(c.Request.Context(), userID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, histories)
}

// Charge 充值
// PATCH /api/v1/point/:id/charge
func (h *Handler) Charge(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	point, err := h.pointService.Charge(c.Request.Context(), userID, *req.Amount)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, point)
}

// Use 使用积分
// PATCH /api/v1/point/:id/use
func (h *Handler) Use(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	point, err := h.pointService.Use(c.Request.Context(), userID, *req.Amount)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, point)
}

// Audit 对账
// GET /api/v1/point/:id/audit
func (h *Handler) Audit(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	result, err := h.pointService.Audit(c.Request.Context(), userID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, result)
}
