package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"kairos/internal/broker"
	"kairos/internal/store"
	"kairos/internal/trader"

	"github.com/gin-gonic/gin"
)

// Handler 把 trader 服务与存储暴露为 REST 接口。
type Handler struct {
	svc   *trader.Service
	store *store.Store
}

func NewHandler(svc *trader.Service, st *store.Store) *Handler {
	return &Handler{svc: svc, store: st}
}

func (h *Handler) Register(g *gin.RouterGroup) {
	g.POST("/orders/market", h.submitOrder)
	g.GET("/orders/history", h.orderHistory)
	g.GET("/accounts/balance", h.balance)
	g.GET("/metrics/performance", h.performance)
	g.GET("/settings/risk", h.listRiskSettings)
	g.GET("/settings/risk/:key", h.getRiskSetting)
	g.PUT("/settings/risk/:key", h.putRiskSetting)
}

type orderRequest struct {
	Instrument string `json:"instrument" binding:"required"`
	Side       string `json:"side" binding:"required"`
	Quantity   int64  `json:"quantity" binding:"required"`
}

func (h *Handler) submitOrder(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.svc.SubmitOrder(c.Request.Context(), req.Instrument, broker.Side(req.Side), req.Quantity)
	if err != nil {
		status := http.StatusBadGateway
		if !broker.IsRetryable(err) && !errors.Is(err, broker.ErrAuthExpired) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	if res.Rejection != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"accepted":  false,
			"rejection": res.Rejection,
		})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) orderHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	orders, err := h.store.ListOrders(c.Request.Context(), c.Query("instrument"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) balance(c *gin.Context) {
	snap, bal, err := h.svc.PollBalance(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"snapshot": snap,
		"holdings": bal.Holdings,
		"cash":     bal.Summary.Cash,
	})
}

func (h *Handler) performance(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	report, err := h.svc.Performance(c.Request.Context(), days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) listRiskSettings(c *gin.Context) {
	settings, err := h.store.ListRiskSettings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

func (h *Handler) getRiskSetting(c *gin.Context) {
	rs, err := h.store.GetRiskSetting(c.Request.Context(), c.Param("key"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if rs == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "risk setting not found"})
		return
	}
	c.JSON(http.StatusOK, rs)
}

func (h *Handler) putRiskSetting(c *gin.Context) {
	var patch store.RiskSettingPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rs, err := h.store.UpsertRiskSetting(c.Request.Context(), c.Param("key"), patch)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rs)
}
