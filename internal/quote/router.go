package quote

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/millworks/backoffice/internal/auth"
	"github.com/millworks/backoffice/internal/httpapi"
	"github.com/millworks/backoffice/utils"
)

type Router struct {
	svc *ApprovalService
}

func NewRouter(svc *ApprovalService) *Router {
	return &Router{svc: svc}
}

// Register mounts the staff routes. They sit behind the session gate.
func (r *Router) Register(rg *gin.RouterGroup) {
	g := rg.Group("/quotes-approval")
	g.GET("", r.HandleFindAll)
	g.GET("/:id", r.HandleFindOne)
	g.GET("/quote/:quoteId", r.HandleFindByQuoteID)
	g.POST("", r.HandleCreate)
	g.PATCH("/:id", r.HandleUpdate)
	g.PUT("/:id", r.HandleUpdate)
	g.DELETE("/:id", r.HandleRemove)
}

// RegisterPublic mounts the routes reached from the link in the customer's email.
// The token is the only credential.
func (r *Router) RegisterPublic(rg *gin.RouterGroup) {
	g := rg.Group("/quotes-approval/token")
	g.GET("/:tokenHash", r.HandleFindByToken)
	g.POST("/:tokenHash/decision", r.HandleDecide)
}

// HandleFindAll handles GET /quotes-approval
// Query params: page, limit, sortBy, sortOrder, quoteId, customerId, status
func (r *Router) HandleFindAll(c *gin.Context) {
	quoteID, _ := utils.ParseUint(c.Query("quoteId"))
	customerID, _ := utils.ParseUint(c.Query("customerId"))
	filter := Filter{QuoteID: quoteID, CustomerID: customerID, Status: Status(c.Query("status"))}
	page := utils.GetPaginationParams(c.Query("page"), c.Query("limit"))

	result, err := r.svc.FindAll(c.Request.Context(), filter, page, r.svc.SortParams(c.Query("sortBy"), c.Query("sortOrder")))
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (r *Router) HandleFindOne(c *gin.Context) {
	id, ok := httpapi.ParseID(c, "id")
	if !ok {
		return
	}
	approval, err := r.svc.FindOne(c.Request.Context(), id)
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, approval)
}

// HandleFindByQuoteID handles GET /quotes-approval/quote/:quoteId?latest=true
func (r *Router) HandleFindByQuoteID(c *gin.Context) {
	quoteID, ok := httpapi.ParseID(c, "quoteId")
	if !ok {
		return
	}
	latest, _ := utils.ParseBool(c.Query("latest"))
	approval, err := r.svc.FindByQuoteID(c.Request.Context(), quoteID, latest)
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, approval)
}

func (r *Router) HandleCreate(c *gin.Context) {
	var req CreateRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	approval, err := r.svc.Create(c.Request.Context(), &req, auth.ActorEmail(c.Request.Context()))
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, approval)
}

func (r *Router) HandleUpdate(c *gin.Context) {
	id, ok := httpapi.ParseID(c, "id")
	if !ok {
		return
	}
	var req UpdateRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	approval, err := r.svc.Update(c.Request.Context(), id, &req)
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, approval)
}

func (r *Router) HandleRemove(c *gin.Context) {
	id, ok := httpapi.ParseID(c, "id")
	if !ok {
		return
	}
	if err := r.svc.Remove(c.Request.Context(), id); err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (r *Router) HandleFindByToken(c *gin.Context) {
	approval, err := r.svc.FindByToken(c.Request.Context(), c.Param("tokenHash"))
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, approval)
}

// HandleDecide handles POST /quotes-approval/token/:tokenHash/decision
func (r *Router) HandleDecide(c *gin.Context) {
	var req DecisionRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	approval, err := r.svc.Decide(c.Request.Context(), c.Param("tokenHash"), &req, c.ClientIP())
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, approval)
}
