package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/reedcms/reed/rbac"
	"github.com/reedcms/reed/reederr"
	"github.com/reedcms/reed/ucg"
)

// CreateEntityRequest is the POST /api/entities payload.
type CreateEntityRequest struct {
	Tag          string                 `json:"tag" validate:"required"`
	SemanticName *string                `json:"semantic_name,omitempty"`
	Payload      map[string]interface{} `json:"payload"`
}

// CreateEntity handles POST /api/entities.
func (h *Handlers) CreateEntity(c echo.Context) error {
	var req CreateEntityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	actor := actorID(c)
	entity, err := h.Graph.CreateEntity(c.Request().Context(), req.Tag, req.SemanticName, req.Payload, actor)
	if err != nil {
		return translateUCGErr(err)
	}
	return c.JSON(http.StatusCreated, entity)
}

// GetEntity handles GET /api/entities/:id.
func (h *Handlers) GetEntity(c echo.Context) error {
	entity, err := h.Graph.GetEntity(c.Request().Context(), c.Param("id"))
	if err != nil {
		return translateUCGErr(err)
	}
	return c.JSON(http.StatusOK, entity)
}

// UpdateEntityRequest is the PUT /api/entities/:id payload.
type UpdateEntityRequest struct {
	Payload map[string]interface{} `json:"payload"`
	Summary string                 `json:"summary"`
}

// UpdateEntity handles PUT /api/entities/:id.
func (h *Handlers) UpdateEntity(c echo.Context) error {
	var req UpdateEntityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	version, err := h.Graph.UpdateEntity(c.Request().Context(), c.Param("id"), req.Payload, actorID(c), req.Summary)
	if err != nil {
		return translateUCGErr(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"version": version})
}

// DeleteEntity handles DELETE /api/entities/:id?cascade=true.
func (h *Handlers) DeleteEntity(c echo.Context) error {
	cascade := c.QueryParam("cascade") == "true"
	if err := h.Graph.DeleteEntity(c.Request().Context(), c.Param("id"), cascade); err != nil {
		return translateUCGErr(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// AttachRequest is the POST /api/entities/:id/children payload.
type AttachRequest struct {
	ChildID string `json:"child_id" validate:"required"`
	Kind    string `json:"kind"`
	Weight  int    `json:"weight"`
}

// Attach handles POST /api/entities/:id/children.
func (h *Handlers) Attach(c echo.Context) error {
	var req AttachRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	kind := ucg.Kind(req.Kind)
	if kind == "" {
		kind = ucg.KindContains
	}

	assoc, err := h.Graph.Attach(c.Request().Context(), c.Param("id"), req.ChildID, kind, req.Weight)
	if err != nil {
		return translateUCGErr(err)
	}
	return c.JSON(http.StatusCreated, assoc)
}

// Detach handles DELETE /api/associations/:assocId?parent=.
func (h *Handlers) Detach(c echo.Context) error {
	if err := h.Graph.Detach(c.Request().Context(), c.Param("assocId"), c.QueryParam("parent")); err != nil {
		return translateUCGErr(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ChildrenOf handles GET /api/entities/:id/children.
func (h *Handlers) ChildrenOf(c echo.Context) error {
	children, err := h.Graph.ChildrenOf(c.Request().Context(), c.Param("id"))
	if err != nil {
		return translateUCGErr(err)
	}
	return c.JSON(http.StatusOK, children)
}

// ResolvePath handles GET /api/resolve?path=root.1.2.
func (h *Handlers) ResolvePath(c echo.Context) error {
	entity, breadcrumb, err := h.Graph.ResolvePath(c.Request().Context(), c.QueryParam("path"))
	if err != nil {
		return translateUCGErr(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"entity": entity, "breadcrumb": breadcrumb})
}

// Query handles POST /api/query with a ucg.Query body.
func (h *Handlers) Query(c echo.Context) error {
	var q ucg.Query
	if err := c.Bind(&q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	result, err := h.Graph.Query(c.Request().Context(), q)
	if err != nil {
		return translateUCGErr(err)
	}
	return c.JSON(http.StatusOK, result)
}

// Schemas handles GET /api/schemas, listing every registered snippet schema.
func (h *Handlers) Schemas(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Snippets.Schemas())
}

func actorID(c echo.Context) *string {
	p, ok := rbac.GetPrincipal(c)
	if !ok {
		return nil
	}
	return &p.ID
}

func translateUCGErr(err error) error {
	if rerr, ok := reederr.As(err); ok {
		return echo.NewHTTPError(rerr.HTTPStatus(), rerr.Error())
	}
	return err
}
