package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/glsp-mcp/forge/pkg/diagram"
)

// diagramRequest is the wire shape for create/update requests,
// following the teacher's SubmitAlertRequest's "plain struct, json
// tags, gin binding" convention.
type diagramRequest struct {
	ID    string          `json:"id" binding:"required"`
	Name  string          `json:"name"`
	Nodes []diagramNode   `json:"nodes"`
	Edges []diagramEdge   `json:"edges"`
}

type diagramNode struct {
	ID            string  `json:"id"`
	Kind          string  `json:"kind"`
	ComponentName string  `json:"component_name,omitempty"`
	Label         string  `json:"label,omitempty"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
}

type diagramEdge struct {
	ID   string `json:"id"`
	From string `json:"from"`
	To   string `json:"to"`
	Kind string `json:"kind,omitempty"`
}

func toDomain(req diagramRequest) diagram.Diagram {
	d := diagram.Diagram{ID: req.ID, Name: req.Name}
	for _, n := range req.Nodes {
		d.Nodes = append(d.Nodes, diagram.Node{
			ID:            n.ID,
			Kind:          diagram.NodeKind(n.Kind),
			ComponentName: n.ComponentName,
			Label:         n.Label,
			Position:      diagram.Position{X: n.X, Y: n.Y},
		})
	}
	for _, e := range req.Edges {
		d.Edges = append(d.Edges, diagram.Edge{ID: e.ID, From: e.From, To: e.To, Kind: e.Kind})
	}
	return d
}

func fromDomain(d diagram.Diagram) gin.H {
	nodes := make([]gin.H, 0, len(d.Nodes))
	for _, n := range d.Nodes {
		nodes = append(nodes, gin.H{
			"id": n.ID, "kind": n.Kind, "component_name": n.ComponentName,
			"label": n.Label, "x": n.Position.X, "y": n.Position.Y,
		})
	}
	edges := make([]gin.H, 0, len(d.Edges))
	for _, e := range d.Edges {
		edges = append(edges, gin.H{"id": e.ID, "from": e.From, "to": e.To, "kind": e.Kind})
	}
	return gin.H{
		"id": d.ID, "name": d.Name, "nodes": nodes, "edges": edges,
		"created_at": d.CreatedAt, "updated_at": d.UpdatedAt,
	}
}

func (s *Server) createDiagramHandler(c *gin.Context) {
	var req diagramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := s.diagrams.Create(c.Request.Context(), toDomain(req))
	if err != nil {
		mapDiagramError(c, err)
		return
	}
	c.JSON(http.StatusCreated, fromDomain(created))
}

func (s *Server) listDiagramsHandler(c *gin.Context) {
	list, err := s.diagrams.List(c.Request.Context())
	if err != nil {
		mapDiagramError(c, err)
		return
	}
	out := make([]gin.H, 0, len(list))
	for _, d := range list {
		out = append(out, fromDomain(d))
	}
	c.JSON(http.StatusOK, gin.H{"diagrams": out})
}

func (s *Server) getDiagramHandler(c *gin.Context) {
	d, ok, err := s.diagrams.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		mapDiagramError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "diagram not found"})
		return
	}
	c.JSON(http.StatusOK, fromDomain(d))
}

func (s *Server) updateDiagramHandler(c *gin.Context) {
	var req diagramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.ID = c.Param("id")

	updated, err := s.diagrams.Update(c.Request.Context(), toDomain(req))
	if err != nil {
		mapDiagramError(c, err)
		return
	}
	c.JSON(http.StatusOK, fromDomain(updated))
}

func (s *Server) deleteDiagramHandler(c *gin.Context) {
	if err := s.diagrams.Delete(c.Request.Context(), c.Param("id")); err != nil {
		mapDiagramError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// mapDiagramError maps diagram store errors to HTTP responses,
// mirroring the teacher's pkg/api/errors.go mapServiceError.
func mapDiagramError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, diagram.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "diagram not found"})
	case errors.Is(err, diagram.ErrInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
