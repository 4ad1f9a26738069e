// Package server exposes the reconciler over a local HTTP API.
// Endpoints (under basePath, default /api):
//
//	GET  /status          per-module probe report
//	GET  /record          last persisted RunRecord
//	GET  /history?n=20    recent runs from the history store
//	POST /apply?module=x  run apply (module omitted or "all" = everything)
//	POST /revert?module=x run revert
//
// GET /metrics (outside basePath) serves Prometheus metrics.
package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nnversace/hosttune/internal/hostmod"
	"github.com/nnversace/hosttune/internal/metrics"
	"github.com/nnversace/hosttune/internal/record/sqlite"
)

type Router struct {
	orch     *hostmod.Orchestrator
	history  *sqlite.Store
	basePath string
}

// NewRouter builds a Router over the orchestrator. history may be nil.
func NewRouter(orch *hostmod.Orchestrator, history *sqlite.Store, basePath string) *Router {
	return &Router{orch: orch, history: history, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler that can be mounted in any mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/status", r.handleStatus)
	group.GET("/record", r.handleRecord)
	group.GET("/history", r.handleHistory)
	group.POST("/apply", r.handleApply)
	group.POST("/revert", r.handleRevert)
	g.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr, basePath string, orch *hostmod.Orchestrator, history *sqlite.Store) *http.Server {
	r := NewRouter(orch, history, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      5 * time.Minute, // apply runs block the response
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server
}

type errorResp struct {
	Error string `json:"error"`
}

func (r *Router) handleStatus(c *gin.Context) {
	sel := selection(c)
	statuses, err := r.orch.Statuses(c.Request.Context(), sel)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, statuses)
}

func (r *Router) handleRecord(c *gin.Context) {
	rec, err := r.orch.LastRecord()
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, errorResp{Error: "never run"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (r *Router) handleHistory(c *gin.Context) {
	if r.history == nil {
		c.JSON(http.StatusNotFound, errorResp{Error: "history disabled"})
		return
	}
	n, _ := strconv.Atoi(c.DefaultQuery("n", "20"))
	entries, err := r.history.Recent(c.Request.Context(), n)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (r *Router) handleApply(c *gin.Context) {
	r.handleRun(c, hostmod.ModeApply)
}

func (r *Router) handleRevert(c *gin.Context) {
	r.handleRun(c, hostmod.ModeRevert)
}

func (r *Router) handleRun(c *gin.Context, mode hostmod.Mode) {
	rec, _, err := r.orch.Run(c.Request.Context(), mode, selection(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	status := http.StatusOK
	if len(rec.Failed) > 0 {
		status = http.StatusMultiStatus
	}
	c.JSON(status, rec)
}

func selection(c *gin.Context) []string {
	m := strings.TrimSpace(c.Query("module"))
	if m == "" || m == "all" {
		return nil
	}
	return strings.Split(m, ",")
}

func sanitizeBase(bp string) string {
	bp = strings.TrimSpace(bp)
	if bp == "" {
		return "/api"
	}
	if !strings.HasPrefix(bp, "/") {
		bp = "/" + bp
	}
	return strings.TrimRight(bp, "/")
}
