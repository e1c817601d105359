// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"calroute/internal/modules/planner"
	"calroute/internal/modules/routing"
	"calroute/internal/modules/tasks"
	"calroute/internal/obs"
)

type errorResponse struct {
	Error string `json:"error"`
}

type infeasibleResponse struct {
	Error         string `json:"error"`
	First         string `json:"first"`
	Second        string `json:"second"`
	MarginMinutes int    `json:"margin_minutes"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writePlanError(c *gin.Context, err error) {
	var inf *routing.InfeasibleError
	switch {
	case errors.As(err, &inf):
		writeJSON(c, http.StatusConflict, infeasibleResponse{
			Error:         "fixed tasks overlap",
			First:         inf.First,
			Second:        inf.Second,
			MarginMinutes: inf.MarginMinutes,
		})
	case errors.Is(err, routing.ErrInfeasible):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, planner.ErrBadRequest), errors.Is(err, routing.ErrInvalidProblem):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, tasks.ErrNotFound), errors.Is(err, planner.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	default:
		log.Printf("[HTTP] req_id=%s internal error: %v", obs.RequestID(c.Request.Context()), err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
