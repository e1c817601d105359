// README: API gateway; registers HTTP routes and delegates to the planner.
package http

import (
	"net/http"
	"time"

	"calroute/internal/http/handlers"
)

type ServerDeps struct {
	Planner  handlers.Planner
	Store    handlers.ScheduleStore
	Resolver handlers.PlaceResolver
	Location *time.Location
}

type Server struct {
	plan *handlers.PlanHandler
}

func NewServer(deps ServerDeps) *Server {
	return &Server{
		plan: handlers.NewPlanHandler(deps.Planner, deps.Store, deps.Resolver, deps.Location),
	}
}

func (s *Server) Routes() http.Handler {
	return NewRouter(s.plan)
}
