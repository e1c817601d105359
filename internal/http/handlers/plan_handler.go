// README: Planning handlers: stateless plan, morning optimize and live re-plan.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"calroute/internal/config"
	"calroute/internal/modules/planner"
	"calroute/internal/modules/routing"
	"calroute/internal/modules/tasks"
	"calroute/internal/modules/travel"
	"calroute/internal/types"
)

type Planner interface {
	Plan(ctx context.Context, req planner.Request) (*planner.Result, error)
}

// ScheduleStore is the persisted side of a user's day.
type ScheduleStore interface {
	planner.TaskSource
	Preferences(ctx context.Context, userID string) (*tasks.Preferences, error)
	SaveSchedule(ctx context.Context, userID string, day time.Time, res *planner.Result, titles map[string]string) error
}

type PlaceResolver interface {
	Resolve(ctx context.Context, address string) (travel.Place, error)
}

type PlanHandler struct {
	planner  Planner
	store    ScheduleStore
	resolver PlaceResolver
	loc      *time.Location
	now      func() time.Time
}

// NewPlanHandler wires the handlers. store and resolver may be nil: without
// a store only /api/plan is usable, and without a resolver addresses are
// used as given.
func NewPlanHandler(p Planner, store ScheduleStore, resolver PlaceResolver, loc *time.Location) *PlanHandler {
	if loc == nil {
		loc = time.Local
	}
	return &PlanHandler{planner: p, store: store, resolver: resolver, loc: loc, now: time.Now}
}

type placeReq struct {
	Address string   `json:"address"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
}

type taskReq struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Location        *placeReq  `json:"location"`
	PlaceType       string     `json:"place_type"`
	DurationMinutes int        `json:"duration_minutes"`
	WindowStart     string     `json:"window_start"`
	WindowEnd       string     `json:"window_end"`
	Priority        string     `json:"priority"`
	Start           *time.Time `json:"start"`
	End             *time.Time `json:"end"`
}

type planReq struct {
	UserID   string     `json:"user_id"`
	Date     string     `json:"date"`
	Depot    *placeReq  `json:"depot"`
	EndDepot *placeReq  `json:"end_depot"`
	DepartAt *time.Time `json:"depart_at"`
	Modes    []string   `json:"modes"`
	Tasks    []taskReq  `json:"tasks"`
}

// Plan schedules the tasks in the request body without touching storage.
func (h *PlanHandler) Plan(c *gin.Context) {
	var req planReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Depot == nil {
		writeError(c, http.StatusBadRequest, "missing depot")
		return
	}
	ctx := c.Request.Context()

	day, err := h.parseDay(req.Date)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	modes, err := travel.ParseModes(req.Modes)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	depot, err := h.place(ctx, *req.Depot)
	if err != nil {
		writeError(c, http.StatusBadRequest, "depot: "+err.Error())
		return
	}

	preq := planner.Request{
		UserID:   req.UserID,
		Day:      day,
		Depot:    depot,
		DepartAt: req.DepartAt,
		Modes:    modes,
	}
	if req.EndDepot != nil {
		end, err := h.place(ctx, *req.EndDepot)
		if err != nil {
			writeError(c, http.StatusBadRequest, "end_depot: "+err.Error())
			return
		}
		preq.EndDepot = &end
	}
	for i, tr := range req.Tasks {
		t, err := h.task(ctx, tr)
		if err != nil {
			writeError(c, http.StatusBadRequest, fmt.Sprintf("task %d: %v", i, err))
			return
		}
		preq.Tasks = append(preq.Tasks, t)
	}

	res, err := h.planner.Plan(ctx, preq)
	if err != nil {
		writePlanError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

type optimizeReq struct {
	UserID string `json:"user_id"`
	Date   string `json:"date"`
}

// OptimizeSchedule plans the user's stored tasks from home at the start of
// the day and saves the result.
func (h *PlanHandler) OptimizeSchedule(c *gin.Context) {
	var req optimizeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.UserID == "" {
		writeError(c, http.StatusBadRequest, "missing user_id")
		return
	}
	if h.store == nil {
		writeError(c, http.StatusNotImplemented, "no task store configured")
		return
	}
	day, err := h.parseDay(req.Date)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	ctx := c.Request.Context()

	prefs, err := h.store.Preferences(ctx, req.UserID)
	if err != nil {
		writePlanError(c, err)
		return
	}
	home := prefs.Home.Place()
	h.runStored(c, req.UserID, day, planner.Request{
		UserID: req.UserID,
		Day:    day,
		Depot:  home,
		Modes:  prefs.Modes,
	})
}

type dynamicReq struct {
	UserID string     `json:"user_id"`
	Lat    *float64   `json:"lat"`
	Lng    *float64   `json:"lng"`
	Now    *time.Time `json:"now"`
}

// DynamicSchedule re-plans the rest of today from the caller's position,
// departing now and ending at home.
func (h *PlanHandler) DynamicSchedule(c *gin.Context) {
	var req dynamicReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.UserID == "" || req.Lat == nil || req.Lng == nil {
		writeError(c, http.StatusBadRequest, "missing fields")
		return
	}
	pt := types.Point{Lat: *req.Lat, Lng: *req.Lng}
	if !pt.Valid() {
		writeError(c, http.StatusBadRequest, "invalid coordinates")
		return
	}
	if h.store == nil {
		writeError(c, http.StatusNotImplemented, "no task store configured")
		return
	}
	now := h.now()
	if req.Now != nil {
		now = *req.Now
	}
	now = now.In(h.loc)
	ctx := c.Request.Context()

	prefs, err := h.store.Preferences(ctx, req.UserID)
	if err != nil {
		writePlanError(c, err)
		return
	}
	home := prefs.Home.Place()
	h.runStored(c, req.UserID, now, planner.Request{
		UserID:   req.UserID,
		Day:      now,
		Depot:    travel.NewPointPlace("current location", pt),
		EndDepot: &home,
		DepartAt: &now,
		Modes:    prefs.Modes,
	})
}

func (h *PlanHandler) runStored(c *gin.Context, userID string, day time.Time, preq planner.Request) {
	ctx := c.Request.Context()

	stored, err := h.store.TasksForDay(ctx, userID, day)
	if err != nil {
		writePlanError(c, err)
		return
	}
	preq.Tasks = stored

	res, err := h.planner.Plan(ctx, preq)
	if err != nil {
		writePlanError(c, err)
		return
	}

	titles := make(map[string]string, len(stored))
	for _, t := range stored {
		titles[t.ID] = t.Title
	}
	if err := h.store.SaveSchedule(ctx, userID, day, res, titles); err != nil {
		writePlanError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

func (h *PlanHandler) parseDay(v string) (time.Time, error) {
	if strings.TrimSpace(v) == "" {
		return h.now().In(h.loc), nil
	}
	day, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(v), h.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", v)
	}
	return day, nil
}

func (h *PlanHandler) place(ctx context.Context, p placeReq) (travel.Place, error) {
	switch {
	case p.Lat != nil && p.Lng != nil:
		pt := types.Point{Lat: *p.Lat, Lng: *p.Lng}
		if !pt.Valid() {
			return travel.Place{}, fmt.Errorf("invalid coordinates")
		}
		if p.Address != "" {
			place := travel.NewPlace(p.Address)
			place.Point = &pt
			return place, nil
		}
		return travel.NewPointPlace("", pt), nil
	case strings.TrimSpace(p.Address) == "":
		return travel.Place{}, fmt.Errorf("address or coordinates required")
	case h.resolver != nil:
		return h.resolver.Resolve(ctx, p.Address)
	default:
		return travel.NewPlace(p.Address), nil
	}
}

func (h *PlanHandler) task(ctx context.Context, tr taskReq) (planner.Task, error) {
	t := planner.Task{
		ID:        tr.ID,
		Title:     tr.Title,
		PlaceType: tr.PlaceType,
		Duration:  tr.DurationMinutes,
		Start:     tr.Start,
		End:       tr.End,
		Priority:  routing.PriorityFlexibleLow,
	}
	if tr.Priority != "" {
		p, err := routing.ParsePriority(tr.Priority)
		if err != nil {
			return t, err
		}
		t.Priority = p
	}
	if tr.Location != nil {
		place, err := h.place(ctx, *tr.Location)
		if err != nil {
			return t, err
		}
		t.Place = &place
	}

	if tr.WindowStart != "" || tr.WindowEnd != "" {
		t.Window = routing.Window{Start: 0, End: routing.MinutesPerDay}
		var err error
		if tr.WindowStart != "" {
			if t.Window.Start, err = parseWindowClock(tr.WindowStart); err != nil {
				return t, err
			}
		}
		if tr.WindowEnd != "" {
			if t.Window.End, err = parseWindowClock(tr.WindowEnd); err != nil {
				return t, err
			}
		}
		if !t.Window.Valid() {
			return t, fmt.Errorf("window %s-%s is empty", tr.WindowStart, tr.WindowEnd)
		}
	}
	return t, nil
}

// parseWindowClock accepts "HH:MM" and "24:00" for the end of the day.
func parseWindowClock(v string) (int, error) {
	if strings.TrimSpace(v) == "24:00" {
		return routing.MinutesPerDay, nil
	}
	return config.ParseClock(v)
}
