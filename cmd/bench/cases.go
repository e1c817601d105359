// README: Bench cases: scenarios A-E in-process, plus optional HTTP, DB and Redis checks.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"calroute/internal/modules/planner"
	"calroute/internal/modules/routing"
	"calroute/internal/modules/schedule"
	"calroute/internal/modules/travel"
	"calroute/internal/testutil"
)

const (
	statusPass = "PASS"
	statusFail = "FAIL"
	statusSkip = "SKIP"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name  string
	Focus string
	Run   func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))

	for _, tc := range tests {
		start := time.Now()
		res := tc.Run(ctx, r)
		if res.Latency == 0 {
			res.Latency = time.Since(start).Round(time.Millisecond)
		}
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-5s %s (%s)", res.Status, tc.Name, res.Latency)
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}

	return results
}

var benchDay = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(minute int) time.Time {
	return benchDay.Add(time.Duration(minute) * time.Minute)
}

func place(key string) *travel.Place {
	p := travel.NewPlace(key)
	return &p
}

func newPlanner(p travel.Provider) *planner.Service {
	return planner.NewService(planner.Deps{
		Builder: travel.NewMatrixBuilder(p, nil, travel.BuilderConfig{}),
		Solver:  routing.NewAnnealingSolver(routing.AnnealingConfig{MaxIterations: 2000, TimeBudget: 2 * time.Second}),
	}, planner.Config{Location: time.UTC, DayStart: 480})
}

func (r *Runner) cases() []TestCase {
	base := r.cfg.BaseURL
	return []TestCase{
		scenarioCase("Scenario A: single flexible task", "slot starts on arrival", func(ctx context.Context) error {
			p := testutil.NewMockProvider()
			p.SetSymmetric("home", "library", travel.ModeCar, 10)
			res, err := newPlanner(p).Plan(ctx, planner.Request{
				Day:   benchDay,
				Depot: travel.NewPlace("home"),
				Tasks: []planner.Task{{ID: "return books", Place: place("library"), Duration: 30,
					Window: routing.Window{Start: 0, End: 1440}}},
			})
			if err != nil {
				return err
			}
			if len(res.Slots) != 1 || !res.Slots[0].Start.Equal(at(490)) || res.Slots[0].Duration() != 30*time.Minute {
				return fmt.Errorf("slots = %+v", res.Slots)
			}
			return nil
		}),
		scenarioCase("Scenario B: overlapping fixed tasks", "hard infeasibility, no schedule", func(ctx context.Context) error {
			p := testutil.NewMockProvider()
			s1, e1, s2, e2 := at(540), at(600), at(560), at(620)
			res, err := newPlanner(p).Plan(ctx, planner.Request{
				Day:   benchDay,
				Depot: travel.NewPlace("home"),
				Tasks: []planner.Task{
					{ID: "standup", Place: place("office"), Priority: routing.PriorityFixed, Start: &s1, End: &e1},
					{ID: "review", Place: place("office"), Priority: routing.PriorityFixed, Start: &s2, End: &e2},
				},
			})
			var inf *routing.InfeasibleError
			if !errors.As(err, &inf) {
				return fmt.Errorf("got result %+v, err %v", res, err)
			}
			if res != nil {
				return fmt.Errorf("partial schedule returned")
			}
			return nil
		}),
		scenarioCase("Scenario C: missing provider data", "fallback cap, run succeeds", func(ctx context.Context) error {
			p := testutil.NewMockProvider()
			res, err := newPlanner(p).Plan(ctx, planner.Request{
				Day:   benchDay,
				Depot: travel.NewPlace("home"),
				Tasks: []planner.Task{{ID: "post", Place: place("post office"), Duration: 15}},
			})
			if err != nil {
				return err
			}
			for _, g := range res.Gaps {
				if g.Reason != travel.GapFallback || g.Minutes != 60 {
					return fmt.Errorf("gap = %+v", g)
				}
			}
			if len(res.Gaps) == 0 || len(res.Slots) != 1 {
				return fmt.Errorf("gaps = %d slots = %d", len(res.Gaps), len(res.Slots))
			}
			return nil
		}),
		scenarioCase("Scenario D: late low-priority task", "clamped to 23:59, duration kept", func(ctx context.Context) error {
			p := testutil.NewMockProvider()
			p.SetSymmetric("home", "late shop", travel.ModeCar, 10)
			depart := at(1370)
			res, err := newPlanner(p).Plan(ctx, planner.Request{
				Day:      benchDay,
				Depot:    travel.NewPlace("home"),
				DepartAt: &depart,
				Tasks: []planner.Task{{ID: "shop", Place: place("late shop"), Duration: 60,
					Window: routing.Window{Start: 1380, End: 1440}, Priority: routing.PriorityFlexibleLow}},
			})
			if err != nil {
				return err
			}
			if len(res.Slots) != 1 || !res.Slots[0].End.Equal(at(1439)) || res.Slots[0].Duration() != time.Hour {
				return fmt.Errorf("slots = %+v", res.Slots)
			}
			if len(res.Violations) != 1 || res.Violations[0].Kind != schedule.ViolationClamped {
				return fmt.Errorf("violations = %+v", res.Violations)
			}
			return nil
		}),
		scenarioCase("Scenario E: long walk", "overridden to a motorized mode", func(ctx context.Context) error {
			p := testutil.NewMockProvider()
			p.SetSymmetric("home", "park", travel.ModeWalking, 40)
			res, err := newPlanner(p).Plan(ctx, planner.Request{
				Day:   benchDay,
				Depot: travel.NewPlace("home"),
				Modes: []travel.Mode{travel.ModeWalking, travel.ModeCar},
				Tasks: []planner.Task{{ID: "walk", Place: place("park"), Duration: 45}},
			})
			if err != nil {
				return err
			}
			for _, leg := range res.Legs {
				if !leg.Mode.Motorized() {
					return fmt.Errorf("leg %+v kept a human-powered mode", leg)
				}
			}
			return nil
		}),
		scenarioCase("Scale: 40 tasks, 3 modes", "batched matrix and bounded solve", func(ctx context.Context) error {
			p := testutil.NewMockProvider()
			p.DefaultMinutes = 12
			tasks := make([]planner.Task, 40)
			for i := range tasks {
				tasks[i] = planner.Task{ID: fmt.Sprintf("t%02d", i), Place: place(fmt.Sprintf("stop %d", i)), Duration: 10,
					Priority: routing.PriorityFlexibleHigh}
			}
			res, err := newPlanner(p).Plan(ctx, planner.Request{
				Day:   benchDay,
				Depot: travel.NewPlace("home"),
				Modes: []travel.Mode{travel.ModeCar, travel.ModeTransit, travel.ModeBike},
				Tasks: tasks,
			})
			if err != nil {
				return err
			}
			if len(res.Slots)+len(res.Dropped) != len(tasks) {
				return fmt.Errorf("slots=%d dropped=%d", len(res.Slots), len(res.Dropped))
			}
			if p.CallCount() == 0 {
				return fmt.Errorf("provider never called")
			}
			return nil
		}),

		{
			Name:  "Env: Postgres connect",
			Focus: "DB reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: statusSkip, Note: "db not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.db.Ping(ctx); err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				return Result{Status: statusPass}
			},
		},
		{
			Name:  "Env: Redis connect",
			Focus: "Redis reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: statusSkip, Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				return Result{Status: statusPass}
			},
		},
		{
			Name:  "Cache: Redis round trip",
			Focus: "travel legs survive a store/lookup through Redis",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: statusSkip, Note: "redis not configured"}
				}
				cache := travel.NewMatrixCache(travel.NewRedisCacheStore(r.redis, time.Minute), time.Minute)
				origin := fmt.Sprintf("bench-%d", time.Now().UnixNano())
				cache.Store(ctx, origin, "bench-dest", travel.ModeCar, 17)
				got, ok := cache.Lookup(ctx, origin, "bench-dest", travel.ModeRideshare)
				if !ok || got != 17 {
					return Result{Status: statusFail, Note: fmt.Sprintf("lookup = %d, %v", got, ok)}
				}
				return Result{Status: statusPass}
			},
		},
		{
			Name:  "Migration: apply (optional)",
			Focus: "apply migration SQL",
			Run: func(ctx context.Context, r *Runner) Result {
				if !r.cfg.ApplyMigration {
					return Result{Status: statusSkip, Note: "apply-migration=false"}
				}
				if r.db == nil {
					return Result{Status: statusFail, Note: "db not configured"}
				}
				sql, err := os.ReadFile(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				for _, s := range splitSQL(string(sql)) {
					if _, err := r.db.Exec(ctx, s); err != nil {
						return Result{Status: statusFail, Note: err.Error()}
					}
				}
				return Result{Status: statusPass}
			},
		},
		{
			Name:  "Migration: tables exist",
			Focus: "tables of migrations/0001_init.sql exist",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: statusSkip, Note: "db not configured"}
				}
				tables, err := extractTables(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				for _, t := range tables {
					var exists bool
					err := r.db.QueryRow(ctx,
						"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
						t,
					).Scan(&exists)
					if err != nil {
						return Result{Status: statusFail, Note: err.Error()}
					}
					if !exists {
						return Result{Status: statusFail, Note: "missing table: " + t}
					}
				}
				return Result{Status: statusPass}
			},
		},

		httpCaseMethod("API: health", http.MethodGet, base, "/health", nil, []int{200}),
		httpCase("API: plan (valid)", base, "/api/plan", samplePlan(), []int{200}),
		httpCase("API: plan (missing depot -> 400)", base, "/api/plan", map[string]any{}, []int{400}),
		httpCase("API: plan (overlapping fixed -> 409)", base, "/api/plan", map[string]any{
			"date":  "2026-03-02",
			"depot": map[string]any{"lat": 40.7128, "lng": -74.006},
			"tasks": []map[string]any{
				{"id": "a", "priority": "fixed", "location": map[string]any{"lat": 40.73, "lng": -73.99},
					"start": "2026-03-02T09:00:00Z", "end": "2026-03-02T10:00:00Z"},
				{"id": "b", "priority": "fixed", "location": map[string]any{"lat": 40.73, "lng": -73.99},
					"start": "2026-03-02T09:20:00Z", "end": "2026-03-02T10:20:00Z"},
			},
		}, []int{409}),
		{
			Name:  "Perf: plan throughput",
			Focus: "sustained /api/plan load",
			Run: func(ctx context.Context, r *Runner) Result {
				if base == "" {
					return Result{Status: statusSkip, Note: "base-url not set"}
				}
				return perfLoad(ctx, r, base+"/api/plan", samplePlan())
			},
		},
	}
}

func samplePlan() map[string]any {
	return map[string]any{
		"date":  "2026-03-02",
		"depot": map[string]any{"lat": 40.7128, "lng": -74.006},
		"modes": []string{"car", "walking"},
		"tasks": []map[string]any{
			{"id": "coffee", "location": map[string]any{"lat": 40.7150, "lng": -74.002}, "duration_minutes": 20, "priority": "low"},
			{"id": "meeting", "priority": "fixed", "location": map[string]any{"lat": 40.7306, "lng": -73.9866},
				"start": "2026-03-02T10:00:00Z", "end": "2026-03-02T11:00:00Z"},
			{"id": "gym", "location": map[string]any{"lat": 40.7411, "lng": -73.9897}, "duration_minutes": 60,
				"window_start": "17:00", "window_end": "21:00", "priority": "high"},
		},
	}
}

func scenarioCase(name, focus string, run func(ctx context.Context) error) TestCase {
	return TestCase{
		Name:  name,
		Focus: focus,
		Run: func(ctx context.Context, r *Runner) Result {
			if err := run(ctx); err != nil {
				return Result{Status: statusFail, Note: err.Error()}
			}
			return Result{Status: statusPass}
		},
	}
}

func httpCase(name, base, path string, body any, okStatuses []int) TestCase {
	return httpCaseMethod(name, http.MethodPost, base, path, body, okStatuses)
}

func httpCaseMethod(name, method, base, path string, body any, okStatuses []int) TestCase {
	return TestCase{
		Name:  name,
		Focus: "HTTP API",
		Run: func(ctx context.Context, r *Runner) Result {
			if base == "" {
				return Result{Status: statusSkip, Note: "base-url not set"}
			}
			var reader io.Reader
			if body != nil {
				b, _ := json.Marshal(body)
				reader = strings.NewReader(string(b))
			}
			req, _ := http.NewRequestWithContext(ctx, method, base+path, reader)
			req.Header.Set("Content-Type", "application/json")
			start := time.Now()
			resp, err := r.httpc.Do(req)
			if err != nil {
				return Result{Status: statusFail, Note: err.Error()}
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			latency := time.Since(start)

			if contains(okStatuses, resp.StatusCode) {
				return Result{Status: statusPass, Latency: latency, Note: fmt.Sprintf("status=%d", resp.StatusCode)}
			}
			return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("status=%d", resp.StatusCode)}
		},
	}
}

func perfLoad(ctx context.Context, r *Runner, url string, payload any) Result {
	b, _ := json.Marshal(payload)
	end := time.Now().Add(r.cfg.Duration)
	var count, errCount int64
	var mu sync.Mutex
	wg := sync.WaitGroup{}

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(b)))
				req.Header.Set("Content-Type", "application/json")
				resp, err := r.httpc.Do(req)
				if err != nil {
					mu.Lock()
					errCount++
					mu.Unlock()
					continue
				}
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				mu.Lock()
				count++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: statusFail, Note: "no requests completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: statusPass, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}

func contains(list []int, v int) bool {
	for _, i := range list {
		if i == v {
			return true
		}
	}
	return false
}

func extractTables(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	re := regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)
	matches := re.FindAllStringSubmatch(string(b), -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables, nil
}

func splitSQL(sql string) []string {
	lines := strings.Split(sql, "\n")
	filtered := make([]string, 0, len(lines))
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if strings.HasPrefix(l, "--") || l == "" {
			continue
		}
		filtered = append(filtered, line)
	}
	parts := strings.Split(strings.Join(filtered, "\n"), ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
