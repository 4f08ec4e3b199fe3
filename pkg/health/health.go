package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var Module = fx.Module("health", fx.Provide(ProvideHealth))

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

type Dependency struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type Health struct {
	Status  string       `json:"status"`
	Message string       `json:"message"`
	Deps    []Dependency `json:"deps,omitempty"`
}

type HealthService interface {
	Liveness(c *gin.Context)
	Readiness(c *gin.Context)
}

type health struct {
	db    *gorm.DB
	redis *redis.Client
}

type HealthParams struct {
	fx.In
	DB    *gorm.DB      `optional:"true"`
	Redis *redis.Client `optional:"true"`
}

func ProvideHealth(p HealthParams) HealthService {
	return &health{
		db:    p.DB,
		redis: p.Redis,
	}
}

func (h *health) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, &Health{
		Status:  statusHealthy,
		Message: "OK",
	})
}

const checkTimeout = 2 * time.Second

type check struct {
	name string
	ping func(ctx context.Context) error
}

func (h *health) checks() []check {
	var checks []check
	if h.db != nil {
		checks = append(checks, check{name: h.db.Dialector.Name(), ping: func(ctx context.Context) error {
			sqlDB, err := h.db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}})
	}
	if h.redis != nil {
		checks = append(checks, check{name: "redis", ping: func(ctx context.Context) error {
			return h.redis.Ping(ctx).Err()
		}})
	}
	return checks
}

// Readiness pings every configured dependency concurrently and answers 503
// when any of them is down.
func (h *health) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()

	checks := h.checks()
	deps := make([]Dependency, len(checks))

	var g errgroup.Group
	for i, p := range checks {
		g.Go(func() error {
			deps[i] = Dependency{Name: p.name, Status: statusHealthy, Message: "OK"}
			if err := p.ping(ctx); err != nil {
				deps[i].Status = statusUnhealthy
				deps[i].Message = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()

	this := &Health{Status: statusHealthy, Message: "OK", Deps: deps}
	code := http.StatusOK
	for _, d := range deps {
		if d.Status != statusHealthy {
			this.Status = statusUnhealthy
			this.Message = "dependency check failed"
			code = http.StatusServiceUnavailable
			break
		}
	}

	c.JSON(code, this)
}
