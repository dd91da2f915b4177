package handler

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nm90/educational-mvc-sub001/internal/config"
	"github.com/nm90/educational-mvc-sub001/internal/middleware"
	"github.com/nm90/educational-mvc-sub001/internal/tracing"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates parses the embedded page templates.
func Templates() (*template.Template, error) {
	return template.New("").ParseFS(templateFS, "templates/*.html")
}

type Handlers struct {
	Tasks     *TaskHandler
	Users     *UserHandler
	Health    *HealthHandler
	Presenter Presenter
}

// Setup installs templates, middleware and routes on r. Metrics and health
// endpoints are registered ahead of the trace middleware and are never
// traced.
func Setup(r *gin.Engine, cfg *config.Config, reg *tracing.Registry, h Handlers) error {
	tmpl, err := Templates()
	if err != nil {
		return err
	}
	r.SetHTMLTemplate(tmpl)

	if cfg.Metrics.Enabled {
		r.Use(middleware.MetricsMiddleware())
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}
	r.GET("/health", h.Health.Check)

	r.Use(middleware.TraceMiddleware(reg, cfg.Tracing))
	r.Use(middleware.ErrorHandler(h.Presenter.Fail))

	r.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/tasks")
	})

	tasks := r.Group("/tasks")
	{
		tasks.GET("", middleware.Controller("TaskController.index", h.Tasks.Index))
		tasks.POST("", middleware.Controller("TaskController.create", h.Tasks.Create))
		tasks.GET("/:id", middleware.Controller("TaskController.show", h.Tasks.Show))
		tasks.POST("/:id/status", middleware.Controller("TaskController.update_status", h.Tasks.UpdateStatus))
		tasks.POST("/:id/delete", middleware.Controller("TaskController.delete", h.Tasks.Delete))
	}

	users := r.Group("/users")
	{
		users.GET("", middleware.Controller("UserController.index", h.Users.Index))
		users.POST("", middleware.Controller("UserController.create", h.Users.Create))
		users.GET("/:id", middleware.Controller("UserController.show", h.Users.Show))
		users.POST("/:id/delete", middleware.Controller("UserController.delete", h.Users.Delete))
	}
	return nil
}
