package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"twin/internal/db"
	"twin/internal/errors"
	"twin/internal/logger"
	"twin/internal/operations"
	"twin/internal/types"
)

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.handleHealth)

	api := s.echo.Group("/api")

	envs := api.Group("/environments")
	envs.GET("", s.handleListEnvironments)
	envs.POST("", s.handleCreateEnvironment)
	envs.GET("/:name", s.handleGetEnvironment)
	envs.DELETE("/:name", s.handleRemoveEnvironment)
	envs.POST("/:name/activate", s.handleActivateEnvironment)
	envs.POST("/:name/validate", s.handleValidateEnvironment)

	api.GET("/worktrees", s.handleListWorktrees)

	ops := api.Group("/operations")
	ops.GET("", s.handleListOperations)
	ops.GET("/:id", s.handleGetOperation)
}

// handleHealth reports liveness and, when the journal is enabled, the
// state of its database
func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{
		Status:      "healthy",
		Version:     s.version,
		Uptime:      time.Since(s.startTime).Round(time.Second).String(),
		ProjectRoot: s.envs.ProjectRoot(),
	}

	if s.db != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		journal := &JournalHealth{Status: "healthy", OpenConns: s.db.Stats().OpenConnections}
		if err := s.db.HealthCheck(ctx); err != nil {
			journal.Status = "unhealthy"
			journal.Error = err.Error()
			resp.Status = "degraded"
		} else if v, err := s.db.GetCurrentVersion(ctx); err == nil {
			journal.SchemaVersion = v.Version
			journal.Dirty = v.Dirty
		}
		resp.Journal = journal
	}

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListEnvironments(c echo.Context) error {
	ctx := c.Request().Context()

	envs, err := s.envs.ListEnvironments(ctx)
	if err != nil {
		return errors.ToHTTPError(err)
	}

	resp := EnvironmentsResponse{Environments: envs, Total: len(envs)}
	for _, env := range envs {
		if env.Status == types.StatusActive {
			resp.Active = env.Name
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCreateEnvironment(c echo.Context) error {
	var req CreateEnvironmentRequest
	if err := c.Bind(&req); err != nil {
		return errors.BadRequest("Invalid request body", err.Error())
	}

	env, err := s.envs.CreateEnvironment(c.Request().Context(), operations.CreateRequest{
		Name:   req.Name,
		Branch: req.Branch,
	})
	if err != nil {
		logger.GetLogger(c).WithError(err).WithField("environment", req.Name).Warn("Create failed")
		return errors.ToHTTPError(err)
	}

	return c.JSON(http.StatusCreated, env)
}

func (s *Server) handleGetEnvironment(c echo.Context) error {
	env, err := s.envs.GetEnvironment(c.Request().Context(), c.Param("name"))
	if err != nil {
		return errors.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, env)
}

func (s *Server) handleRemoveEnvironment(c echo.Context) error {
	name := c.Param("name")

	force, err := boolQuery(c, "force")
	if err != nil {
		return err
	}
	deleteBranch, err := boolQuery(c, "delete_branch")
	if err != nil {
		return err
	}

	err = s.envs.Remove(c.Request().Context(), operations.RemoveRequest{
		Name:         name,
		Force:        force,
		DeleteBranch: deleteBranch,
	})
	if err != nil {
		return errors.ToHTTPError(err)
	}

	return c.JSON(http.StatusOK, SuccessResponse{Message: "Environment " + name + " removed"})
}

func (s *Server) handleActivateEnvironment(c echo.Context) error {
	env, err := s.envs.SwitchEnvironment(c.Request().Context(), c.Param("name"))
	if err != nil {
		return errors.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, env)
}

func (s *Server) handleValidateEnvironment(c echo.Context) error {
	report, err := s.envs.ValidateEnvironment(c.Request().Context(), c.Param("name"))
	if err != nil {
		return errors.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, report)
}

func (s *Server) handleListWorktrees(c echo.Context) error {
	entries, err := s.envs.ListWorktrees(c.Request().Context())
	if err != nil {
		return errors.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, WorktreesResponse{Worktrees: entries, Total: len(entries)})
}

func (s *Server) handleListOperations(c echo.Context) error {
	if s.history == nil {
		return errors.ToHTTPError(journalDisabled())
	}
	ctx := c.Request().Context()

	page := db.DefaultPaginationOptions()
	var err error
	if page.PageSize, err = intQuery(c, "limit", page.PageSize); err != nil {
		return err
	}
	if page.Page, err = intQuery(c, "page", page.Page); err != nil {
		return err
	}

	filter := db.HistoryFilter{
		Environment: c.QueryParam("environment"),
		Kind:        db.OperationKind(c.QueryParam("kind")),
		Status:      db.OperationStatus(c.QueryParam("status")),
	}

	ops, err := s.history.List(ctx, filter, page)
	if err != nil {
		return errors.ToHTTPError(err)
	}
	total, err := s.history.Count(ctx, filter)
	if err != nil {
		return errors.ToHTTPError(err)
	}

	return c.JSON(http.StatusOK, db.NewPaginatedResponse(ops, page, total))
}

func (s *Server) handleGetOperation(c echo.Context) error {
	if s.history == nil {
		return errors.ToHTTPError(journalDisabled())
	}

	op, err := s.history.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return errors.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, op)
}

func journalDisabled() error {
	e := errors.NewWithDetails(errors.ErrConfigValidation, "Operation journal is disabled",
		"Set [journal] enabled = true to record operations")
	e.HTTPStatus = http.StatusNotFound
	return e
}

func boolQuery(c echo.Context, name string) (bool, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.BadRequest("Invalid query parameter", name+" must be a boolean")
	}
	return v, nil
}

func intQuery(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.BadRequest("Invalid query parameter", name+" must be an integer")
	}
	return v, nil
}
