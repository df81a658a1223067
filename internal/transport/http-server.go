package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/art-archive/internal/backup"
	"github.com/Rogue-Bear-Innovations/art-archive/internal/config"
	"github.com/Rogue-Bear-Innovations/art-archive/internal/models"
	"github.com/Rogue-Bear-Innovations/art-archive/internal/query"
	"github.com/Rogue-Bear-Innovations/art-archive/internal/service"
)

var Module = fx.Provide(NewHTTPServer)

const censored = "$censored"

type (
	ArtListReq struct {
		Tag    string `json:"tag"`
		Author string `json:"author"`
		Sort   string `json:"sort" validate:"omitempty,oneof=dateAsc dateDesc favorite fav"`
	}

	ArtCreateReq struct {
		Image  string   `json:"image" validate:"required"`
		URL    string   `json:"url"`
		Author string   `json:"author"`
		Tags   TagInput `json:"tags"`
	}

	// ArtUpdateReq leaves absent fields untouched.
	ArtUpdateReq struct {
		Image  *string  `json:"image"`
		URL    *string  `json:"url"`
		Author *string  `json:"author"`
		State  *string  `json:"state" validate:"omitempty,oneof=want in_progress done on_hold"`
		Tags   TagInput `json:"tags"`
	}

	// TagInput accepts a JSON array of tags or comma separated tag input. Null leaves it nil.
	TagInput []string

	StateReq struct {
		State string `json:"state" validate:"omitempty,oneof=want in_progress done on_hold"`
	}

	CategoryReq struct {
		Name  string `json:"name" validate:"required"`
		Color string `json:"color" validate:"omitempty,hexcolor"`
	}

	TagCategoryReq struct {
		CategoryID *int64 `json:"categoryId"`
	}

	TagPriorityReq struct {
		Priority int `json:"priority"`
	}

	CustomValidator struct {
		validator *validator.Validate
	}

	HTTPServer struct {
		echo    *echo.Echo
		gallery *service.Gallery
		logger  *zap.SugaredLogger
		now     func() time.Time
	}
)

func NewHTTPServer(
	lc fx.Lifecycle, cfg *config.Config, gallery *service.Gallery, gatherer prometheus.Gatherer,
	logger *zap.SugaredLogger,
) *HTTPServer {
	instance := New(gallery, gatherer, logger)
	e := instance.echo

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				listen := cfg.Host + ":" + cfg.Port
				logger.Infow("Starting HTTP server.", "listen", listen)
				if err := e.Start(listen); err != nil && err != http.ErrServerClosed {
					logger.Fatalw("shutting down the server", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Stopping HTTP server.")
			return e.Shutdown(ctx)
		},
	})

	return instance
}

// New builds the router without starting it.
func New(gallery *service.Gallery, gatherer prometheus.Gatherer, logger *zap.SugaredLogger) *HTTPServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	instance := HTTPServer{
		echo:    e,
		gallery: gallery,
		logger:  logger,
		now:     time.Now,
	}

	artG := e.Group("/art")
	artG.POST("/list", instance.ArtList)
	artG.POST("", instance.ArtCreate)
	artG.GET("/:id", instance.ArtGet)
	artG.PATCH("/:id", instance.ArtUpdate)
	artG.DELETE("/:id", instance.ArtDelete)
	artG.POST("/:id/favorite", instance.ArtFavorite)
	artG.PUT("/:id/state", instance.ArtState)

	e.GET("/author", instance.AuthorList)

	tagG := e.Group("/tag")
	tagG.GET("", instance.TagList)
	tagG.GET("/:tag", instance.TagGet)
	tagG.PUT("/:tag/category", instance.TagSetCategory)
	tagG.PUT("/:tag/priority", instance.TagSetPriority)

	categoryG := e.Group("/category")
	categoryG.GET("", instance.CategoryList)
	categoryG.POST("", instance.CategoryCreate)
	categoryG.PATCH("/:id", instance.CategoryUpdate)
	categoryG.DELETE("/:id", instance.CategoryDelete)

	backupG := e.Group("/backup")
	backupG.GET("", instance.BackupExport)
	backupG.POST("/import", instance.BackupImport)

	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })
	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	e.Use(middleware.CORS())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []interface{}{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				fields = append(fields, "error", v.Error)
			}
			logger.Infow("request", fields...)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyDumpWithConfig(middleware.BodyDumpConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics" || !logger.Desugar().Core().Enabled(zap.DebugLevel)
		},
		Handler: func(c echo.Context, req, resp []byte) {
			logger.Debugw("body dump",
				"path", c.Path(),
				"request", string(censorBody(req)),
				"response", string(censorBody(resp)),
			)
		},
	}))

	e.Validator = &CustomValidator{validator: validator.New()}
	e.HTTPErrorHandler = instance.errorHandler

	echo.NotFoundHandler = func(c echo.Context) error {
		return c.NoContent(http.StatusNotFound)
	}

	return &instance
}

func (s *HTTPServer) Handler() http.Handler {
	return s.echo
}

func (s *HTTPServer) ArtList(c echo.Context) error {
	req := ArtListReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	arts, err := s.gallery.Arts(c.Request().Context(),
		query.Filter{Tag: req.Tag, Author: req.Author}, query.ParseSortMode(req.Sort))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, arts)
}

func (s *HTTPServer) ArtCreate(c echo.Context) error {
	req := ArtCreateReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	art, err := s.gallery.AddArt(c.Request().Context(), service.NewArt{
		Image:  req.Image,
		URL:    req.URL,
		Author: req.Author,
		Tags:   []string(req.Tags),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, art)
}

func (s *HTTPServer) ArtGet(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}

	art, err := s.gallery.GetArt(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, art)
}

func (s *HTTPServer) ArtUpdate(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}

	req := ArtUpdateReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	var state *models.State
	if req.State != nil {
		st := models.State(*req.State)
		state = &st
	}

	art, err := s.gallery.UpdateArt(c.Request().Context(), id, service.ArtUpdate{
		Image:  req.Image,
		URL:    req.URL,
		Author: req.Author,
		State:  state,
		Tags:   []string(req.Tags),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, art)
}

func (s *HTTPServer) ArtDelete(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	if err := s.gallery.DeleteArt(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *HTTPServer) ArtFavorite(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}

	art, err := s.gallery.ToggleFavorite(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, art)
}

func (s *HTTPServer) ArtState(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}

	req := StateReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	art, err := s.gallery.SetState(c.Request().Context(), id, models.State(req.State))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, art)
}

func (s *HTTPServer) AuthorList(c echo.Context) error {
	authors, err := s.gallery.Authors(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, authors)
}

func (s *HTTPServer) TagList(c echo.Context) error {
	var (
		tags []query.TagEntry
		err  error
	)
	switch order := c.QueryParam("order"); order {
	case "", "recent":
		tags, err = s.gallery.RecentTags(c.Request().Context())
	case "all":
		tags, err = s.gallery.AllTags(c.Request().Context())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid query param 'order': %s", order))
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tags)
}

func (s *HTTPServer) TagGet(c echo.Context) error {
	tag, err := GetTagParam(c)
	if err != nil {
		return err
	}

	meta, err := s.gallery.TagMeta(c.Request().Context(), tag)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, meta)
}

func (s *HTTPServer) TagSetCategory(c echo.Context) error {
	tag, err := GetTagParam(c)
	if err != nil {
		return err
	}

	req := TagCategoryReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	tc, err := s.gallery.SetTagCategory(c.Request().Context(), tag, req.CategoryID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tc)
}

func (s *HTTPServer) TagSetPriority(c echo.Context) error {
	tag, err := GetTagParam(c)
	if err != nil {
		return err
	}

	req := TagPriorityReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	tc, err := s.gallery.SetTagPriority(c.Request().Context(), tag, req.Priority)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tc)
}

func (s *HTTPServer) CategoryList(c echo.Context) error {
	categories, err := s.gallery.Categories(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, categories)
}

func (s *HTTPServer) CategoryCreate(c echo.Context) error {
	req := CategoryReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	category, err := s.gallery.AddCategory(c.Request().Context(), req.Name, req.Color)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, category)
}

func (s *HTTPServer) CategoryUpdate(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}

	req := CategoryReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	category, err := s.gallery.UpdateCategory(c.Request().Context(), id, req.Name, req.Color)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, category)
}

func (s *HTTPServer) CategoryDelete(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	if err := s.gallery.DeleteCategory(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *HTTPServer) BackupExport(c echo.Context) error {
	b, err := s.gallery.Export(c.Request().Context())
	if err != nil {
		return err
	}

	exportedAt, err := time.Parse(models.TimestampLayout, b.ExportedAt)
	if err != nil {
		exportedAt = s.now()
	}

	c.Response().Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", backup.FileName(exportedAt)))
	c.Response().WriteHeader(http.StatusOK)
	return backup.Encode(c.Response(), b)
}

// BackupImport applies the raw request body as a backup. Overwrite requires confirm=true.
func (s *HTTPServer) BackupImport(c echo.Context) error {
	mode := c.QueryParam("mode")
	if mode == "" {
		mode = service.ModeMerge
	}

	confirmed := false
	if raw := c.QueryParam("confirm"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid query param 'confirm'")
		}
		confirmed = v
	}

	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	res, err := s.gallery.Import(c.Request().Context(), data, mode, func(context.Context, backup.Counts) bool {
		return confirmed
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (s *HTTPServer) errorHandler(err error, c echo.Context) {
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		he = toHTTPError(err)
	}
	if he.Code >= http.StatusInternalServerError {
		s.logger.Errorw("request failed", "path", c.Path(), "error", err)
	}
	c.Echo().DefaultHTTPErrorHandler(he, c)
}

func toHTTPError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, service.ErrArtNotFound), errors.Is(err, service.ErrCategoryNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidArgument), errors.Is(err, service.ErrMalformedBackup):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrImportNotConfirmed):
		return echo.NewHTTPError(http.StatusPreconditionRequired, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

// censorBody replaces every "image" value in a JSON body so data URLs stay out of the logs. Bodies that are
// not JSON are returned unchanged.
func censorBody(body []byte) []byte {
	if len(body) == 0 {
		return body
	}
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return body
	}
	out, err := json.Marshal(censorValue(v))
	if err != nil {
		return body
	}
	return out
}

func censorValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, inner := range t {
			if k == "image" {
				t[k] = censored
				continue
			}
			t[k] = censorValue(inner)
		}
	case []interface{}:
		for i := range t {
			t[i] = censorValue(t[i])
		}
	}
	return v
}

func (t *TagInput) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var input string
	if err := json.Unmarshal(data, &input); err == nil {
		*t = models.ParseTags(input)
		return nil
	}
	var tags []string
	if err := json.Unmarshal(data, &tags); err != nil {
		return err
	}
	*t = tags
	return nil
}

////////

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func BindAndValidate(c echo.Context, v interface{}) error {
	var err error
	if err = c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err = c.Validate(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func GetParam(c echo.Context, name string) (string, error) {
	value := c.Param(name)
	if value == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid path param '%s'", name))
	}
	return value, nil
}

func GetAndParseParam(c echo.Context, name string) (int64, error) {
	v, e := GetParam(c, name)
	if e != nil {
		return 0, e
	}
	vv, e := strconv.ParseInt(v, 10, 64)
	if e != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid path param '%s'", name))
	}
	return vv, nil
}

// GetTagParam returns the tag path param decoded exactly once. Echo hands over a decoded value unless the
// request carried a raw path, in which case the param is still escaped.
func GetTagParam(c echo.Context) (string, error) {
	v, err := GetParam(c, "tag")
	if err != nil {
		return "", err
	}
	if c.Request().URL.RawPath == "" {
		return v, nil
	}
	tag, err := url.PathUnescape(v)
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid path param 'tag'")
	}
	return tag, nil
}
