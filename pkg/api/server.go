// Package api provides the REST API server for bpmhelper
package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/james-see/bpmhelper/pkg/editor"
	"github.com/james-see/bpmhelper/pkg/project"
	"github.com/james-see/bpmhelper/pkg/session"
	"github.com/james-see/bpmhelper/pkg/tempo"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title BPM Helper API
// @version 1.0
// @description API for placing and retuning tempo markers around a cursor
// @host localhost:8080
// @BasePath /api/v1

// StartServer starts the API server for s on the specified port
func StartServer(s *session.Session, port int) error {
	return NewRouter(s).Run(fmt.Sprintf(":%d", port))
}

// NewRouter builds the gin engine serving s
func NewRouter(s *session.Session) *gin.Engine {
	r := gin.Default()
	h := &handler{session: s}

	// CORS middleware
	r.Use(corsMiddleware())

	// Health check
	r.GET("/health", h.healthCheck)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", h.healthCheck)
		v1.GET("/markers", h.listMarkers)
		v1.GET("/cursor", h.getCursor)
		v1.PUT("/cursor", h.seek)
		v1.POST("/markers/initial", h.operation("insert", (*editor.Editor).InsertMarkerAtCursor))
		v1.POST("/markers/stretch", h.operation("stretch", (*editor.Editor).StretchPreviousMarker))
		v1.POST("/markers/insert-stretch", h.operation("insert-stretch", (*editor.Editor).InsertAndStretch))
		v1.POST("/markers/rebalance", h.operation("rebalance", (*editor.Editor).Rebalance))
		v1.GET("/beats", h.getBeats)
		v1.PUT("/beats", h.setBeats)
		v1.GET("/notifications", h.listNotifications)
		v1.POST("/save", h.save)
		v1.POST("/convert", handleConversion)
		v1.GET("/formats", listFormats)
	}

	// Swagger docs
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

type handler struct {
	session *session.Session
}

// CursorRequest moves the cursor to a beat or, if set, to a time in seconds
type CursorRequest struct {
	Beat    *float64 `json:"beat"`
	Seconds *float64 `json:"seconds"`
}

// BeatsRequest carries the raw text of the beats field
type BeatsRequest struct {
	Value string `json:"value"`
}

// OperationResponse reports the session after an operation
type OperationResponse struct {
	Operation string        `json:"operation"`
	State     session.State `json:"state"`
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// healthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status of the API and whether a project is open
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "bpmhelper",
		"ready":   h.session.Ready(),
	})
}

// listMarkers godoc
// @Summary List tempo markers
// @Description Returns the open project with its markers ordered by beat
// @Tags markers
// @Produce json
// @Success 200 {object} session.State
// @Failure 503 {object} map[string]string
// @Router /api/v1/markers [get]
func (h *handler) listMarkers(c *gin.Context) {
	st, err := h.session.State()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// getCursor godoc
// @Summary Get the cursor
// @Tags cursor
// @Produce json
// @Success 200 {object} session.Cursor
// @Failure 503 {object} map[string]string
// @Router /api/v1/cursor [get]
func (h *handler) getCursor(c *gin.Context) {
	st, err := h.session.State()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st.Cursor)
}

// seek godoc
// @Summary Move the cursor
// @Description Seeks to a local beat, or to a time when seconds is given
// @Tags cursor
// @Accept json
// @Produce json
// @Param request body CursorRequest true "Target position"
// @Success 200 {object} session.Cursor
// @Failure 400 {object} map[string]string
// @Router /api/v1/cursor [put]
func (h *handler) seek(c *gin.Context) {
	var req CursorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	var (
		cur session.Cursor
		err error
	)
	switch {
	case req.Seconds != nil:
		cur, err = h.session.SeekSeconds(*req.Seconds)
	case req.Beat != nil:
		cur, err = h.session.Seek(*req.Beat)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "beat or seconds is required"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cur)
}

// operation godoc
// @Summary Run a marker operation
// @Description initial inserts a marker at the cursor, stretch retunes the marker behind it, insert-stretch does both, rebalance re-pivots the markers around the cursor
// @Tags markers
// @Produce json
// @Success 200 {object} OperationResponse
// @Failure 409 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /api/v1/markers/initial [post]
// @Router /api/v1/markers/stretch [post]
// @Router /api/v1/markers/insert-stretch [post]
// @Router /api/v1/markers/rebalance [post]
func (h *handler) operation(name string, op func(*editor.Editor) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.session.Do(op); err != nil {
			respondError(c, err)
			return
		}
		st, err := h.session.State()
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, OperationResponse{Operation: name, State: st})
	}
}

// getBeats godoc
// @Summary Get the beats parameter
// @Tags beats
// @Produce json
// @Success 200 {object} map[string]float64
// @Router /api/v1/beats [get]
func (h *handler) getBeats(c *gin.Context) {
	st, err := h.session.State()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"beats": st.Beats})
}

// setBeats godoc
// @Summary Set the beats parameter
// @Description Invalid values are ignored; the response always carries the value in effect
// @Tags beats
// @Accept json
// @Produce json
// @Param request body BeatsRequest true "Raw field text"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/beats [put]
func (h *handler) setBeats(c *gin.Context) {
	var req BeatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	beats, err := h.session.SetBeats(req.Value)
	if err != nil {
		respondError(c, err)
		return
	}
	_, parseErr := editor.ParseBeats(req.Value)
	c.JSON(http.StatusOK, gin.H{"beats": beats, "applied": parseErr == nil})
}

// listNotifications godoc
// @Summary List recent failures
// @Tags notifications
// @Produce json
// @Success 200 {object} map[string][]string
// @Router /api/v1/notifications [get]
func (h *handler) listNotifications(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"notifications": h.session.Notifications()})
}

// save godoc
// @Summary Save the project
// @Tags project
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/save [post]
func (h *handler) save(c *gin.Context) {
	if err := h.session.Save(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}

// listFormats godoc
// @Summary List supported formats
// @Description Returns the project file formats that can be read and written
// @Tags info
// @Produce json
// @Success 200 {object} map[string][]string
// @Router /api/v1/formats [get]
func listFormats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"formats": project.GetSupportedFormats(),
	})
}

// handleConversion godoc
// @Summary Convert a project file
// @Description Upload a YAML or MIDI project and receive it in the other format
// @Tags convert
// @Accept multipart/form-data
// @Produce application/octet-stream
// @Param file formData file true "Project file to convert"
// @Param to query string false "Target format: yaml or midi (default: midi)"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Router /api/v1/convert [post]
func handleConversion(c *gin.Context) {
	// Get uploaded file
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	defer func() { _ = file.Close() }()

	// Read file content
	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}

	from := project.DetectFormat(header.Filename)
	if from == project.FormatUnknown {
		from = project.DetectFormatFromContent(data)
	}
	p, err := project.Parse(data, from)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if p.Name == "" {
		p.Name = baseName(header.Filename)
	}

	to := project.Format(c.DefaultQuery("to", string(project.FormatMIDI)))
	var outputExt, contentType string
	switch to {
	case project.FormatMIDI:
		outputExt, contentType = ".mid", "audio/midi"
	case project.FormatYAML:
		outputExt, contentType = ".yaml", "application/yaml"
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported conversion"})
		return
	}

	result, err := p.Encode(to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", baseName(header.Filename)+outputExt))
	c.Data(http.StatusOK, contentType, result)
}

func baseName(filename string) string {
	if i := strings.LastIndex(filename, "."); i > 0 {
		return filename[:i]
	}
	if filename == "" {
		return "converted"
	}
	return filename
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

// statusFor maps operation errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, editor.ErrNoMarkerBehindCursor),
		errors.Is(err, editor.ErrCursorOnMarker),
		errors.Is(err, editor.ErrInsufficientMarkers),
		errors.Is(err, editor.ErrUnmatchedConfiguration):
		return http.StatusConflict
	case errors.Is(err, editor.ErrDegenerateInterval),
		errors.Is(err, tempo.ErrOutsideSong):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
