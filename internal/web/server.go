// Package web serves the browser form that fronts the answer service.
//
// The handlers here are a pure event-binding layer: upload and question go in,
// answer text comes out. All answer policy (missing image, default question)
// lives in pkg/answer so non-UI callers see identical behavior.
package web

import (
	"context"
	"embed"
	"html/template"
	"image"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/loresico/gemma3-vision-demo/internal/utils"
	"github.com/loresico/gemma3-vision-demo/pkg/answer"
	"github.com/loresico/gemma3-vision-demo/pkg/processing"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Analyzer is the slice of the answer service the web layer needs.
type Analyzer interface {
	Analyze(ctx context.Context, img image.Image, question string) (string, error)
	Model() string
	EngineName() string
}

// HealthChecker reports engine reachability for the health endpoint.
type HealthChecker interface {
	Healthy(ctx context.Context) bool
}

// Options configures the server.
type Options struct {
	Theme string
	// MaxDim downscales uploads before analysis. 0 keeps original size.
	MaxDim int
	// MaxBytes caps upload reads. 0 means unlimited.
	MaxBytes int64
}

// Server binds the form page and API routes to the answer service.
type Server struct {
	analyzer Analyzer
	health   HealthChecker
	proc     *processing.Processor
	opts     Options
	router   *gin.Engine
	log      *logrus.Entry
}

// NewServer creates the web server around an answer service.
func NewServer(analyzer Analyzer, health HealthChecker, opts Options) *Server {
	proc := processing.NewProcessor()
	proc.MaxUploadBytes = opts.MaxBytes

	s := &Server{
		analyzer: analyzer,
		health:   health,
		proc:     proc,
		opts:     opts,
		log:      logrus.WithField("component", "web"),
	}

	router := gin.New()
	router.Use(RequestID(), Logging(), gin.Recovery())
	router.SetHTMLTemplate(template.Must(template.ParseFS(templatesFS, "templates/*.html")))

	router.GET("/", s.handleIndex)
	router.POST("/api/analyze", s.handleAnalyze)
	router.GET("/api/examples", s.handleExamples)
	router.GET("/healthz", s.handleHealth)

	s.router = router
	return s
}

// Handler returns the http.Handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Theme":    themeByName(s.opts.Theme),
		"Model":    s.analyzer.Model(),
		"Engine":   s.analyzer.EngineName(),
		"Examples": answer.ExampleQuestions,
	})
}

// handleAnalyze accepts a multipart form with an optional "image" file and a
// "question" field. A request without an image is not an error here: the
// answer service answers it with its advisory string.
func (s *Server) handleAnalyze(c *gin.Context) {
	question := c.PostForm("question")

	var img image.Image
	fileHeader, err := c.FormFile("image")
	if err == nil && fileHeader != nil {
		file, openErr := fileHeader.Open()
		if openErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read uploaded image"})
			return
		}
		defer file.Close()

		decoded, decErr := s.proc.DecodeUpload(file)
		if decErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not decode uploaded image"})
			return
		}
		img = s.proc.Downscale(decoded, s.opts.MaxDim)

		s.log.WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"filename":   fileHeader.Filename,
			"size":       utils.FormatFileSize(fileHeader.Size),
		}).Debug("upload decoded")
	}

	text, err := s.analyzer.Analyze(c.Request.Context(), img, question)
	if err != nil {
		s.log.WithError(err).WithField("request_id", c.GetString("request_id")).Error("analysis failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "analysis failed, please try again"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"answer": text})
}

func (s *Server) handleExamples(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"examples": answer.ExampleQuestions})
}

func (s *Server) handleHealth(c *gin.Context) {
	if !s.health.Healthy(c.Request.Context()) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "engine": s.analyzer.EngineName()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"engine": s.analyzer.EngineName(),
		"model":  s.analyzer.Model(),
	})
}
