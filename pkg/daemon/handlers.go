package daemon

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battrem/pkg/config"
	"github.com/charlie0129/battrem/pkg/events"
	"github.com/charlie0129/battrem/pkg/powerinfo"
	"github.com/charlie0129/battrem/pkg/types"
	"github.com/charlie0129/battrem/pkg/version"
)

type server struct {
	monitor *Monitor
	conf    config.Config
	reader  powerinfo.Reader
	hub     *events.EventHub
}

func (s *server) setupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.GET("/config", s.getConfig)
	router.PUT("/min-threshold", s.setMinThreshold)
	router.PUT("/max-threshold", s.setMaxThreshold)
	router.PUT("/reminder-frequency", s.setReminderFrequency)
	router.GET("/reading", s.getReading)
	router.GET("/reminder", s.getReminder)
	router.POST("/evaluate", s.evaluate)
	router.GET("/events", s.streamEvents)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/version", getVersion)

	return router
}

func (s *server) getConfig(c *gin.Context) {
	fc, err := config.NewRawFileConfigFromConfig(s.conf)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, fc)
}

type settingFunc func(c *gin.Context, v int) (types.Evaluation, error)

func (s *server) handleSetting(c *gin.Context, name string, set settingFunc) {
	var v int
	if err := c.ShouldBindJSON(&v); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	res, err := set(c, v)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, config.ErrInvalidThreshold) || errors.Is(err, config.ErrInvalidFrequency) {
			status = http.StatusBadRequest
		}
		c.IndentedJSON(status, err.Error())
		_ = c.AbortWithError(status, err)
		return
	}

	logrus.Infof("set %s to %d", name, v)

	c.IndentedJSON(http.StatusCreated, res)
}

func (s *server) setMinThreshold(c *gin.Context) {
	s.handleSetting(c, "minimum threshold", func(c *gin.Context, v int) (types.Evaluation, error) {
		return s.monitor.SetMinThreshold(c.Request.Context(), v)
	})
}

func (s *server) setMaxThreshold(c *gin.Context) {
	s.handleSetting(c, "maximum threshold", func(c *gin.Context, v int) (types.Evaluation, error) {
		return s.monitor.SetMaxThreshold(c.Request.Context(), v)
	})
}

func (s *server) setReminderFrequency(c *gin.Context) {
	s.handleSetting(c, "reminder frequency", func(c *gin.Context, v int) (types.Evaluation, error) {
		return s.monitor.SetReminderFrequency(c.Request.Context(), v)
	})
}

func (s *server) getReading(c *gin.Context) {
	reading, err := s.reader.Read()
	if err != nil {
		logrus.Errorf("getReading failed: %v", err)
		status := http.StatusInternalServerError
		if errors.Is(err, powerinfo.ErrHardwareUnavailable) {
			status = http.StatusServiceUnavailable
		}
		c.IndentedJSON(status, err.Error())
		_ = c.AbortWithError(status, err)
		return
	}

	c.IndentedJSON(http.StatusOK, reading)
}

func (s *server) getReminder(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.monitor.State())
}

// evaluate forces an evaluation, rescheduling the reminder even if the
// decision did not change.
func (s *server) evaluate(c *gin.Context) {
	res, err := s.monitor.Evaluate(c.Request.Context(), types.TriggerManual)
	if err != nil && res.Trigger == "" {
		c.IndentedJSON(http.StatusServiceUnavailable, err.Error())
		_ = c.AbortWithError(http.StatusServiceUnavailable, err)
		return
	}

	c.IndentedJSON(http.StatusOK, res)
}

func (s *server) streamEvents(c *gin.Context) {
	ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(ch)

	logrus.WithField("subscribers", s.hub.Subscribers()).Debug("events subscriber connected")

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, ev.Data)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, version.Version)
}
