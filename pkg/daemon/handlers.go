package daemon

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pcran/pcran/pkg/api"
	"github.com/pcran/pcran/pkg/config"
	"github.com/pcran/pcran/pkg/pcrerr"
	"github.com/pcran/pcran/pkg/pipeline"
	"github.com/pcran/pcran/pkg/version"
)

// fail writes err as an api.ErrorResponse. Analysis errors are 422, other
// errors get status.
func fail(c *gin.Context, status int, err error) {
	var perr *pcrerr.Error
	if errors.As(err, &perr) {
		status = http.StatusUnprocessableEntity
	}
	c.IndentedJSON(status, api.NewErrorResponse(err))
	c.Abort()
	_ = c.Error(err)
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, version.Version)
}

func (d *Daemon) getConfig(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, d.conf.Raw())
}

func (d *Daemon) analyze(c *gin.Context) {
	var req api.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}

	opts, err := pipeline.OptionsFromConfig(withOverrides(d.conf, req.Options))
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	p, err := pipeline.New(opts, d.reporter())
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}

	res, err := p.Run(c.Request.Context(), req.Samples)
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, res)
}

func (d *Daemon) regress(c *gin.Context) {
	var req api.RegressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}

	// Wells do not apply to a ready dataset.
	conf := withOverrides(d.conf, req.Options)
	conf.Merge(&config.RawFileConfig{Wells: []string{}, X: []float64{}})

	opts, err := pipeline.OptionsFromConfig(conf)
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	p, err := pipeline.New(opts, d.reporter())
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}

	res, err := p.RegressDataset(c.Request.Context(), req.Points)
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, res)
}

func (d *Daemon) getLast(c *gin.Context) {
	res := d.cache.Last()
	if res == nil {
		c.IndentedJSON(http.StatusNotFound, api.ErrorResponse{Error: "no scheduled result yet"})
		return
	}
	c.IndentedJSON(http.StatusOK, res)
}

// runNow runs the configured analysis immediately, as a scheduled run would.
func (d *Daemon) runNow(c *gin.Context) {
	res, err := d.runConfigured(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, res)
}

func (d *Daemon) getSchedule(c *gin.Context) {
	d.schedMu.Lock()
	s := d.scheduler
	d.schedMu.Unlock()

	status := api.ScheduleStatus{}
	if s != nil {
		next, running := s.Status()
		status.Schedule = s.Expression()
		status.Running = running
		if !next.IsZero() {
			status.NextRun = next.Format(time.RFC3339)
		}
	}
	c.IndentedJSON(http.StatusOK, status)
}

func (d *Daemon) skipSchedule(c *gin.Context) {
	d.schedMu.Lock()
	s := d.scheduler
	d.schedMu.Unlock()

	if s == nil {
		fail(c, http.StatusConflict, errors.New("no schedule configured"))
		return
	}
	if err := s.Skip(); err != nil {
		fail(c, http.StatusConflict, err)
		return
	}
	d.getSchedule(c)
}

func (d *Daemon) streamEvents(c *gin.Context) {
	ch := d.hub.Subscribe()
	defer d.hub.Unsubscribe(ch)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, string(ev.Data))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
