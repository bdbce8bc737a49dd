// Package daemon serves the analysis over HTTP, streams run events and
// re-runs the configured analysis on a cron schedule.
package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/pcran/pcran/pkg/api"
	"github.com/pcran/pcran/pkg/config"
	"github.com/pcran/pcran/pkg/events"
)

// cacheSize is the number of results kept for fingerprint lookups.
const cacheSize = 16

type Daemon struct {
	conf  *config.File
	hub   *events.EventHub
	cache *resultCache

	runMu sync.Mutex

	schedMu   sync.Mutex
	scheduler *Scheduler
}

func New(conf *config.File) *Daemon {
	return &Daemon{
		conf:  conf,
		hub:   events.NewEventHub(),
		cache: newResultCache(cacheSize),
	}
}

// Hub returns the hub run events are published on.
func (d *Daemon) Hub() *events.EventHub {
	return d.hub
}

// Handler returns the daemon's HTTP routes.
func (d *Daemon) Handler() http.Handler {
	return d.setupRoutes()
}

func (d *Daemon) setupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.GET("/version", getVersion)
	router.GET("/config", d.getConfig)
	router.POST("/analyze", d.analyze)
	router.POST("/regress", d.regress)
	router.GET("/last", d.getLast)
	router.POST("/run", d.runNow)
	router.GET("/schedule", d.getSchedule)
	router.POST("/schedule/skip", d.skipSchedule)
	router.GET("/events", d.streamEvents)

	return router
}

// Run serves the daemon until SIGINT or SIGTERM. listen overrides the
// configured address when not empty.
func Run(configPath string, listen string) error {
	conf, err := config.NewFile(configPath)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to parse config during startup")
	}
	logrus.WithFields(conf.LogrusFields()).Infof("config loaded")

	d := New(conf)
	router := d.setupRoutes()

	if err := d.applySchedule(); err != nil {
		return err
	}
	defer d.stopSchedule()

	// Receive SIGHUP to reload config
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGHUP)
		for range sigc {
			err := conf.Load()
			if err != nil {
				logrus.Errorf("failed to reload config: %v", err)
				continue
			}
			logrus.WithFields(conf.LogrusFields()).Infof("config reloaded")
			if err := d.applySchedule(); err != nil {
				logrus.Errorf("failed to apply schedule: %v", err)
			}
		}
	}()

	if listen == "" {
		listen = conf.Listen()
	}
	network, address, err := api.ParseListen(listen)
	if err != nil {
		return err
	}
	if network == "unix" {
		if err := os.Remove(address); err != nil && !os.IsNotExist(err) {
			return pkgerrors.Wrapf(err, "failed to remove stale socket %s", address)
		}
	}

	l, err := net.Listen(network, address)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to listen on %s", listen)
	}

	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigc:
		logrus.Infof("caught signal \"%s\": shutting down.", sig)
	case err := <-serveErr:
		return pkgerrors.Wrap(err, "http server failed")
	}

	logrus.Info("shutting down http server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}

	logrus.Info("exiting")
	return nil
}
