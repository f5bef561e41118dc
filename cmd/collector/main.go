package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
	"golang.org/x/time/rate"

	"github.com/viewtrace/viewtrace/internal"
	"github.com/viewtrace/viewtrace/internal/collector"
)

func main() {
	log.Info(fmt.Sprintf("Collector %s is running", internal.CollectorVersionRevision))
	collector.LoadConfig()
	collector.InitMetrics()
	if collector.Config.PostgresURI == "" {
		collector.SetStorageInfo("memory")
	} else {
		collector.SetStorageInfo("postgres")
	}

	storage, err := collector.NewStorage(collector.Config.PostgresURI)
	if err != nil {
		log.Fatalf("db connection %v", err)
	}

	liveWindow := time.Duration(collector.Config.LiveViewerWindow) * time.Second
	live, err := collector.NewLiveCache(collector.Config.RedisURI, liveWindow)
	if err != nil {
		log.Fatalf("live cache %v", err)
	}
	go watchLiveViewers(live)

	healthManager := collector.NewHealthManager()
	healthManager.UpdateHealthStatus(storage)
	go healthManager.StartHealthMonitoring(storage)

	extractor, err := collector.NewRealIPExtractor(collector.Config.TrustedProxyRanges)
	if err != nil {
		log.Warnf("failed to create realIPExtractor: %v, using defaults", err)
		extractor, _ = collector.NewRealIPExtractor([]string{})
	}

	mux := http.NewServeMux()
	mux.Handle("/health", http.HandlerFunc(healthManager.HealthHandler))
	mux.Handle("/ready", http.HandlerFunc(healthManager.HealthHandler))
	mux.Handle("/version", http.HandlerFunc(collector.VersionHandler))
	mux.Handle("/metrics", promhttp.Handler())
	if collector.Config.PprofEnabled {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
	}
	go func() {
		log.Fatal(http.ListenAndServe(fmt.Sprintf(":%d", collector.Config.MetricsPort), mux))
	}()

	e := echo.New()
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		Skipper:           nil,
		DisableStackAll:   true,
		DisablePrintStack: false,
	}))
	e.Use(middleware.Logger())
	e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() != "/events"
		},
		Store: middleware.NewRateLimiterMemoryStore(rate.Limit(collector.Config.RPSLimit)),
	}))

	if collector.Config.CorsEnable {
		corsConfig := middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     []string{"*"},
			AllowMethods:     []string{echo.GET, echo.POST, echo.OPTIONS},
			AllowHeaders:     []string{"DNT", "Keep-Alive", "User-Agent", "X-Requested-With", "If-Modified-Since", "Cache-Control", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           86400,
		})
		e.Use(corsConfig)
	}

	h := collector.NewHandler(storage, live, extractor, collector.Config.MaxBodySize)

	e.POST("/events", h.IngestHandler)
	e.GET("/views/:id/events", h.ViewEventsHandler)

	var existedPaths []string
	for _, r := range e.Routes() {
		existedPaths = append(existedPaths, r.Path)
	}
	p := prometheus.NewPrometheus("http", func(c echo.Context) bool {
		return !slices.Contains(existedPaths, c.Path())
	})
	e.Use(p.HandlerFunc)

	log.Fatal(e.Start(fmt.Sprintf(":%v", collector.Config.Port)))
}

func watchLiveViewers(live collector.LiveCache) {
	log := log.WithField("prefix", "watchLiveViewers")
	interval := time.Duration(collector.Config.LiveGaugeInterval) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		n, err := live.Count(ctx, time.Now())
		cancel()
		if err != nil {
			log.Warnf("live viewers count: %v", err)
			continue
		}
		collector.LiveViewersMetric.Set(float64(n))
	}
}
