package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	service "github.com/okian/podium/internal/app"
	"github.com/okian/podium/internal/config"
	"github.com/okian/podium/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func testConfig() config.Config {
	cfg := *config.New(context.Background())
	cfg.Addr = "127.0.0.1:0"
	cfg.WorkerCount = 2
	cfg.DirectoryRPS = 0
	cfg.MaxLeaderboardLimit = 5
	return cfg
}

func TestMain(m *testing.M) {
	if err := logger.InitWithWriter(io.Discard); err != nil {
		panic(err)
	}
	m.Run()
}

func TestHandler(t *testing.T) {
	convey.Convey("Given a started service behind the HTTP handler", t, func() {
		ctx := context.Background()
		cfg := testConfig()
		svc := service.New(cfg, service.WithLogger(logger.Nop()))
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		srv := httptest.NewServer(newHandler(cfg, svc, logger.Nop()))
		defer srv.Close()

		convey.Convey("When a contribution is posted", func() {
			resp, err := http.Post(srv.URL+"/contributions", "application/json",
				strings.NewReader(`{"id":"c1","subject_id":"alice","amount":3}`))
			convey.So(err, convey.ShouldBeNil)
			resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusAccepted)

			convey.Convey("Then it reaches the leaderboard", func() {
				var entries []map[string]any
				deadline := time.Now().Add(3 * time.Second)
				for time.Now().Before(deadline) {
					r, err := http.Get(srv.URL + "/leaderboard")
					convey.So(err, convey.ShouldBeNil)
					entries = nil
					_ = json.NewDecoder(r.Body).Decode(&entries)
					r.Body.Close()
					if len(entries) == 1 {
						break
					}
					time.Sleep(10 * time.Millisecond)
				}
				convey.So(len(entries), convey.ShouldEqual, 1)
				convey.So(entries[0]["subject_id"], convey.ShouldEqual, "alice")
			})
		})

		convey.Convey("When the configured leaderboard limit is exceeded", func() {
			resp, err := http.Get(srv.URL + "/leaderboard?limit=6")
			convey.So(err, convey.ShouldBeNil)
			resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusBadRequest)
		})

		convey.Convey("When the API docs are requested", func() {
			resp, err := http.Get(srv.URL + "/openapi.yaml")
			convey.So(err, convey.ShouldBeNil)
			resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("When service metrics are published", func() {
			convey.So(updateServiceMetrics(ctx, svc), convey.ShouldBeNil)
		})
	})
}

func TestScheduler(t *testing.T) {
	convey.Convey("Given the default configuration", t, func() {
		cfg := testConfig()
		cfg.PurgeInterval = 0
		s := newScheduler(cfg, service.New(cfg, service.WithLogger(logger.Nop())), logger.Nop())

		convey.Convey("Then enabled jobs are registered", func() {
			convey.So(s.Jobs(), convey.ShouldResemble,
				[]string{"sync", "cooldown_prune", "system_metrics", "service_metrics"})
		})
	})
}

func TestRun(t *testing.T) {
	convey.Convey("Given a context that is cancelled shortly", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		convey.Convey("Then run starts and shuts down cleanly", func() {
			done := make(chan error, 1)
			go func() { done <- run(ctx, testConfig()) }()
			select {
			case err := <-done:
				convey.So(err, convey.ShouldBeNil)
			case <-time.After(10 * time.Second):
				convey.So("run did not return", convey.ShouldBeEmpty)
			}
		})
	})

	convey.Convey("Given an address that cannot be bound", t, func() {
		cfg := testConfig()
		cfg.Addr = "256.0.0.1:99999"

		convey.Convey("Then run returns the listen error", func() {
			err := run(context.Background(), cfg)
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}
