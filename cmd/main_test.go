package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	app "github.com/okian/tailor/internal/app"
	"github.com/okian/tailor/internal/config"
	"github.com/okian/tailor/pkg/logger"
)

func freeAddr() string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	convey.So(err, convey.ShouldBeNil)
	addr := l.Addr().String()
	_ = l.Close()
	return addr
}

func TestRun(t *testing.T) {
	convey.Convey("Given the service configured through the environment", t, func() {
		addr := freeAddr()
		t.Setenv(config.EnvFile, "")
		t.Setenv("TAILOR_ADDR", addr)
		t.Setenv("TAILOR_WORKER_COUNT", "2")
		t.Setenv("TAILOR_METRICS_NAMESPACE", "shop")

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- run(ctx) }()

		convey.Convey("Then it serves health checks until cancelled", func() {
			ok := false
			for i := 0; i < 100 && !ok; i++ {
				resp, err := http.Get("http://" + addr + "/healthz")
				if err == nil {
					ok = resp.StatusCode == http.StatusOK
					_ = resp.Body.Close()
				}
				if !ok {
					time.Sleep(20 * time.Millisecond)
				}
			}
			convey.So(ok, convey.ShouldBeTrue)

			resp, err := http.Get("http://" + addr + "/metrics")
			convey.So(err, convey.ShouldBeNil)
			body, err := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			convey.So(err, convey.ShouldBeNil)
			convey.So(string(body), convey.ShouldContainSubstring, "shop_personalize_")

			cancel()
			select {
			case err := <-done:
				convey.So(err, convey.ShouldBeNil)
			case <-time.After(10 * time.Second):
				convey.So("run did not return", convey.ShouldBeEmpty)
			}
		})
	})

	convey.Convey("Given an invalid configuration", t, func() {
		t.Setenv(config.EnvFile, "")
		t.Setenv("TAILOR_PROFILE_STORE", "redis")
		err := run(context.Background())
		convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
	})
}

func TestSupervisedComponents(t *testing.T) {
	convey.Convey("Given the supervised components", t, func() {
		if err := logger.Init(); err != nil {
			t.Fatal(err)
		}

		convey.Convey("The metrics updater stops with its context", func() {
			svc := app.New()
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			m := &metricsUpdater{svc: svc}
			convey.So(errors.Is(m.Serve(ctx), context.DeadlineExceeded), convey.ShouldBeTrue)
			convey.So(m.String(), convey.ShouldEqual, "metrics-updater")
		})

		convey.Convey("Metric updates never panic", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
			convey.So(func() { updateServiceMetrics(context.Background(), app.New()) }, convey.ShouldNotPanic)
		})

		convey.Convey("The http service reports listen failures", func() {
			l, err := net.Listen("tcp", "127.0.0.1:0")
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = l.Close() }()

			h := &httpService{
				server:          &http.Server{Addr: l.Addr().String(), ReadHeaderTimeout: time.Second},
				shutdownTimeout: time.Second,
				logger:          logger.Nop(),
			}
			convey.So(h.Serve(context.Background()), convey.ShouldNotBeNil)
		})
	})
}
