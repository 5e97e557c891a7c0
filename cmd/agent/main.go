package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Chichichkin/LogentriesAgent/internal/daemon"
	"github.com/Chichichkin/LogentriesAgent/internal/logging/handler"
	"github.com/Chichichkin/LogentriesAgent/internal/logging/logentries"
)

func main() {
	config, err := loadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := StartDaemon(ctx, config)

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-signalChan
		log.Println("Received shutdown signal")
		cancel()
	}()

	<-ctx.Done()
	log.Println("Shutting down...")
	stop()
}

// StartDaemon wires the delivery client, the tailing service and the metrics
// endpoint. The returned func stops them in reverse order.
func StartDaemon(ctx context.Context, config AppConfig) func() {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	client, err := logentries.NewClient(config.Logentries(), logentries.WithRegisterer(registry))
	if err != nil {
		// the client still accepts lines as a no-op sink
		log.Printf("Logentries shipping disabled: %v", err)
	}

	shipper := slog.New(handler.New(client, &handler.Options{Level: config.slogLevel()}))

	serviceConfig := daemon.Config{
		LogRootPath:     config.LogRootPath,
		FileSuffix:      config.FileSuffix,
		ScanInterval:    config.ScanInterval,
		MaxOpenFiles:    config.MaxOpenFiles,
		NodeName:        config.NodeName,
		FromStart:       config.FromStart,
		Poll:            config.Poll,
		FileIdleTimeout: config.FileIdleTimeout,
	}

	logDaemonService := daemon.NewLogDaemonService(ctx, serviceConfig, shipper)
	logDaemonService.Start()

	var server *http.Server
	if config.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
		server = &http.Server{Addr: config.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		go func() {
			log.Printf("Serving metrics on %s", config.MetricsAddr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("Metrics server failed: %v", err)
			}
		}()
	}

	return func() {
		logDaemonService.Stop()

		if !client.Flush(config.FlushTimeout) {
			log.Printf("Flush timed out after %s, unsent lines are dropped", config.FlushTimeout)
		}
		client.Shutdown()

		if server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}
	}
}
