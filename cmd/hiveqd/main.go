package main

import (
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/hiveq/hiveq/internal/config"
	"github.com/hiveq/hiveq/internal/engine"
	"github.com/hiveq/hiveq/internal/metrics"
	"github.com/hiveq/hiveq/internal/protocol"
	"github.com/hiveq/hiveq/internal/wal"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	fs := pflag.NewFlagSet("hiveqd", pflag.ExitOnError)
	config.RegisterFlags(fs)
	metricsAddr := fs.String("metrics-addr", "", "address to serve /metrics on, empty disables it")
	fs.Parse(os.Args[1:])

	var propsPath string
	if fs.NArg() > 0 {
		propsPath = fs.Arg(0)
	}

	cfg, err := config.Load(propsPath, fs)
	if err != nil {
		log.Error().Err(err).Str("path", propsPath).Msg("hiveqd: failed to read properties file")
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	collector := metrics.New(reg)

	var store *wal.Store
	if cfg.WALEnable {
		store, err = wal.Open(cfg.WALDir, cfg.WALFiles)
		if err != nil {
			log.Error().Err(err).Str("dir", cfg.WALDir).Msg("hiveqd: failed to open write-ahead log")
			os.Exit(1)
		}
	}

	eng, err := engine.New(engine.Config{
		Drain:   cfg.Drain,
		Log:     log,
		Metrics: collector,
		WAL:     store,
	})
	if err != nil {
		log.Error().Err(err).Msg("hiveqd: failed to start engine")
		os.Exit(1)
	}

	ln, err := net.Listen("tcp", ":"+strconv.Itoa(cfg.Port))
	if err != nil {
		log.Error().Err(err).Int("port", cfg.Port).Msg("hiveqd: failed to bind listener")
		os.Exit(1)
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Error().Err(err).Msg("hiveqd: metrics server exited")
			}
		}()
	}

	srv := protocol.NewServer(eng, log)
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()

	log.Info().Int("port", cfg.Port).Bool("wal", cfg.WALEnable).Bool("drain", cfg.Drain).Msg("hiveqd: listening")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sig:
		log.Info().Msg("hiveqd: shutting down")
		ln.Close()
		<-serveErr
	case err := <-serveErr:
		log.Error().Err(err).Msg("hiveqd: listener exited unexpectedly")
	}

	if err := eng.Close(); err != nil {
		log.Error().Err(err).Msg("hiveqd: error during engine shutdown")
		os.Exit(1)
	}
}
