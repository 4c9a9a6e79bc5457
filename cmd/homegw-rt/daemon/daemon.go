// Package daemon bootstraps the real-time threads and the HTTP front end.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/arduino/go-paths-helper"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/homegw/homegw-rt/internal/api"
	"github.com/homegw/homegw-rt/internal/bridge"
	"github.com/homegw/homegw-rt/internal/config"
	"github.com/homegw/homegw-rt/internal/gpio"
	"github.com/homegw/homegw-rt/internal/httprecover"
	"github.com/homegw/homegw-rt/internal/instance"
	"github.com/homegw/homegw-rt/internal/kmsg"
	"github.com/homegw/homegw-rt/internal/metrics"
	"github.com/homegw/homegw-rt/internal/oom"
	"github.com/homegw/homegw-rt/internal/rtloop"
	"github.com/homegw/homegw-rt/internal/sched"
)

// Descriptors passed by the bootstrap process with --inherit-fds.
const (
	logPipeFD  = 3
	listenerFD = 4
)

const kmsgPrefix = "homegw-rt"

type options struct {
	configFile string
	inheritFDs bool
}

func NewDaemonCmd(cfg config.Configuration, version string, level slog.Leveler) *cobra.Command {
	var opts options
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the GPIO control loop, the OOM guardian and the local HTTP API",
		Long: "Run the GPIO control loop, the OOM guardian and the local HTTP API.\n\n" +
			"The pin configuration is read from --config, or from standard input when\n" +
			"no file is given. Needs CAP_SYS_NICE, CAP_IPC_LOCK and CAP_KILL.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg, version, level, opts, cmd.InOrStdin())
		},
	}
	daemonCmd.Flags().StringVar(&opts.configFile, "config", "", "Pin configuration file (JSON or YAML)")
	daemonCmd.Flags().BoolVar(&opts.inheritFDs, "inherit-fds", false, "Log to fd 3 and serve the API on the listener at fd 4")
	return daemonCmd
}

func run(ctx context.Context, cfg config.Configuration, version string, level slog.Leveler, opts options, stdin io.Reader) error {
	// Page faults on the real-time threads must never hit the disk.
	if err := sched.LockMemory(); err != nil {
		return err
	}

	logSink := io.Writer(os.Stderr)
	if opts.inheritFDs {
		pipe, err := inheritedLogPipe()
		if err != nil {
			return err
		}
		defer pipe.Close()
		logSink = pipe
	}
	logger := slog.New(slog.NewJSONHandler(logSink, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	inst, err := instance.Acquire(cfg.RunDir())
	if err != nil {
		return err
	}
	defer func() {
		if err := inst.Release(); err != nil {
			slog.Warn("release instance lock", slog.String("error", err.Error()))
		}
	}()

	pins := loadDocument(logger, opts.configFile, stdin).Pins(logger)
	slog.Info("Starting homegw-rt daemon", slog.String("version", version), slog.Int("pins", len(pins)))

	klog, err := kmsg.Open(cfg.KmsgPath().String(), kmsgPrefix)
	if err != nil {
		return fmt.Errorf("open kernel log: %w", err)
	}
	defer klog.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	var ln net.Listener
	if opts.inheritFDs {
		ln, err = inheritedListener()
	} else {
		ln, err = listenUnix(cfg.SocketPath())
	}
	if err != nil {
		return err
	}

	br := bridge.New()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		guardian := oom.New(
			cfg.PSIMemoryPath().String(),
			oom.NewHostProcesses(cfg.ProcDir().String()),
			oom.WithKmsg(klog),
			oom.WithMetrics(m),
		)
		slog.Info("Starting OOM guardian", slog.String("trigger", oom.Trigger))
		return guardian.Run(ctx)
	})

	g.Go(func() error {
		// Lines are acquired here so the operator is created by the goroutine
		// that becomes the loop thread and owns them.
		operator := gpio.NewOperator(gpio.NewCdev(cfg.GPIODevDir().String()), pins, logger)
		defer operator.Close()

		for _, name := range operator.ResetLineNames() {
			id, _ := operator.ResetLineID(name)
			slog.Debug("reset line", slog.String("pin_name", name), slog.String("line", id.String()))
		}

		loop := rtloop.New(operator, br, rtloop.WithKmsg(klog), rtloop.WithMetrics(m))
		slog.Info("Starting control loop",
			slog.Int("chips", operator.NumChips()),
			slog.Int("reset_pins", len(operator.ResetLineNames())),
			slog.Int("blink_lines", len(operator.BlinkLines())),
		)
		return loop.Run(ctx, rtloop.DeadlinePacer{})
	})

	g.Go(func() error {
		router := api.NewHTTPRouter(br, api.Options{Version: version, Gatherer: reg})
		return serve(ctx, ln, httprecover.RecoverPanic(router))
	})

	err = g.Wait()
	if err != nil {
		slog.Error("homegw-rt daemon stopped", slog.String("error", err.Error()))
		return err
	}
	slog.Info("homegw-rt daemon stopped")
	return nil
}

// loadDocument never fails: a document that cannot be read or parsed is
// logged and the daemon runs with no pins.
func loadDocument(logger *slog.Logger, configFile string, stdin io.Reader) *config.Document {
	var (
		doc *config.Document
		err error
	)
	switch {
	case configFile != "":
		doc, err = config.LoadDocumentFile(paths.New(configFile))
	case isTerminal(stdin):
		logger.Warn("no pin configuration given")
		return &config.Document{}
	default:
		doc, err = config.ReadDocument(stdin)
	}
	if err != nil {
		logger.Error("unable to load pin configuration", slog.String("error", err.Error()))
		return &config.Document{}
	}
	return doc
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

func inheritedLogPipe() (*os.File, error) {
	f := os.NewFile(logPipeFD, "log-pipe")
	if _, err := f.Stat(); err != nil {
		return nil, fmt.Errorf("inherited log pipe (fd %d): %w", logPipeFD, err)
	}
	return f, nil
}

func inheritedListener() (net.Listener, error) {
	f := os.NewFile(listenerFD, "listener")
	defer f.Close()
	ln, err := net.FileListener(f)
	if err != nil {
		return nil, fmt.Errorf("inherited listener (fd %d): %w", listenerFD, err)
	}
	return ln, nil
}

// listenUnix replaces a stale socket file. Only the holder of the instance
// lock gets here, so the file cannot belong to a live daemon.
func listenUnix(socket *paths.Path) (net.Listener, error) {
	if err := socket.Parent().MkdirAll(); err != nil {
		return nil, fmt.Errorf("create socket directory: %w", err)
	}
	if err := socket.Remove(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}
	ln, err := net.Listen("unix", socket.String())
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", socket, err)
	}
	return ln, nil
}

func serve(ctx context.Context, ln net.Listener, handler http.Handler) error {
	address := ln.Addr().String()
	slog.Info("Starting HTTP server", slog.String("address", address))

	httpSrv := http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 60 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpSrv.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve api: %w", err)
	case <-ctx.Done():
	}
	slog.Info("Shutting down HTTP server", slog.String("address", address))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	_ = httpSrv.Shutdown(shutdownCtx)
	cancel()
	slog.Info("HTTP server shut down", slog.String("address", address))
	return nil
}
