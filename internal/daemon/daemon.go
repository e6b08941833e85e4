package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/voxprep/voxprep/internal/bus"
	"github.com/voxprep/voxprep/internal/config"
	"github.com/voxprep/voxprep/internal/metrics"
	"github.com/voxprep/voxprep/internal/notify"
	"github.com/voxprep/voxprep/internal/pipeline"
)

// Daemon owns the long-running process: the control socket, the pipeline,
// config hot reload, and the optional metrics listener.
type Daemon struct {
	notifier notify.Notifier
	log      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	pipeline *pipeline.Pipeline
	manager  *config.Manager
}

func New(notifier notify.Notifier, log zerolog.Logger) *Daemon {
	if notifier == nil {
		notifier = notify.Log{Logger: log}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Daemon{
		notifier: notifier,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (d *Daemon) Run() error {
	if err := bus.CheckExistingDaemon(); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	p, err := pipeline.New(cfg, d.notifier, d.log)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	d.mu.Lock()
	d.pipeline = p
	d.mu.Unlock()

	manager, err := config.NewManager(d.log.With().Str("component", "config").Logger())
	if err != nil {
		d.log.Warn().Err(err).Msg("config hot reload unavailable")
	} else {
		manager.OnReload(func(updated *config.Config) {
			d.notifier.Notify(notify.ConfigReloaded)
			p.SetJobType(updated.Assistant.JobType)
		})
		if err := manager.StartWatching(d.ctx); err != nil {
			d.log.Warn().Err(err).Msg("config hot reload unavailable")
		} else {
			defer manager.Stop()
		}
		d.manager = manager
	}

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(d.ctx, cfg.Metrics.Addr, d.log.With().Str("component", "metrics").Logger()); err != nil {
				d.log.Error().Err(err).Msg("metrics listener failed")
			}
		}()
	}

	ln, err := bus.Listen()
	if err != nil {
		return err
	}
	defer ln.Close()

	if err := bus.CreatePidFile(); err != nil {
		return fmt.Errorf("failed to create PID file: %w", err)
	}
	defer bus.RemovePidFile()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	go func() {
		sig := <-sigCh
		d.log.Info().Str("signal", sig.String()).Msg("shutting down")
		d.cancel()
	}()

	go func() {
		<-d.ctx.Done()
		ln.Close()
	}()

	d.log.Info().Msg("daemon started, listening on control socket")

	for {
		c, err := ln.Accept()
		if err != nil {
			if d.ctx.Err() != nil {
				d.shutdown()
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}
		go d.handle(c)
	}
}

func (d *Daemon) shutdown() {
	d.mu.Lock()
	p := d.pipeline
	d.mu.Unlock()
	if p != nil {
		p.StopCapture()
	}
	d.log.Info().Msg("daemon stopped")
}

func (d *Daemon) handle(c net.Conn) {
	defer c.Close()

	line, err := bufio.NewReader(c).ReadString('\n')
	if err != nil {
		fmt.Fprintf(c, "ERR read_error: %v\n", err)
		return
	}
	line = strings.TrimRight(line, "\n")
	if len(line) == 0 {
		fmt.Fprint(c, "ERR empty\n")
		return
	}
	cmd, arg := line[0], strings.TrimSpace(line[1:])

	d.mu.Lock()
	p := d.pipeline
	d.mu.Unlock()

	switch cmd {
	case bus.CmdStart:
		if err := p.StartCapture(d.ctx); err != nil {
			fmt.Fprintf(c, "ERR start: %v\n", err)
			return
		}
		fmt.Fprint(c, "OK capturing\n")

	case bus.CmdStop:
		p.StopCapture()
		fmt.Fprint(c, "OK stopped\n")

	case bus.CmdStatus:
		payload, err := json.Marshal(p.Status())
		if err != nil {
			fmt.Fprintf(c, "ERR status: %v\n", err)
			return
		}
		fmt.Fprintf(c, "STATUS %s\n", payload)

	case bus.CmdDevices:
		devices, err := p.Catalog().ListInputs(d.ctx)
		if err != nil {
			fmt.Fprintf(c, "ERR devices: %v\n", err)
			return
		}
		names := make([]string, len(devices))
		for i, dev := range devices {
			names[i] = dev.ID
		}
		fmt.Fprintf(c, "DEVICES %s\n", strings.Join(names, "\t"))

	case bus.CmdSelect:
		if arg == "" {
			fmt.Fprint(c, "ERR select: missing device id\n")
			return
		}
		if err := p.SelectDevice(d.ctx, arg); err != nil {
			fmt.Fprintf(c, "ERR select: %v\n", err)
			return
		}
		fmt.Fprintf(c, "OK device=%s\n", arg)

	case bus.CmdJob:
		if arg == "" {
			fmt.Fprint(c, "ERR job: missing job type\n")
			return
		}
		p.SetJobType(arg)
		fmt.Fprintf(c, "OK job=%s\n", arg)

	case bus.CmdVersion:
		fmt.Fprintf(c, "STATUS proto=%s\n", bus.ProtoVer)

	case bus.CmdQuit:
		fmt.Fprint(c, "OK quitting\n")
		d.cancel()

	default:
		fmt.Fprintf(c, "ERR unknown=%q\n", cmd)
	}
}
