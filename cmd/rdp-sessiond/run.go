package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GNOME/gnome-remote-desktop-sub000/internal/config"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/logging"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/mtls"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/peer"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/sessionrt"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/workerpool"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the session daemon",
	Run: func(cmd *cobra.Command, args []string) {
		runDaemon()
	},
}

// newListener constructs the peer-library listener bound to addr with the
// given TLS config. The peer wire protocol itself is a consumed external
// contract (spec.md §6: "Peer library contract (consumed)"), so this
// daemon ships no concrete Listener of its own; a production build links
// one in (overriding this var from a build-tag-guarded file) the same way
// it links a concrete RFX/NSC/GFX codec.
var newListener = func(addr string, tlsCfg *tls.Config) (peer.Listener, error) {
	return nil, fmt.Errorf("no peer.Listener implementation linked into this build")
}

func initLogging(cfg *config.Config) {
	var output io.Writer = os.Stdout

	if cfg.LogFile != "" {
		rw, err := logging.NewRotatingWriter(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file %s: %v (logging to stdout)\n", cfg.LogFile, err)
		} else {
			output = logging.TeeWriter(os.Stdout, rw)
		}
	}

	logging.Init(cfg.LogFormat, cfg.LogLevel, output)
	log = logging.L("main")
}

func runDaemon() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	initLogging(cfg)
	log.Info("starting rdp-sessiond", "version", version, "listen", cfg.ListenAddress)

	var tlsCfg *tls.Config
	if cfg.RDPServerCert != "" && cfg.RDPServerKey != "" {
		certPEM, err := os.ReadFile(cfg.RDPServerCert)
		if err != nil {
			log.Error("failed to read rdp server cert", "error", err)
			os.Exit(1)
		}
		keyPEM, err := os.ReadFile(cfg.RDPServerKey)
		if err != nil {
			log.Error("failed to read rdp server key", "error", err)
			os.Exit(1)
		}
		tlsCfg, err = mtls.BuildServerTLSConfig(certPEM, keyPEM)
		if err != nil {
			log.Error("failed to build TLS config", "error", err)
			os.Exit(1)
		}
	}

	listener, err := newListener(cfg.ListenAddress, tlsCfg)
	if err != nil {
		log.Error("failed to start listener", "error", err)
		os.Exit(1)
	}
	defer listener.Close()

	pool := workerpool.New(cfg.WorkerPoolSize, cfg.WorkerPoolQueueCap)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutting down rdp-sessiond")
		cancel()
	}()

	acceptLoop(ctx, cfg, listener, pool)
}

// acceptLoop implements the socket thread's accept side (spec.md §5): one
// Manager per accepted connection, each pumped by its own goroutine.
func acceptLoop(ctx context.Context, cfg *config.Config, listener peer.Listener, pool *workerpool.Pool) {
	for {
		conn, err := listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("accept failed", "error", err)
			continue
		}

		session := buildSession(cfg, conn, pool)
		go runPeerLoop(ctx, conn, session)
	}
}

// runPeerLoop pumps one connection's peer event loop until the transport
// dies or the daemon is shutting down (spec.md §4.1/§5's socket thread).
// The concrete peer library implementation is expected to invoke
// session's peer.Callbacks methods as it processes events returned by
// CheckFileDescriptor; that registration happens inside the concrete
// Connection/Listener, outside this module's abstracted interfaces.
func runPeerLoop(ctx context.Context, conn peer.Connection, session *sessionrt.Manager) {
	if err := conn.Initialize(ctx); err != nil {
		log.Error("peer connection failed to initialize", "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			session.Shutdown()
			return
		default:
		}

		alive, err := conn.CheckFileDescriptor(ctx)
		if err != nil {
			log.Warn("check-fd failed", "error", err)
			session.OnClientGone()
			return
		}
		if !alive {
			session.OnClientGone()
			return
		}
	}
}
