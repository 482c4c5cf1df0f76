// cmd/relay/run.go
package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/espnet/sensor-relay/internal/backend"
	"github.com/espnet/sensor-relay/internal/config"
	"github.com/espnet/sensor-relay/internal/mirror"
	"github.com/espnet/sensor-relay/internal/poller"
	"github.com/espnet/sensor-relay/internal/poller/line"
	"github.com/espnet/sensor-relay/internal/poller/modbus"
	"github.com/espnet/sensor-relay/internal/relay"
	"github.com/espnet/sensor-relay/internal/vault"
)

var runCmd = &cobra.Command{
	Use:   "run <config.yaml>",
	Short: "Run the relay daemon",
	Args:  cobra.ExactArgs(1),
	RunE:  runRelay,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRelay(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg, err := config.Load(args[0])
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	config.Normalize(cfg)
	rc := &cfg.Relay

	// --------------------
	// Unlock the credential vault before any network activity.
	// --------------------

	creds, mat, err := vault.Unlock(rc.Vault.Dir)
	if err != nil {
		// No component can make forward progress without credentials;
		// restart is the only recovery path.
		log.Fatal().Err(err).Msg("credential vault unlock failed")
	}
	log.Info().Str("ssid", creds.SSID).Msg("credential vault unlocked")

	var cipher *vault.Cipher
	if *rc.Poll.Encrypted {
		cipher = vault.NewCipher(mat)
	}

	// --------------------
	// Backend client + relay core
	// --------------------

	be, err := backend.New(backend.Config{
		BaseURL:            rc.Backend.BaseURL,
		Timeout:            time.Duration(rc.Backend.TimeoutMs) * time.Millisecond,
		PostPath:           rc.Backend.PostPath,
		DeleteRowPath:      rc.Backend.DeleteRowPath,
		DeleteEndpointPath: rc.Backend.DeleteEndpointPath,
		DevicesPath:        rc.Backend.DevicesPath,
		RowsPath:           rc.Backend.RowsPath,
	})
	if err != nil {
		return err
	}

	r := relay.New(relay.Config{
		RecoveryDepth:  rc.Queues.Recovery,
		ForwardDepth:   rc.Queues.Forward,
		RecoveryDelay:  time.Duration(rc.Recovery.DelayMs) * time.Millisecond,
		ForwardDelay:   time.Duration(rc.Forward.DelayMs) * time.Millisecond,
		MaxDeleteRetry: rc.Forward.MaxRetry,
		APIKey:         rc.Backend.APIKey,
		Location:       rc.Backend.Location,
	}, be)

	// Seed the pass counter from the backend's stored row count so the
	// value survives restarts.
	if n, err := be.RowCount(); err == nil {
		r.Stats().SeedPass(n)
	} else {
		log.Warn().Err(err).Msg("row count fetch failed, pass counter starts at zero")
	}

	// --------------------
	// Sources
	// --------------------

	r.RegisterSource(relay.OpLineExchange, line.New(line.Config{
		Port:       rc.Poll.Port,
		Timeout:    time.Duration(rc.Poll.TimeoutMs) * time.Millisecond,
		RawTimeout: time.Duration(rc.Poll.RawTimeoutMs) * time.Millisecond,
		Cipher:     cipher,
	}))

	static, err := buildStaticTargets(rc, r)
	if err != nil {
		return err
	}

	// --------------------
	// Optional mirror and metrics
	// --------------------

	if rc.Mirror.Enabled {
		pub, err := mirror.Connect(mirror.Config{
			Broker:      rc.Mirror.Broker,
			ClientID:    rc.Mirror.ClientID,
			TopicPrefix: rc.Mirror.TopicPrefix,
			Username:    rc.Mirror.Username,
			Password:    rc.Mirror.Password,
		})
		if err != nil {
			// Mirror loss only costs mirrored messages; the relay
			// keeps its primary duty.
			log.Warn().Err(err).Msg("mirror unavailable, continuing without it")
		} else {
			r.SetMirror(pub)
			defer pub.Close()
		}
	}

	if rc.Metrics.Listen != "" {
		prometheus.MustRegister(r.QueueCollectors()...)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			log.Info().Str("listen", rc.Metrics.Listen).Msg("metrics listener up")
			if err := http.ListenAndServe(rc.Metrics.Listen, mux); err != nil {
				log.Error().Err(err).Msg("metrics listener failed")
			}
		}()
	}

	// --------------------
	// Workers + poll loop
	// --------------------

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r.Start(ctx)
	go r.RunHeartbeat(ctx, time.Duration(rc.Heartbeat.IntervalMs)*time.Millisecond)

	p, err := poller.New(poller.Config{
		Interval: time.Duration(rc.Poll.IntervalMs) * time.Millisecond,
		Command:  rc.Poll.Command,
		Static:   static,
	}, be, r)
	if err != nil {
		return err
	}
	go p.Run(ctx)

	<-ctx.Done()

	// Drain the world before exiting so no worker dies mid-operation.
	log.Info().Msg("shutdown requested, draining queues")
	if !r.Quiesce(5 * time.Second) {
		log.Warn().Msg("exiting with queued work still pending")
	}
	return nil
}

func buildStaticTargets(rc *config.RelayConfig, r *relay.Relay) ([]poller.Target, error) {
	var static []poller.Target
	var mb *modbus.Source

	for _, ep := range rc.Endpoints {
		switch ep.Driver {
		case "modbus":
			if mb == nil {
				mb = modbus.New(time.Duration(rc.Poll.TimeoutMs) * time.Millisecond)
				r.RegisterSource(relay.OpModbusPoll, mb)
			}
			if err := mb.Register(ep.Address, modbus.Geometry{
				UnitID:     ep.UnitID,
				Register:   ep.Register,
				Quantity:   ep.Quantity,
				Scale:      ep.Scale,
				SensorCode: ep.SensorCode,
			}); err != nil {
				return nil, err
			}
			static = append(static, poller.Target{Name: ep.Name, Endpoint: ep.Address, Op: relay.OpModbusPoll})
		default:
			static = append(static, poller.Target{Name: ep.Name, Endpoint: ep.Address, Op: relay.OpLineExchange})
		}
	}
	return static, nil
}
