// Command dht-node reads a DHT11 sensor and publishes readings over MQTT,
// HTTP and an optional OLED, with a remotely controlled status LED.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/dht-node/internal/config"
	"github.com/sweeney/dht-node/internal/dht11"
	"github.com/sweeney/dht-node/internal/display"
	"github.com/sweeney/dht-node/internal/gpio"
	"github.com/sweeney/dht-node/internal/led"
	"github.com/sweeney/dht-node/internal/logging"
	"github.com/sweeney/dht-node/internal/logic"
	"github.com/sweeney/dht-node/internal/mqtt"
	"github.com/sweeney/dht-node/internal/sampler"
	"github.com/sweeney/dht-node/internal/status"
	"github.com/sweeney/dht-node/internal/web"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (empty: defaults plus DHTNODE_* environment)")
	printReading := flag.Bool("print-reading", false, "Read the sensor once, print the result and exit")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	if err := run(cfg, *printReading, log); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, printReading bool, log *slog.Logger) error {
	// Initialize the sensor line
	line, err := openLine(cfg.Sensor)
	if err != nil {
		return err
	}
	defer line.Close()

	sensor := dht11.New(line,
		dht11.WithName(cfg.Sensor.PinName()),
		dht11.WithLogger(log.With("component", "dht11")),
	)
	if err := sensor.Init(); err != nil {
		return err
	}

	// Print reading mode
	if printReading {
		r, err := sensor.Read(cfg.Sensor.Attempts)
		if err != nil {
			return fmt.Errorf("read sensor: %w", err)
		}
		fmt.Println(r)
		return nil
	}

	// Status LED
	out, err := openLED(cfg)
	if err != nil {
		return err
	}
	ctl, err := led.New(out, log.With("component", "led"))
	if err != nil {
		return fmt.Errorf("init led: %w", err)
	}
	defer ctl.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		Pin:         cfg.Sensor.PinName(),
		Backend:     cfg.Sensor.Backend,
		IntervalMs:  cfg.Sensor.Interval.Milliseconds(),
		Attempts:    cfg.Sensor.Attempts,
		LostAfter:   cfg.Sensor.LostAfter,
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		Broker:      cfg.MQTT.Broker,
		HTTPAddr:    cfg.HTTP.Addr,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	ctl.OnChange(tracker.SetLED)

	// Initialize MQTT
	var publisher mqtt.Publisher = nopPublisher{}
	var mqttStatus mqtt.ConnectionStatus
	if cfg.MQTT.Broker != "" {
		rp, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker:     cfg.MQTT.Broker,
			ClientID:   cfg.MQTT.ClientID,
			Username:   cfg.MQTT.Username,
			Password:   cfg.MQTT.Password,
			BufferSize: cfg.MQTT.BufferSize,
		}, log.With("component", "mqtt"))
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer rp.Close()
		rp.SetCommandHandler(ledCommandHandler(ctl, rp, time.Now, log))
		publisher, mqttStatus = rp, rp
	}
	ctl.OnChange(func(on bool) {
		if err := publisher.PublishLED(on, time.Now()); err != nil {
			log.Warn("failed to publish led state", "error", err)
		}
	})
	if err := publisher.PublishLED(ctl.State(), time.Now()); err != nil {
		log.Warn("failed to publish led state", "error", err)
	}

	// Publish startup event with full status snapshot
	if mqttStatus != nil {
		tracker.SetMQTTConnected(mqttStatus.IsConnected())
	}
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Warn("failed to publish startup event", "error", err)
	} else {
		log.Info("published startup event")
	}

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, ctl, log.With("component", "web"))
		ctl.OnChange(srv.BroadcastLED)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http server error", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info("http status server listening", "addr", cfg.HTTP.Addr)
	}

	// Optional OLED
	var scr screen
	if cfg.Display.Enabled {
		sink, err := display.OpenSSD1306(cfg.Display.Bus, cfg.Display.Width, cfg.Display.Height)
		if err != nil {
			log.Warn("display unavailable", "error", err)
		} else {
			disp := display.New(sink, log.With("component", "display"))
			defer disp.Close()
			ctl.OnChange(func(bool) {
				if err := disp.Show(tracker.Snapshot()); err != nil {
					log.Warn("display update failed", "error", err)
				}
			})
			if err := disp.Show(tracker.Snapshot()); err != nil {
				log.Warn("display update failed", "error", err)
			}
			scr = disp
		}
	}

	log.Info("started",
		"pin", cfg.Sensor.PinName(),
		"backend", cfg.Sensor.Backend,
		"interval", cfg.Sensor.Interval,
		"broker", cfg.MQTT.Broker,
		"heartbeat", cfg.Heartbeat)

	// Sampler owns the sensor from here on
	ctx, cancel := context.WithCancel(context.Background())
	ticker := time.NewTicker(cfg.Sensor.Interval)
	results := make(chan sampler.Result)
	smp := sampler.New(sensor, cfg.Sensor.Attempts, time.Now, log.With("component", "sampler"))
	go smp.Run(ctx, ticker.C, results)
	defer func() {
		ticker.Stop()
		cancel()
		// Wait for an in-flight read before the line is released.
		for range results {
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(results, publisher, mqttStatus, tracker, scr, cfg.Sensor.LostAfter, cfg.Heartbeat, time.Now, sigCh, log)
}

// screen is the part of the display runLoop needs.
type screen interface {
	Show(snap status.Snapshot) error
}

func runLoop(results <-chan sampler.Result, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, scr screen, lostAfter int, heartbeat time.Duration, now func() time.Time, sig <-chan os.Signal, log *slog.Logger) error {
	startTime := now()
	monitor := logic.NewMonitor(lostAfter, startTime)

	for {
		select {
		case s := <-sig:
			log.Info("shutting down", "signal", s.String())
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				snap := tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Warn("failed to publish shutdown event", "error", err)
			} else {
				log.Info("published shutdown event")
			}
			return nil

		case res, ok := <-results:
			if !ok {
				return errors.New("sampler stopped")
			}

			events := monitor.Process(logic.Sample{
				Time:    res.Time,
				Reading: res.Reading,
				Err:     res.Err,
			})

			for _, event := range events {
				logEvent(log, event)
				if err := publisher.Publish(event); err != nil {
					log.Warn("publish error", "event", string(event.Type), "error", err)
					// Don't crash on publish failure
				}
			}

			// Update status tracker for HTTP/display consumers
			if tracker != nil {
				tracker.Update(monitor)
				if res.Err != nil {
					tracker.SetError(res.Err, res.Time)
				}
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
			}

			// Check for heartbeat
			if hb := monitor.CheckHeartbeat(now(), heartbeat); hb != nil {
				log.Info("heartbeat",
					"uptime", hb.Uptime,
					"readings", hb.Counts.Readings,
					"failures", hb.Counts.Failures)

				hbEvent := mqtt.SystemEvent{
					Timestamp: hb.Timestamp,
					Event:     "HEARTBEAT",
				}
				if tracker != nil {
					// Refresh network info for heartbeat
					if net := readNetworkInfo(); net != nil {
						tracker.SetNetwork(net)
					}
					snap := tracker.Snapshot()
					hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.Warn("heartbeat publish error", "error", err)
				}
			}

			if scr != nil && tracker != nil {
				if err := scr.Show(tracker.Snapshot()); err != nil {
					log.Warn("display update failed", "error", err)
				}
			}
		}
	}
}

func logEvent(log *slog.Logger, e logic.Event) {
	switch e.Type {
	case logic.EventReading:
		log.Info("reading", "temperature", e.Reading.Temperature, "humidity", e.Reading.Humidity)
	case logic.EventSensorRecovered:
		log.Info("sensor recovered", "after_failures", e.Failures)
	case logic.EventSensorLost:
		log.Error("sensor lost", "kind", string(e.Kind), "failures", e.Failures, "error", e.Error)
	default:
		log.Warn("read failed", "kind", string(e.Kind), "failures", e.Failures, "error", e.Error)
	}
}

// ledCommandHandler applies LED commands received over MQTT. State changes
// are published by the controller's observers; STATUS and rejected
// commands republish the current state so the sender gets an answer.
func ledCommandHandler(ctl *led.Controller, pub mqtt.Publisher, now func() time.Time, log *slog.Logger) mqtt.CommandHandler {
	return func(raw string) {
		cmd, err := led.ParseCommand(raw)
		if err != nil {
			log.Warn("mqtt unknown led command", "command", raw)
			pub.PublishLED(ctl.State(), now())
			return
		}
		if _, err := ctl.Apply(cmd); err != nil {
			log.Error("mqtt led command failed", "command", string(cmd), "error", err)
			pub.PublishLED(ctl.State(), now())
			return
		}
		if cmd == led.CommandStatus {
			pub.PublishLED(ctl.State(), now())
		}
	}
}

// lineCloser is a sensor line that holds OS resources.
type lineCloser interface {
	dht11.Line
	io.Closer
}

func openLine(cfg config.SensorConfig) (lineCloser, error) {
	switch cfg.Backend {
	case config.BackendPeriph:
		l, err := gpio.OpenPeriphLine(cfg.PinName())
		if err != nil {
			return nil, &dht11.InitError{Pin: cfg.PinName(), Err: err}
		}
		return l, nil
	default:
		l, err := gpio.NewRealLine(cfg.Chip, cfg.Pin)
		if err != nil {
			return nil, &dht11.InitError{Pin: cfg.PinName(), Err: err}
		}
		return l, nil
	}
}

func openLED(cfg *config.Config) (gpio.Output, error) {
	if !cfg.LED.Enabled {
		return gpio.Discard, nil
	}
	switch cfg.Sensor.Backend {
	case config.BackendPeriph:
		o, err := gpio.OpenPeriphOutput(cfg.LED.PinName())
		if err != nil {
			return nil, fmt.Errorf("open led %s: %w", cfg.LED.PinName(), err)
		}
		return o, nil
	default:
		o, err := gpio.NewRealOutput(cfg.Sensor.Chip, cfg.LED.Pin)
		if err != nil {
			return nil, fmt.Errorf("open led %s: %w", cfg.LED.PinName(), err)
		}
		return o, nil
	}
}

// nopPublisher stands in when MQTT is disabled.
type nopPublisher struct{}

func (nopPublisher) Publish(logic.Event) error            { return nil }
func (nopPublisher) PublishSystem(mqtt.SystemEvent) error { return nil }
func (nopPublisher) PublishLED(bool, time.Time) error     { return nil }
func (nopPublisher) Close() error                         { return nil }

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
