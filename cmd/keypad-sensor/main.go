// Command keypad-sensor decodes an analog resistor-ladder keypad, drives a lap
// timer from it and publishes key events to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sweeney/keypad-sensor/internal/adc"
	"github.com/sweeney/keypad-sensor/internal/chrono"
	"github.com/sweeney/keypad-sensor/internal/config"
	"github.com/sweeney/keypad-sensor/internal/keypad"
	"github.com/sweeney/keypad-sensor/internal/led"
	"github.com/sweeney/keypad-sensor/internal/mqtt"
	"github.com/sweeney/keypad-sensor/internal/status"
	"github.com/sweeney/keypad-sensor/internal/stopwatch"
	"github.com/sweeney/keypad-sensor/internal/web"
)

func main() {
	fs, opts := newFlagSet()
	fs.Parse(os.Args[1:])

	cfg, err := loadConfig(opts.configPath, fs)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	if err := run(cfg, opts.printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

type options struct {
	configPath string
	printState bool
}

// newFlagSet declares the command line. Defaults shown in -help come from
// config.Default; only flags given explicitly override the config file.
func newFlagSet() (*flag.FlagSet, *options) {
	def := config.Default()
	opts := &options{}

	fs := flag.NewFlagSet("keypad-sensor", flag.ExitOnError)
	fs.StringVar(&opts.configPath, "config", "", "YAML config file (built-in defaults when empty)")
	fs.BoolVar(&opts.printState, "print-state", false, "Print the currently pressed key and exit")
	fs.String("adc", def.ADC.Source, "ADC source: iio:<path>[@fullscale] or serial:<device>[@baud]")
	fs.String("broker", def.MQTT.Broker, "MQTT broker address")
	fs.String("http", def.HTTP.Addr, "HTTP status address (empty to disable)")
	fs.Duration("heartbeat", def.Heartbeat(), "Heartbeat interval (0 to disable)")
	fs.Int("led-pin", def.LED.Pin, "BCM pin number for the indicator LED (negative to disable)")
	fs.String("payload", def.MQTT.Payload, "Key event payload encoding: json or cbor")
	fs.Duration("tick", def.Tick(), "Keypad polling tick")
	return fs, opts
}

// loadConfig reads the config file (if any), applies explicitly set flags
// and validates the result.
func loadConfig(path string, fs *flag.FlagSet) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return config.Config{}, err
		}
	}
	applyFlags(&cfg, fs)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyFlags(cfg *config.Config, fs *flag.FlagSet) {
	fs.Visit(func(f *flag.Flag) {
		v := f.Value.(flag.Getter).Get()
		switch f.Name {
		case "adc":
			cfg.ADC.Source = v.(string)
		case "broker":
			cfg.MQTT.Broker = v.(string)
		case "http":
			cfg.HTTP.Addr = v.(string)
		case "heartbeat":
			cfg.MQTT.HeartbeatMS = int(v.(time.Duration) / time.Millisecond)
		case "led-pin":
			cfg.LED.Pin = v.(int)
		case "payload":
			cfg.MQTT.Payload = v.(string)
		case "tick":
			cfg.Keypad.TickMS = int(v.(time.Duration) / time.Millisecond)
		}
	})
}

func run(cfg config.Config, printState bool) error {
	// Initialize ADC
	reader, err := adc.Open(cfg.ADC.Source, cfg.Keypad.MaxRaw)
	if err != nil {
		return fmt.Errorf("init adc: %w", err)
	}
	defer reader.Close()

	decoder, err := keypad.New(reader, cfg.KeypadConfig(), time.Now())
	if err != nil {
		return fmt.Errorf("init keypad: %w", err)
	}

	// Print state mode
	if printState {
		k, err := decoder.PressedKey()
		if err != nil {
			return fmt.Errorf("read adc: %w", err)
		}
		fmt.Printf("key: %s\n", keyLabel(k, nameOf(k, cfg.KeyNames())))
		return nil
	}

	// Initialize MQTT
	enc, err := mqtt.ParseEncoding(cfg.MQTT.Payload)
	if err != nil {
		return err
	}
	publisher := mqtt.NewRealPublisher(cfg.MQTT.Broker, enc)
	defer publisher.Close()

	var indicator led.Indicator = led.Nop{}
	if cfg.LED.Pin >= 0 {
		ri, err := led.NewRealIndicator(cfg.LED.Pin)
		if err != nil {
			return fmt.Errorf("init led: %w", err)
		}
		indicator = ri
	}
	defer indicator.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	kc := cfg.KeypadConfig()
	tracker := status.NewTracker(time.Now(), status.Config{
		TickMs:          cfg.Tick().Milliseconds(),
		LongPressMs:     kc.LongPress.Milliseconds(),
		DebounceMs:      kc.Debounce.Milliseconds(),
		CheckIntervalMs: kc.CheckInterval.Milliseconds(),
		HeartbeatMs:     cfg.Heartbeat().Milliseconds(),
		Broker:          cfg.MQTT.Broker,
		HTTPAddr:        cfg.HTTP.Addr,
		ADC:             cfg.ADC.Source,
		Keys:            cfg.KeyNames(),
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	// Start HTTP status server and websocket hub
	var bc broadcaster
	if cfg.HTTP.Addr != "" {
		var hub *web.Hub
		if cfg.HTTP.WS {
			hub = web.NewHub(0, 0)
			bc = hub
			g.Go(func() error {
				hub.Run(gctx)
				return nil
			})
		}
		srv := web.New(cfg.HTTP.Addr, tracker, hub)
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("http server error: %v", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return srv.Shutdown(context.Background())
		})
		log.Printf("http status server listening on %s", cfg.HTTP.Addr)
	}

	ctl := chrono.New(cfg.Roles(), stopwatch.New(cfg.Chrono.Laps))

	log.Printf("started: adc=%s keys=%d long=%v debounce=%v broker=%s heartbeat=%v",
		cfg.ADC.Source, decoder.Keys(), kc.LongPress, kc.Debounce, cfg.MQTT.Broker, cfg.Heartbeat())

	ticker := time.NewTicker(cfg.Tick())
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	g.Go(func() error {
		defer cancel()
		return runLoop(decoder, ctl, publisher, publisher, tracker, indicator, bc, cfg.Heartbeat(), time.Now, ticker.C, sigCh)
	})
	return g.Wait()
}

// broadcaster receives pre-serialized key event frames for live clients.
type broadcaster interface {
	Broadcast(msg []byte)
}

func runLoop(decoder *keypad.Decoder, ctl *chrono.Controller, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, indicator led.Indicator, bc broadcaster, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	startTime := now()
	decoder.Clear(startTime)
	sw := ctl.Stopwatch()
	lastHeartbeat := startTime
	ledFailed := false

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}
			t := now()
			snap := tracker.Snapshot()
			event := mqtt.SystemEvent{
				Timestamp:  t,
				Event:      "SHUTDOWN",
				Reason:     signalName,
				Retained:   true,
				RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", signalName),
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			t := now()
			if ev := decoder.Poll(t); !ev.IsNone() {
				handleEvent(ev, t, ctl, publisher, tracker, bc)
			}

			// Update status tracker for HTTP/LED consumers
			key, st := decoder.Saved()
			tracker.Update(key, st, decoder.ReadErrors())
			tracker.SetStopwatch(stopwatchView(sw, t))
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}

			if err := indicator.Set(st != keypad.StatusInactive || sw.Running()); err != nil {
				if !ledFailed {
					log.Printf("led error: %v", err)
				}
				ledFailed = true
			} else {
				ledFailed = false
			}

			// Check for heartbeat
			if heartbeat > 0 && t.Sub(lastHeartbeat) >= heartbeat {
				lastHeartbeat = t
				// Refresh network info for heartbeat
				if net := readNetworkInfo(); net != nil {
					tracker.SetNetwork(net)
				}
				snap := tracker.Snapshot()
				log.Printf("heartbeat: uptime=%v pressed=%d released=%d long_pressed=%d long_released=%d read_errors=%d",
					t.Sub(startTime), snap.Counts.Pressed, snap.Counts.Released,
					snap.Counts.LongPressed, snap.Counts.LongReleased, snap.ReadErrors)

				hbEvent := mqtt.SystemEvent{
					Timestamp:  t,
					Event:      "HEARTBEAT",
					RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}
		}
	}
}

// handleEvent applies ev to the stopwatch and reports it everywhere.
func handleEvent(ev keypad.Event, t time.Time, ctl *chrono.Controller, publisher mqtt.Publisher, tracker *status.Tracker, bc broadcaster) {
	action := ctl.Handle(ev, t)
	name := tracker.Snapshot().KeyName(ev.Key)

	log.Printf("event: %s key=%s action=%s", ev.Kind, keyLabel(ev.Key, name), actionString(action))

	if err := publisher.Publish(mqtt.KeyEvent{
		Timestamp: t,
		Kind:      ev.Kind,
		Key:       ev.Key,
		Name:      name,
		Action:    string(action),
	}); err != nil {
		log.Printf("publish error: %v", err)
		// Don't crash on publish failure
	}

	last := status.LastEvent{At: t, Kind: ev.Kind, Key: ev.Key, Name: name, Action: string(action)}
	tracker.RecordEvent(last)

	if bc != nil {
		msg, err := web.FormatKeyEvent(last)
		if err != nil {
			log.Printf("ws encode error: %v", err)
			return
		}
		bc.Broadcast(msg)
	}
}

func stopwatchView(sw *stopwatch.Stopwatch, now time.Time) status.StopwatchView {
	return status.StopwatchView{
		Running: sw.Running(),
		Current: sw.Time(now),
		Lap:     sw.CurrentLap(),
		Laps:    sw.Laps(),
	}
}

func actionString(a chrono.Action) string {
	if a == chrono.ActionNone {
		return "none"
	}
	return string(a)
}

// keyLabel formats k with its configured name, "none" for NoKey.
func keyLabel(k keypad.Key, name string) string {
	if k == keypad.NoKey {
		return "none"
	}
	if name != "" {
		return fmt.Sprintf("%d (%s)", k, name)
	}
	return fmt.Sprintf("%d", k)
}

// nameOf returns the configured name of k, or "".
func nameOf(k keypad.Key, names []string) string {
	if i := int(k) - 1; i >= 0 && i < len(names) {
		return names[i]
	}
	return ""
}

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
