// Command crate-controller drives a motorised crate prop from GPIO inputs,
// HTTP commands and MQTT commands.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sweeney/crate-controller/internal/command"
	"github.com/sweeney/crate-controller/internal/config"
	"github.com/sweeney/crate-controller/internal/crate"
	"github.com/sweeney/crate-controller/internal/discovery"
	"github.com/sweeney/crate-controller/internal/gpio"
	"github.com/sweeney/crate-controller/internal/journal"
	"github.com/sweeney/crate-controller/internal/mqtt"
	"github.com/sweeney/crate-controller/internal/status"
	"github.com/sweeney/crate-controller/internal/web"
)

// commandTimeout bounds how long an MQTT command waits for the control loop.
const commandTimeout = 5 * time.Second

// shutdownTimeout bounds how long in-flight HTTP requests may take on exit.
const shutdownTimeout = 3 * time.Second

type options struct {
	cfg          config.Config
	printState   bool
	printJournal string
	wsBroker     string
}

func main() {
	opts, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}

	if opts.printJournal != "" {
		if err := printJournal(os.Stdout, opts.printJournal); err != nil {
			log.Fatalf("fatal: %v", err)
		}
		return
	}

	if err := run(opts); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// parseFlags builds the effective configuration: defaults, then the --config
// file, then any flag given explicitly on the command line.
func parseFlags(fs *flag.FlagSet, args []string) (options, error) {
	fc := config.Default()

	configPath := fs.String("config", "", "YAML config file")
	fs.StringVar(&fc.Variant, "variant", fc.Variant, `Controller variant ("stop" or "toggle")`)
	fs.StringVar(&fc.Chip, "chip", fc.Chip, "GPIO chip name")
	fs.DurationVar(&fc.Poll, "poll", fc.Poll, "GPIO polling interval")
	fs.DurationVar(&fc.Debounce, "debounce", fc.Debounce, "Debounce duration")
	fs.DurationVar(&fc.MoveTimeout, "move-timeout", fc.MoveTimeout, "Assumed duration of a crate move")
	fs.StringVar(&fc.Broker, "broker", fc.Broker, "MQTT broker address")
	fs.DurationVar(&fc.Heartbeat, "heartbeat", fc.Heartbeat, "Heartbeat interval (0 to disable)")
	fs.StringVar(&fc.HTTP, "http", fc.HTTP, "HTTP command and status address")
	fs.BoolVar(&fc.MDNS.Enabled, "mdns", fc.MDNS.Enabled, "Advertise the HTTP surface over mDNS")
	fs.StringVar(&fc.MDNS.Instance, "mdns-instance", fc.MDNS.Instance, "mDNS instance name")
	fs.StringVar(&fc.Journal, "journal", fc.Journal, "CBOR event journal path (empty to disable)")
	fs.IntVar(&fc.Pins.Forward, "pin-forward", fc.Pins.Forward, "BCM pin for the forward (close) relay")
	fs.IntVar(&fc.Pins.Reverse, "pin-reverse", fc.Pins.Reverse, "BCM pin for the reverse (open) relay")
	fs.IntVar(&fc.Pins.DrawerLock, "pin-drawer-lock", fc.Pins.DrawerLock, "BCM pin for the drawer lock relay")
	fs.IntVar(&fc.Pins.Spare, "pin-spare", fc.Pins.Spare, "BCM pin for the spare relay")
	fs.IntVar(&fc.Pins.Lock, "pin-lock", fc.Pins.Lock, "BCM pin for the lock sensor")
	fs.IntVar(&fc.Pins.Override, "pin-override", fc.Pins.Override, "BCM pin for the override button")
	fs.IntVar(&fc.Pins.Reset, "pin-reset", fc.Pins.Reset, "BCM pin for the reset button")

	var opts options
	fs.BoolVar(&opts.printState, "print-state", false, "Print current input levels and exit")
	fs.StringVar(&opts.printJournal, "print-journal", "", "Print a CBOR event journal and exit")
	ws := fs.String("ws-broker", "=broker", `MQTT websocket URL for live UI ("=broker" derives from --broker, "off" disables)`)

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return options{}, err
		}
		cfg = loaded
	}

	fs.Visit(func(f *flag.Flag) {
		applyFlag(&cfg, fc, f.Name)
	})

	if err := cfg.Validate(); err != nil {
		return options{}, err
	}

	opts.cfg = cfg
	opts.wsBroker = resolveWSBroker(*ws, cfg.Broker)
	return opts, nil
}

// applyFlag copies the value of one explicitly set flag from fc into cfg.
func applyFlag(cfg *config.Config, fc config.Config, name string) {
	switch name {
	case "variant":
		cfg.Variant = fc.Variant
	case "chip":
		cfg.Chip = fc.Chip
	case "poll":
		cfg.Poll = fc.Poll
	case "debounce":
		cfg.Debounce = fc.Debounce
	case "move-timeout":
		cfg.MoveTimeout = fc.MoveTimeout
	case "broker":
		cfg.Broker = fc.Broker
	case "heartbeat":
		cfg.Heartbeat = fc.Heartbeat
	case "http":
		cfg.HTTP = fc.HTTP
	case "mdns":
		cfg.MDNS.Enabled = fc.MDNS.Enabled
	case "mdns-instance":
		cfg.MDNS.Instance = fc.MDNS.Instance
	case "journal":
		cfg.Journal = fc.Journal
	case "pin-forward":
		cfg.Pins.Forward = fc.Pins.Forward
	case "pin-reverse":
		cfg.Pins.Reverse = fc.Pins.Reverse
	case "pin-drawer-lock":
		cfg.Pins.DrawerLock = fc.Pins.DrawerLock
	case "pin-spare":
		cfg.Pins.Spare = fc.Pins.Spare
	case "pin-lock":
		cfg.Pins.Lock = fc.Pins.Lock
	case "pin-override":
		cfg.Pins.Override = fc.Pins.Override
	case "pin-reset":
		cfg.Pins.Reset = fc.Pins.Reset
	}
}

func run(opts options) error {
	cfg := opts.cfg
	variant, err := crate.ParseVariant(cfg.Variant)
	if err != nil {
		return err
	}

	// Initialize GPIO
	board, err := gpio.NewRealBoard(cfg.Chip, cfg.Pins)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	// Releases every relay, including on a fatal error further down.
	defer board.Close()

	// Print state mode
	if opts.printState {
		sample, err := board.Read()
		if err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		fmt.Println(formatSample(sample))
		return nil
	}

	queue := command.NewQueue(command.NewTable(variant))

	// Initialize MQTT
	publisher, err := mqtt.NewRealPublisher(cfg.Broker, func(path string) (string, error) {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		resp, err := queue.Submit(ctx, path)
		return resp.Body, err
	})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		Variant:       string(variant),
		PollMs:        cfg.Poll.Milliseconds(),
		DebounceMs:    cfg.Debounce.Milliseconds(),
		MoveTimeoutMs: cfg.MoveTimeout.Milliseconds(),
		HeartbeatMs:   cfg.Heartbeat.Milliseconds(),
		Broker:        cfg.Broker,
		HTTPPort:      cfg.HTTP,
		WSBroker:      opts.wsBroker,
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

	var jw *journal.Writer
	if cfg.Journal != "" {
		jw, err = journal.Open(cfg.Journal)
		if err != nil {
			return err
		}
		defer jw.Close()
		log.Printf("journal: %s (session %s)", cfg.Journal, jw.Session())
	}

	// Start HTTP command and status server
	srv := web.New(cfg.HTTP, tracker, queue)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()
	log.Printf("http server listening on %s", cfg.HTTP)

	if cfg.MDNS.Enabled {
		adv := discovery.NewAdvertiser()
		if err := advertise(adv, cfg, variant, queue.Table().Paths()); err != nil {
			log.Printf("mdns: %v", err)
		} else {
			defer adv.Stop()
			log.Printf("mdns: advertising %q as %s", cfg.MDNS.Instance, discovery.ServiceType)
		}
	}

	log.Printf("started: variant=%s poll=%v debounce=%v move_timeout=%v broker=%s heartbeat=%v",
		variant, cfg.Poll, cfg.Debounce, cfg.MoveTimeout, cfg.Broker, cfg.Heartbeat)

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	lc := loopConfig{
		variant:     variant,
		debounce:    cfg.Debounce,
		moveTimeout: cfg.MoveTimeout,
		heartbeat:   cfg.Heartbeat,
		board:       board,
		publisher:   publisher,
		mqttStatus:  publisher,
		tracker:     tracker,
		queue:       queue,
	}
	if jw != nil {
		lc.journal = jw
	}
	err = runLoop(lc, time.Now, ticker.C, sigCh)

	// A second signal now terminates the process.
	signal.Stop(sigCh)
	shutdown(board, srv)
	return err
}

// shutdown releases the relays before tearing down the network, so a slow
// HTTP client cannot keep the crate driven.
func shutdown(board io.Closer, srv interface{ Shutdown(context.Context) error }) {
	if err := board.Close(); err != nil {
		log.Printf("gpio close: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
}

func advertise(adv *discovery.Advertiser, cfg config.Config, variant crate.Variant, paths []string) error {
	port, err := discovery.PortFromAddr(cfg.HTTP)
	if err != nil {
		return err
	}
	return adv.Start(discovery.Info{
		Instance: cfg.MDNS.Instance,
		Port:     port,
		Variant:  string(variant),
		Paths:    paths,
	})
}

func printJournal(w io.Writer, path string) error {
	records, err := journal.ReadFile(path)
	for _, rec := range records {
		fmt.Fprintln(w, rec.String())
	}
	return err
}

// formatSample renders raw input levels using the command surface's words.
func formatSample(s gpio.Sample) string {
	lock := command.BodyUnlocked
	if s.Lock {
		lock = command.BodyLocked
	}
	reset := command.BodyNotPressed
	if !s.Reset {
		reset = command.BodyPressed
	}
	override := "released"
	if !s.Override {
		override = "pressed"
	}
	return fmt.Sprintf("lock: %s, override: %s, reset: %s",
		strings.TrimRight(lock, "\r\n"), override, strings.TrimRight(reset, "\r\n"))
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

// networkEnvFile is re-read on every call so heartbeats pick up changes
// pi-helper makes after startup. Values missing from it fall back to the
// process environment.
var networkEnvFile = "/run/pi-helper.env"

func readNetworkInfo() *status.NetworkInfo {
	get := os.Getenv
	if env, err := godotenv.Read(networkEnvFile); err == nil {
		get = func(key string) string {
			if v, ok := env[key]; ok {
				return v
			}
			return os.Getenv(key)
		}
	}

	s := get(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       get(envNetworkType),
		IP:         get(envNetworkIP),
		Status:     s,
		Gateway:    get(envNetworkGateway),
		WifiStatus: get(envNetworkWifiStatus),
		SSID:       get(envNetworkWifiSSID),
	}
}

// resolveWSBroker converts the --ws-broker flag value into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; empty disables.
func resolveWSBroker(ws, broker string) string {
	if ws == "off" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	u, err := url.Parse(broker)
	if err != nil {
		log.Printf("ws-broker: cannot parse --broker %q: %v", broker, err)
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}
