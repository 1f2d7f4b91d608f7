// Command ac-bridge connects a Midea air conditioner on a serial port to an
// MQTT broker and serves a small diagnostics page.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sweeney/ac-mqtt-bridge/internal/acserial"
	"github.com/sweeney/ac-mqtt-bridge/internal/bridge"
	"github.com/sweeney/ac-mqtt-bridge/internal/gpio"
	"github.com/sweeney/ac-mqtt-bridge/internal/identity"
	"github.com/sweeney/ac-mqtt-bridge/internal/logging"
	"github.com/sweeney/ac-mqtt-bridge/internal/mqtt"
	"github.com/sweeney/ac-mqtt-bridge/internal/netinfo"
	"github.com/sweeney/ac-mqtt-bridge/internal/status"
	"github.com/sweeney/ac-mqtt-bridge/internal/store"
	"github.com/sweeney/ac-mqtt-bridge/internal/sysinfo"
	"github.com/sweeney/ac-mqtt-bridge/internal/web"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "1.0.0"

const (
	envPrefix      = "ACBRIDGE"
	pollTick       = time.Second
	restartDelay   = 500 * time.Millisecond
	shutdownWindow = 5 * time.Second
)

// settings are the runtime options after flags, environment and config file
// have been merged.
type settings struct {
	SerialPort string
	Baud       int
	HTTPAddr   string
	DataDir    string
	Iface      string
	LogLevel   string
	LEDPin     int
	Prefix     string
	MQTTServer string
	MQTTPort   string
}

func main() {
	if err := newRootCmd(viper.New()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "ac-bridge",
		Short:         "Bridge a Midea air conditioner to MQTT",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return loadSettings(v, cfgFile)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), readSettings(v))
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&cfgFile, "config", "", "YAML config file")
	f.String("serial-port", "/dev/ttyAMA0", `serial device for the AC unit ("auto" picks the first USB adapter)`)
	f.Int("serial-baud", acserial.DefaultBaud, "serial baud rate")
	f.String("http", ":80", "HTTP diagnostics address (empty to disable)")
	f.String("data-dir", "/var/lib/ac-bridge", "directory holding config.json")
	f.String("iface", netinfo.DefaultInterface, "network interface to watch (empty for any)")
	f.String("log-level", logging.InfoLevel, "debug, info, warn or error")
	f.Int("led-pin", gpio.DisabledPin, "BCM pin of the connection LED (-1 to disable)")
	f.String("prefix", identity.DefaultPrefix(), "hostname prefix")
	f.String("mqtt-server", "", "provision the broker host (saved to config.json)")
	f.String("mqtt-port", "", "provision the broker port (saved to config.json)")

	for key, flag := range map[string]string{
		"serial.port":   "serial-port",
		"serial.baud":   "serial-baud",
		"http.addr":     "http",
		"data.dir":      "data-dir",
		"net.iface":     "iface",
		"log.level":     "log-level",
		"led.pin":       "led-pin",
		"device.prefix": "prefix",
		"mqtt.server":   "mqtt-server",
		"mqtt.port":     "mqtt-port",
	} {
		// Lookup cannot return nil for flags registered above.
		_ = v.BindPFlag(key, f.Lookup(flag))
	}

	root.AddCommand(newIdentityCmd(v))
	return root
}

// newIdentityCmd prints the derived hostname and topics and exits.
func newIdentityCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "identity",
		Short: "Print the device hostname and MQTT topics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := deviceIdentity(readSettings(v))
			if err != nil {
				return err
			}
			printIdentity(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

func loadSettings(v *viper.Viper, cfgFile string) error {
	// .env is optional.
	_ = godotenv.Load()

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile == "" {
		return nil
	}
	v.SetConfigFile(cfgFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", cfgFile, err)
	}
	return nil
}

func readSettings(v *viper.Viper) settings {
	return settings{
		SerialPort: v.GetString("serial.port"),
		Baud:       v.GetInt("serial.baud"),
		HTTPAddr:   v.GetString("http.addr"),
		DataDir:    v.GetString("data.dir"),
		Iface:      v.GetString("net.iface"),
		LogLevel:   v.GetString("log.level"),
		LEDPin:     v.GetInt("led.pin"),
		Prefix:     v.GetString("device.prefix"),
		MQTTServer: v.GetString("mqtt.server"),
		MQTTPort:   v.GetString("mqtt.port"),
	}
}

func deviceIdentity(s settings) (identity.Identity, error) {
	prefix := s.Prefix
	if prefix == "" {
		prefix = identity.DefaultPrefix()
	}
	return identity.New(identity.Hostname(prefix, identity.HardwareID(s.Iface)))
}

func printIdentity(w io.Writer, id identity.Identity) {
	fmt.Fprintf(w, "hostname: %s\n", id.Hostname)
	for _, t := range id.Topics.All() {
		fmt.Fprintf(w, "topic:    %s\n", t)
	}
}

// brokerConfig loads the persisted broker address and applies any
// provisioning overrides, saving them when they change it.
func brokerConfig(st *store.Store, s settings, log *logging.Logger) store.BrokerConfig {
	cfg := st.Load()
	changed, err := store.Provision(&cfg, s.MQTTServer, s.MQTTPort)
	if err != nil {
		log.Warnw("ignoring broker override", "err", err)
		return cfg
	}
	if changed {
		if err := st.Save(cfg); err != nil {
			log.Warnw("saving broker config failed", "err", err)
		} else {
			log.Infow("broker config saved", "server", cfg.Server, "port", cfg.Port)
		}
	}
	return cfg
}

func openLED(pin int, log *logging.Logger) gpio.Indicator {
	if pin == gpio.DisabledPin {
		return gpio.Nop{}
	}
	led, err := gpio.NewRealIndicator(pin)
	if err != nil {
		log.Warnw("connection LED unavailable", "pin", pin, "err", err)
		return gpio.Nop{}
	}
	return led
}

func run(parent context.Context, s settings) error {
	log := logging.New(s.LogLevel)
	defer log.Sync()

	id, err := deviceIdentity(s)
	if err != nil {
		return fmt.Errorf("derive identity: %w", err)
	}

	st := store.NewOS(s.DataDir, log.Named("store"))
	broker := brokerConfig(st, s, log)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)

	client := mqtt.NewRealClient(broker.Address(), log.Named("mqtt"))

	adapter := acserial.NewAdapter(log.Named("acserial"))
	adapter.Begin(ctx, acserial.PortOpener(s.SerialPort, s.Baud))
	defer func() {
		stop()
		adapter.Wait()
	}()

	led := openLED(s.LEDPin, log)
	defer led.Close()

	netSrc := netinfo.NewReader(s.Iface)
	tracker := status.NewTracker(time.Now(), status.Config{
		Hostname:   id.Hostname,
		Version:    version,
		Broker:     broker.Address(),
		HTTPAddr:   s.HTTPAddr,
		SerialPort: s.SerialPort,
		DataDir:    st.DataDir(),
		Interface:  s.Iface,
	})

	hub := web.NewHub(log.Named("ws"))
	go hub.Run(ctx)

	b := bridge.New(bridge.Deps{
		Identity: id,
		Version:  version,
		Client:   client,
		Link:     adapter,
		Network:  netSrc,
		Tracker:  tracker,
		LED:      led,
		Hub:      hub,
		Log:      log.Named("bridge"),
	})

	if s.HTTPAddr != "" {
		ln, err := net.Listen("tcp", s.HTTPAddr)
		if err != nil {
			return fmt.Errorf("http listen: %w", err)
		}
		srv := web.New(web.Options{
			Tracker:      tracker,
			System:       sysinfo.NewHostCollector(st.DataDir()),
			Network:      netSrc,
			MQTT:         client,
			Unit:         adapter,
			Settings:     st,
			Hub:          hub,
			Log:          log.Named("http"),
			Restart:      func() { restart(log) },
			RestartDelay: restartDelay,
		})
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorw("http server error", "err", err)
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownWindow)
			defer cancel()
			srv.Shutdown(sctx)
		}()
		log.Infow("http diagnostics listening", "addr", ln.Addr().String())
	}

	watcher := netinfo.NewWatcher(netSrc, log.Named("net"))
	netTicker := time.NewTicker(netinfo.DefaultPollInterval)
	defer netTicker.Stop()
	go watcher.Run(ctx, netTicker.C, b.OnLinkEvent)

	log.Infow("started",
		"hostname", id.Hostname,
		"version", version,
		"broker", broker.Address(),
		"serial", s.SerialPort,
		"iface", s.Iface,
	)

	ticker := time.NewTicker(pollTick)
	defer ticker.Stop()
	return b.Run(ctx, ticker.C)
}
