// Package config loads restotool settings from restotool.toml and
// RESTOTOOL_* environment variables
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"menuca.ca/restotool/internal/link"
)

const (
	TransportTCP       = "tcp"
	TransportSerial    = "serial"
	TransportBluetooth = "bluetooth"
	TransportBLE       = "ble"
)

var transports = []string{TransportTCP, TransportSerial, TransportBluetooth, TransportBLE}

type Config struct {
	Log     LogConfig
	Server  ServerConfig
	Link    LinkConfig
	Printer PrinterConfig
	Bridge  BridgeConfig
	Store   StoreConfig
	Assets  AssetsConfig
	Render  RenderConfig
}

type LogConfig struct {
	Level      string
	Format     string
	Output     string
	TimeFormat string
}

type ServerConfig struct {
	Listen          string
	Path            string
	StaticDir       string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

type LinkConfig struct {
	Transport       string
	Attempts        int
	RetryDelay      time.Duration
	DialTimeout     time.Duration
	WriteTimeout    time.Duration
	ReconnectOnSend bool
	// raw port for network printers
	TCPPort  int
	BaudRate int
	// known network printers
	Printers []link.Device
	// device address to serial port path
	Bindings    map[string]string
	ScanTimeout time.Duration
}

type PrinterConfig struct {
	// dots per line
	PaperWidth int
}

type BridgeConfig struct {
	Workers int
}

type StoreConfig struct {
	DSN string
}

type AssetsConfig struct {
	Dir string
}

type RenderConfig struct {
	Font       string
	FontSize   float64
	ChromePath string
	// debugging URL of an already running browser
	ChromeURL string
	NoSandbox bool
	Timeout   time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stderr")
	v.SetDefault("log.time_format", "2006-01-02T15:04:05.000Z07:00")

	v.SetDefault("server.listen", "127.0.0.1:8765")
	v.SetDefault("server.path", "/bridge")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("link.transport", TransportTCP)
	v.SetDefault("link.attempts", 1)
	v.SetDefault("link.dial_timeout", 5*time.Second)
	v.SetDefault("link.write_timeout", 10*time.Second)
	v.SetDefault("link.reconnect_on_send", true)
	v.SetDefault("link.tcp_port", link.DefaultRawPort)
	v.SetDefault("link.baud_rate", link.DefaultBaudRate)
	v.SetDefault("link.scan_timeout", 10*time.Second)

	v.SetDefault("printer.paper_width", 384)
	v.SetDefault("bridge.workers", 4)
	v.SetDefault("store.dsn", "file:restotool.db")
	v.SetDefault("assets.dir", "assets")
	v.SetDefault("render.font", "gomono")
	v.SetDefault("render.font_size", 24)
	v.SetDefault("render.timeout", 30*time.Second)
}

// Load reads file, or restotool.toml from the usual places when file is
// empty. A missing default file is not an error.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("restotool")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/restotool")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("Couldn't read config file:\n%w", err)
		}
	}

	v.SetEnvPrefix("RESTOTOOL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	printers, err := parsePrinters(v.GetStringSlice("link.printers"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Log: LogConfig{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			Output:     v.GetString("log.output"),
			TimeFormat: v.GetString("log.time_format"),
		},
		Server: ServerConfig{
			Listen:          v.GetString("server.listen"),
			Path:            v.GetString("server.path"),
			StaticDir:       v.GetString("server.static_dir"),
			AllowedOrigins:  v.GetStringSlice("server.allowed_origins"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Link: LinkConfig{
			Transport:       strings.ToLower(v.GetString("link.transport")),
			Attempts:        v.GetInt("link.attempts"),
			RetryDelay:      v.GetDuration("link.retry_delay"),
			DialTimeout:     v.GetDuration("link.dial_timeout"),
			WriteTimeout:    v.GetDuration("link.write_timeout"),
			ReconnectOnSend: v.GetBool("link.reconnect_on_send"),
			TCPPort:         v.GetInt("link.tcp_port"),
			BaudRate:        v.GetInt("link.baud_rate"),
			Printers:        printers,
			Bindings:        v.GetStringMapString("link.bindings"),
			ScanTimeout:     v.GetDuration("link.scan_timeout"),
		},
		Printer: PrinterConfig{
			PaperWidth: v.GetInt("printer.paper_width"),
		},
		Bridge: BridgeConfig{
			Workers: v.GetInt("bridge.workers"),
		},
		Store: StoreConfig{
			DSN: v.GetString("store.dsn"),
		},
		Assets: AssetsConfig{
			Dir: v.GetString("assets.dir"),
		},
		Render: RenderConfig{
			Font:       v.GetString("render.font"),
			FontSize:   v.GetFloat64("render.font_size"),
			ChromePath: v.GetString("render.chrome_path"),
			ChromeURL:  v.GetString("render.chrome_url"),
			NoSandbox:  v.GetBool("render.no_sandbox"),
			Timeout:    v.GetDuration("render.timeout"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parsePrinters reads entries of the form "name=address" or just "address"
func parsePrinters(entries []string) ([]link.Device, error) {
	var out []link.Device
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		name, address, found := strings.Cut(e, "=")
		if !found {
			name, address = "", name
		}
		address = strings.TrimSpace(address)
		if address == "" {
			return nil, fmt.Errorf("link.printers entry %q has no address", e)
		}
		out = append(out, link.Device{Name: strings.TrimSpace(name), Address: address})
	}
	return out, nil
}

func (c *Config) validate() error {
	if !slices.Contains(transports, c.Link.Transport) {
		return fmt.Errorf("link.transport must be one of %s, got %q", strings.Join(transports, ", "), c.Link.Transport)
	}
	if c.Link.Attempts < 1 {
		return fmt.Errorf("link.attempts must be at least 1")
	}
	if c.Link.RetryDelay < 0 {
		return fmt.Errorf("link.retry_delay cannot be negative")
	}
	if c.Link.TCPPort <= 0 || c.Link.TCPPort > 65535 {
		return fmt.Errorf("link.tcp_port %d is out of range", c.Link.TCPPort)
	}
	if c.Printer.PaperWidth <= 0 || c.Printer.PaperWidth%8 != 0 {
		return fmt.Errorf("printer.paper_width must be a positive multiple of 8, got %d", c.Printer.PaperWidth)
	}
	if c.Bridge.Workers < 1 || c.Bridge.Workers > 8 {
		return fmt.Errorf("bridge.workers must be between 1 and 8, got %d", c.Bridge.Workers)
	}
	if !strings.HasPrefix(c.Server.Path, "/") || c.Server.Path == "/" {
		return fmt.Errorf("server.path must start with / and can't be the root")
	}
	if c.Render.FontSize <= 0 {
		return fmt.Errorf("render.font_size must be positive")
	}
	return nil
}
