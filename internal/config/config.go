// Package config holds the daemon settings. Values come from built-in
// defaults, then an optional YAML file, then explicitly set command-line
// flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/conveyor-sensor/internal/console"
	"github.com/sweeney/conveyor-sensor/internal/gpio"
)

// Config is the full daemon configuration.
type Config struct {
	Poll           time.Duration `yaml:"poll"`
	Sample         time.Duration `yaml:"sample"`
	PushInterval   time.Duration `yaml:"push_interval"`
	ReportInterval time.Duration `yaml:"report_interval"`
	ReportTimeout  time.Duration `yaml:"report_timeout"`
	Collector      string        `yaml:"collector"`
	Broker         string        `yaml:"broker"`
	HTTPAddr       string        `yaml:"http"`

	GPIO    GPIOConfig    `yaml:"gpio"`
	I2C     string        `yaml:"i2c"`
	Console ConsoleConfig `yaml:"console"`
	Network NetworkConfig `yaml:"network"`
	Portal  PortalConfig  `yaml:"portal"`

	// PrintState makes the daemon print one reading and exit.
	PrintState bool `yaml:"-"`
	// Path is the YAML file the config was loaded from, if any.
	Path string `yaml:"-"`
}

// GPIOConfig selects the proximity sensor line.
type GPIOConfig struct {
	Chip string `yaml:"chip"`
	Pin  int    `yaml:"pin"`
}

// ConsoleConfig selects the serial console device.
type ConsoleConfig struct {
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
}

// NetworkConfig describes the wireless interface and the provisioning
// access point.
type NetworkConfig struct {
	Interface   string        `yaml:"interface"`
	JoinTimeout time.Duration `yaml:"join_timeout"`
	APSSID      string        `yaml:"ap_ssid"`
	APPassword  string        `yaml:"ap_password"`
	APAddress   string        `yaml:"ap_address"`
}

// PortalConfig holds the captive portal listen addresses.
type PortalConfig struct {
	DNSAddr  string `yaml:"dns"`
	HTTPAddr string `yaml:"http"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Poll:           50 * time.Millisecond,
		Sample:         500 * time.Millisecond,
		PushInterval:   5 * time.Second,
		ReportInterval: 10 * time.Second,
		ReportTimeout:  5 * time.Second,
		Collector:      "http://192.168.1.200:8004/datos",
		Broker:         "tcp://192.168.1.200:1883",
		HTTPAddr:       ":8080",
		GPIO: GPIOConfig{
			Chip: gpio.DefaultChip,
			Pin:  gpio.DefaultPin,
		},
		I2C: "/dev/i2c-1",
		Console: ConsoleConfig{
			Device: console.DefaultDevice,
			Baud:   console.DefaultBaud,
		},
		Network: NetworkConfig{
			Interface:   "wlan0",
			JoinTimeout: 15 * time.Second,
			APSSID:      "conveyor-sensor",
			APPassword:  "12345678",
			APAddress:   "192.168.4.1",
		},
		Portal: PortalConfig{
			DNSAddr:  ":53",
			HTTPAddr: ":80",
		},
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Path = path
	return cfg, nil
}

// Parse builds the configuration from command-line arguments. When
// -config names a file, it is loaded first and flags given explicitly on
// the command line override it.
func Parse(name string, args []string, output io.Writer) (Config, error) {
	scratch := Default()
	first := newFlagSet(name, &scratch, output)
	if err := first.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if scratch.Path != "" {
		loaded, err := Load(scratch.Path)
		if err != nil {
			return Config{}, err
		}
		cfg = loaded
	}

	// Flags are bound to the loaded values, so only flags present in
	// args change them.
	second := newFlagSet(name, &cfg, io.Discard)
	if err := second.Parse(args); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func newFlagSet(name string, c *Config, output io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(&c.Path, "config", c.Path, "YAML config file")
	fs.DurationVar(&c.Poll, "poll", c.Poll, "Main loop interval")
	fs.DurationVar(&c.Sample, "sample", c.Sample, "Sensor sampling interval")
	fs.DurationVar(&c.PushInterval, "push-interval", c.PushInterval, "Push notification interval")
	fs.DurationVar(&c.ReportInterval, "http-interval", c.ReportInterval, "HTTP report interval while joined")
	fs.DurationVar(&c.ReportTimeout, "http-timeout", c.ReportTimeout, "HTTP report request timeout")
	fs.StringVar(&c.Collector, "collector", c.Collector, "HTTP collector URL")
	fs.StringVar(&c.Broker, "broker", c.Broker, "MQTT broker address for push mode")
	fs.StringVar(&c.HTTPAddr, "http", c.HTTPAddr, "HTTP status address (empty to disable)")
	fs.StringVar(&c.GPIO.Chip, "gpio-chip", c.GPIO.Chip, "GPIO chip of the proximity sensor")
	fs.IntVar(&c.GPIO.Pin, "pin", c.GPIO.Pin, "Line offset of the proximity sensor")
	fs.StringVar(&c.I2C, "i2c", c.I2C, "I2C bus device of the angle sensor")
	fs.StringVar(&c.Console.Device, "console", c.Console.Device, "Serial console device")
	fs.IntVar(&c.Console.Baud, "console-baud", c.Console.Baud, "Serial console baud rate")
	fs.StringVar(&c.Network.Interface, "wifi-iface", c.Network.Interface, "Wireless interface")
	fs.DurationVar(&c.Network.JoinTimeout, "join-timeout", c.Network.JoinTimeout, "Network join bound")
	fs.StringVar(&c.Network.APSSID, "ap-ssid", c.Network.APSSID, "Provisioning access point SSID")
	fs.StringVar(&c.Network.APPassword, "ap-password", c.Network.APPassword, "Provisioning access point password")
	fs.StringVar(&c.Network.APAddress, "ap-address", c.Network.APAddress, "Provisioning access point address")
	fs.StringVar(&c.Portal.DNSAddr, "portal-dns", c.Portal.DNSAddr, "Captive DNS listen address")
	fs.StringVar(&c.Portal.HTTPAddr, "portal-http", c.Portal.HTTPAddr, "Captive HTTP listen address")
	fs.BoolVar(&c.PrintState, "print-state", c.PrintState, "Print current sensor state and exit")
	return fs
}

// Validate checks intervals, their ordering, and addresses.
func (c Config) Validate() error {
	var errs []error
	intervals := []struct {
		name string
		d    time.Duration
	}{
		{"poll", c.Poll},
		{"sample", c.Sample},
		{"push-interval", c.PushInterval},
		{"http-interval", c.ReportInterval},
		{"http-timeout", c.ReportTimeout},
		{"join-timeout", c.Network.JoinTimeout},
	}
	for _, iv := range intervals {
		if iv.d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", iv.name, iv.d))
		}
	}

	// Every cadence is driven by the loop tick.
	if c.Poll > 0 && c.Sample > 0 && c.Poll > c.Sample {
		errs = append(errs, fmt.Errorf("poll (%v) must not exceed sample (%v)", c.Poll, c.Sample))
	}
	if c.ReportTimeout > 0 && c.ReportInterval > 0 && c.ReportTimeout >= c.ReportInterval {
		errs = append(errs, fmt.Errorf("http-timeout (%v) must be shorter than http-interval (%v)", c.ReportTimeout, c.ReportInterval))
	}

	if u, err := url.Parse(c.Collector); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("collector %q is not an absolute URL", c.Collector))
	}
	if ip := net.ParseIP(c.Network.APAddress); ip == nil || ip.To4() == nil {
		errs = append(errs, fmt.Errorf("ap-address %q is not an IPv4 address", c.Network.APAddress))
	}
	if len(c.Network.APPassword) < 8 {
		errs = append(errs, errors.New("ap-password must be at least 8 characters"))
	}

	return errors.Join(errs...)
}

// APAddressIP returns the access point address.
func (c Config) APAddressIP() net.IP {
	return net.ParseIP(c.Network.APAddress).To4()
}
