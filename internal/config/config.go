// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package config loads the YAML configuration shared by every binary.
package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/edl_robot/internal/imu"
	"github.com/relabs-tech/edl_robot/internal/orientation"
)

// Config holds all application configuration values.
type Config struct {
	LogLevel string        `yaml:"log_level"`
	MQTT     MQTTConfig    `yaml:"mqtt"`
	Topics   TopicsConfig  `yaml:"topics"`
	IMU      IMUConfig     `yaml:"imu"`
	Filter   FilterConfig  `yaml:"filter"`
	Graph    GraphConfig   `yaml:"graph"`
	Web      WebConfig     `yaml:"web"`
	Display  DisplayConfig `yaml:"display"`
	GPS      GPSConfig     `yaml:"gps"`
	Camera   CameraConfig  `yaml:"camera"`
}

type MQTTConfig struct {
	Broker           string        `yaml:"broker"`
	ClientIDProducer string        `yaml:"client_id_producer"`
	ClientIDGPS      string        `yaml:"client_id_gps"`
	ClientIDConsole  string        `yaml:"client_id_console"`
	ClientIDWeb      string        `yaml:"client_id_web"`
	ClientIDDisplay  string        `yaml:"client_id_display"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`
}

type TopicsConfig struct {
	Pose string `yaml:"pose"`
	Raw  string `yaml:"raw"`
	GPS  string `yaml:"gps"`
}

// IMUConfig selects and configures the sample source.
// Transport is "i2c", "spi" or "mock".
type IMUConfig struct {
	Transport       string        `yaml:"transport"`
	Name            string        `yaml:"name"`
	I2CBus          string        `yaml:"i2c_bus"`
	I2CAddr         uint16        `yaml:"i2c_addr"`
	SPIDevice       string        `yaml:"spi_device"`
	CSPin           string        `yaml:"cs_pin"`
	AccelRange      byte          `yaml:"accel_range"`
	GyroRange       byte          `yaml:"gyro_range"`
	DLPF            byte          `yaml:"dlpf"`
	SampleRateDiv   byte          `yaml:"sample_rate_div"`
	EnableMag       bool          `yaml:"enable_mag"`
	Frame           string        `yaml:"frame"`
	CalibrationFile string        `yaml:"calibration_file"`
	SampleInterval  time.Duration `yaml:"sample_interval"`
}

type FilterConfig struct {
	Kind               string `yaml:"kind"`
	orientation.Params `yaml:",inline"`
}

type GraphConfig struct {
	Capacity       int           `yaml:"capacity"`
	UpdateInterval time.Duration `yaml:"update_interval"`
	PNGPath        string        `yaml:"png_path"`
	Width          int           `yaml:"width"`
	Height         int           `yaml:"height"`
	// Series is the pose angle plotted by the web and display graphs.
	Series string `yaml:"series"`
}

type WebConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
}

// DisplayConfig drives the SSD1306 OLED at its fixed address 0x3C.
// Content is "pose" or "graph".
type DisplayConfig struct {
	I2CBus         string        `yaml:"i2c_bus"`
	Content        string        `yaml:"content"`
	UpdateInterval time.Duration `yaml:"update_interval"`
}

type GPSConfig struct {
	SerialPort string `yaml:"serial_port"`
	BaudRate   uint   `yaml:"baud_rate"`
}

type CameraConfig struct {
	Command    string        `yaml:"command"`
	Width      int           `yaml:"width"`
	Height     int           `yaml:"height"`
	Interval   time.Duration `yaml:"interval"`
	Warmup     time.Duration `yaml:"warmup"`
	OutputPath string        `yaml:"output_path"`
	SwapRB     bool          `yaml:"swap_rb"`
}

// globalConfig is only reachable through InitGlobal and Get.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file, fills defaults and validates it.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes the same way Load does.
func Parse(b []byte) (*Config, error) {
	cfg := preset()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := preset()
	cfg.applyDefaults()
	return cfg
}

// preset holds defaults whose zero value is also a legal setting. Keys absent
// from the file keep these values.
func preset() *Config {
	return &Config{
		IMU: IMUConfig{
			DLPF:      3,
			EnableMag: true,
		},
		Filter: FilterConfig{Params: orientation.DefaultParams()},
	}
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.MQTT.Broker == "" {
		c.MQTT.Broker = "tcp://localhost:1883"
	}
	setString(&c.MQTT.ClientIDProducer, "edl-orientation")
	setString(&c.MQTT.ClientIDGPS, "edl-gps")
	setString(&c.MQTT.ClientIDConsole, "edl-console")
	setString(&c.MQTT.ClientIDWeb, "edl-web")
	setString(&c.MQTT.ClientIDDisplay, "edl-display")
	setDuration(&c.MQTT.ConnectTimeout, 10*time.Second)

	setString(&c.Topics.Pose, "edl/orientation/pose")
	setString(&c.Topics.Raw, "edl/imu/raw")
	setString(&c.Topics.GPS, "edl/gps")

	setString(&c.IMU.Transport, "i2c")
	setString(&c.IMU.Name, "imu")
	if c.IMU.I2CAddr == 0 {
		c.IMU.I2CAddr = 0x68
	}
	setString(&c.IMU.SPIDevice, "/dev/spidev0.0")
	setString(&c.IMU.CSPin, "GPIO8")
	if c.IMU.Frame == "" {
		c.IMU.Frame = string(imu.FrameNED)
	}
	setDuration(&c.IMU.SampleInterval, 100*time.Millisecond)

	setString(&c.Filter.Kind, "kalman")

	if c.Graph.Capacity <= 0 {
		c.Graph.Capacity = 200
	}
	setDuration(&c.Graph.UpdateInterval, time.Second)
	if c.Graph.Width <= 0 {
		c.Graph.Width = 640
	}
	if c.Graph.Height <= 0 {
		c.Graph.Height = 240
	}
	setString(&c.Graph.Series, "yaw")

	setString(&c.Web.Addr, ":8080")
	setString(&c.Web.StaticDir, "web")

	setString(&c.Display.Content, "pose")
	setDuration(&c.Display.UpdateInterval, 500*time.Millisecond)

	setString(&c.GPS.SerialPort, "/dev/serial0")
	if c.GPS.BaudRate == 0 {
		c.GPS.BaudRate = 9600
	}

	setString(&c.Camera.Command, "rpicam-still")
	if c.Camera.Width <= 0 {
		c.Camera.Width = 640
	}
	if c.Camera.Height <= 0 {
		c.Camera.Height = 480
	}
	setDuration(&c.Camera.Interval, time.Second)
	setDuration(&c.Camera.Warmup, 2*time.Second)
	setString(&c.Camera.OutputPath, "frame.png")
}

// validate checks ranges and enumerations after defaults are applied.
func (c *Config) validate() error {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	switch c.IMU.Transport {
	case "i2c", "spi", "mock":
	default:
		return fmt.Errorf("imu.transport must be i2c, spi or mock, got %q", c.IMU.Transport)
	}
	if c.IMU.AccelRange > 3 {
		return fmt.Errorf("imu.accel_range must be 0-3 (0=±2g, 1=±4g, 2=±8g, 3=±16g), got %d", c.IMU.AccelRange)
	}
	if c.IMU.GyroRange > 3 {
		return fmt.Errorf("imu.gyro_range must be 0-3 (0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s), got %d", c.IMU.GyroRange)
	}
	if c.IMU.DLPF > 7 {
		return fmt.Errorf("imu.dlpf must be 0-7, got %d", c.IMU.DLPF)
	}
	if _, err := imu.ParseFrame(c.IMU.Frame); err != nil {
		return fmt.Errorf("imu.frame: %w", err)
	}
	if _, err := orientation.New(c.Filter.Kind, c.Filter.Params); err != nil {
		return fmt.Errorf("filter.kind: %w", err)
	}
	if c.Filter.Tau < 0 || c.Filter.MaxInterval < 0 {
		return fmt.Errorf("filter.tau and filter.max_interval must not be negative")
	}
	switch c.Graph.Series {
	case "roll", "pitch", "yaw":
	default:
		return fmt.Errorf("graph.series must be roll, pitch or yaw, got %q", c.Graph.Series)
	}
	switch c.Display.Content {
	case "pose", "graph":
	default:
		return fmt.Errorf("display.content must be pose or graph, got %q", c.Display.Content)
	}
	return nil
}

// ApplyLogLevel sets the logrus level from log_level.
func (c *Config) ApplyLogLevel() {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}

func setString(s *string, def string) {
	if *s == "" {
		*s = def
	}
}

func setDuration(d *time.Duration, def time.Duration) {
	if *d <= 0 {
		*d = def
	}
}

// InitGlobal loads the global configuration once. An empty path selects
// Default.
func InitGlobal(path string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		if path == "" {
			globalConfig = Default()
			return
		}
		globalConfig, err = Load(path)
	})
	return err
}

// Get returns the global configuration, or nil before InitGlobal.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
