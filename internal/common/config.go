package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/joseph-ayodele/fichas-scanner/constants"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Capture  CaptureConfig
	OCR      OCRConfig
	Pipeline PipelineConfig
	Log      LogConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string // postgres:// URL or a sqlite file path
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string
}

// CaptureConfig selects and configures the capture device.
type CaptureConfig struct {
	Device      string // file | folder | command
	Source      string // image path, watched directory or device node
	Command     string // frame grab command line, "{device}" is replaced by Source
	JPEGQuality int
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Engine              string // tesseract | gosseract
	Language            string
	Tesseract           string // binary name or absolute path
	TessdataDir         string
	PSM                 int
	OEM                 int
	Preprocess          bool
	Binarize            bool
	EnableTSVConfidence bool
	MinConfidence       float32
}

// PipelineConfig holds orchestrator, hand-off and batch settings.
type PipelineConfig struct {
	Timeout      time.Duration
	HubBuffer    int
	BatchWorkers int
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string // debug | info | warn | error
	Format string // text | json
}

// Device kinds accepted by CaptureConfig.Device.
const (
	DeviceFile    = "file"
	DeviceFolder  = "folder"
	DeviceCommand = "command"
)

// OCR engines accepted by OCRConfig.Engine.
const (
	EngineTesseract = "tesseract"
	EngineGosseract = "gosseract"
)

// DefaultCaptureCommand grabs a single PNG frame from a V4L2 device.
const DefaultCaptureCommand = "ffmpeg -hide_banner -loglevel error -f v4l2 -i {device} -frames:v 1 -f image2pipe -vcodec png -"

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:             "./data/fichas.db",
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Server: ServerConfig{
			GRPCAddr: ":8080",
		},
		Capture: CaptureConfig{
			Device:      DeviceCommand,
			Source:      "/dev/video0",
			Command:     DefaultCaptureCommand,
			JPEGQuality: 90,
		},
		OCR: OCRConfig{
			Engine:        EngineTesseract,
			Language:      constants.DefaultLanguage,
			Tesseract:     "tesseract",
			Preprocess:    true,
			MinConfidence: 0.5,
		},
		Pipeline: PipelineConfig{
			Timeout:      2 * time.Minute,
			HubBuffer:    16,
			BatchWorkers: 4,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	cfg := DefaultConfig()
	cfg.applyEnv()
	return cfg
}

// LoadConfigFile overlays a TOML file on the defaults, then applies
// environment variables on top. An empty path behaves like LoadConfig.
func LoadConfigFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, NewAppError("CONFIG_ERROR", "read config file", err)
		}
		var fc fileConfig
		if err := toml.Unmarshal(b, &fc); err != nil {
			return nil, NewAppError("CONFIG_ERROR", "parse config file "+path, err)
		}
		if err := fc.apply(cfg); err != nil {
			return nil, NewAppError("CONFIG_ERROR", "apply config file "+path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)
	c.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", c.Database.StatementTimeout)

	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)

	c.Capture.Device = getEnv("CAPTURE_DEVICE", c.Capture.Device)
	c.Capture.Source = getEnv("CAPTURE_SOURCE", c.Capture.Source)
	c.Capture.Command = getEnv("CAPTURE_COMMAND", c.Capture.Command)
	c.Capture.JPEGQuality = getEnvAsInt("CAPTURE_JPEG_QUALITY", c.Capture.JPEGQuality)

	c.OCR.Engine = getEnv("OCR_ENGINE", c.OCR.Engine)
	c.OCR.Language = getEnv("OCR_LANG", c.OCR.Language)
	c.OCR.Tesseract = getEnv("TESSERACT_BIN", c.OCR.Tesseract)
	c.OCR.TessdataDir = getEnv("TESSDATA_PREFIX", c.OCR.TessdataDir)
	c.OCR.PSM = getEnvAsInt("OCR_PSM", c.OCR.PSM)
	c.OCR.OEM = getEnvAsInt("OCR_OEM", c.OCR.OEM)
	c.OCR.Preprocess = getEnvAsBool("OCR_PREPROCESS", c.OCR.Preprocess)
	c.OCR.Binarize = getEnvAsBool("OCR_BINARIZE", c.OCR.Binarize)
	c.OCR.EnableTSVConfidence = getEnvAsBool("OCR_TSV_CONFIDENCE", c.OCR.EnableTSVConfidence)
	c.OCR.MinConfidence = getEnvAsFloat32("OCR_MIN_CONFIDENCE", c.OCR.MinConfidence)

	c.Pipeline.Timeout = getEnvAsDuration("PIPELINE_TIMEOUT", c.Pipeline.Timeout)
	c.Pipeline.HubBuffer = getEnvAsInt("HUB_BUFFER", c.Pipeline.HubBuffer)
	c.Pipeline.BatchWorkers = getEnvAsInt("BATCH_WORKERS", c.Pipeline.BatchWorkers)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator().
		Field("DB_URL", c.Database.DSN, Required).
		Field("GRPC_ADDR", c.Server.GRPCAddr, Required).
		Field("CAPTURE_DEVICE", c.Capture.Device, OneOf(DeviceFile, DeviceFolder, DeviceCommand)).
		Field("CAPTURE_SOURCE", c.Capture.Source, Required).
		Field("CAPTURE_JPEG_QUALITY", c.Capture.JPEGQuality, Between(1, 100)).
		Field("OCR_ENGINE", c.OCR.Engine, OneOf(EngineTesseract, EngineGosseract)).
		Field("OCR_LANG", c.OCR.Language, Required).
		Field("OCR_MIN_CONFIDENCE", c.OCR.MinConfidence, Between(0, 1)).
		Field("HUB_BUFFER", c.Pipeline.HubBuffer, Between(1, 1<<16)).
		Field("BATCH_WORKERS", c.Pipeline.BatchWorkers, Between(1, 256)).
		Field("LOG_FORMAT", c.Log.Format, OneOf("text", "json"))
	if c.Capture.Device == DeviceCommand {
		v.Field("CAPTURE_COMMAND", c.Capture.Command, Required)
	}
	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}

// fileConfig mirrors Config for TOML files. Pointers tell "absent" from
// zero; durations are Go duration strings ("45s").
type fileConfig struct {
	Database struct {
		URL              *string `toml:"url"`
		MaxConns         *int32  `toml:"max_conns"`
		MinConns         *int32  `toml:"min_conns"`
		DialTimeout      *string `toml:"dial_timeout"`
		StatementTimeout *string `toml:"statement_timeout"`
	} `toml:"database"`
	Server struct {
		GRPCAddr *string `toml:"grpc_addr"`
	} `toml:"server"`
	Capture struct {
		Device      *string `toml:"device"`
		Source      *string `toml:"source"`
		Command     *string `toml:"command"`
		JPEGQuality *int    `toml:"jpeg_quality"`
	} `toml:"capture"`
	OCR struct {
		Engine        *string  `toml:"engine"`
		Language      *string  `toml:"language"`
		Tesseract     *string  `toml:"tesseract"`
		TessdataDir   *string  `toml:"tessdata_dir"`
		PSM           *int     `toml:"psm"`
		OEM           *int     `toml:"oem"`
		Preprocess    *bool    `toml:"preprocess"`
		Binarize      *bool    `toml:"binarize"`
		TSVConfidence *bool    `toml:"tsv_confidence"`
		MinConfidence *float32 `toml:"min_confidence"`
	} `toml:"ocr"`
	Pipeline struct {
		Timeout      *string `toml:"timeout"`
		HubBuffer    *int    `toml:"hub_buffer"`
		BatchWorkers *int    `toml:"batch_workers"`
	} `toml:"pipeline"`
	Log struct {
		Level  *string `toml:"level"`
		Format *string `toml:"format"`
	} `toml:"log"`
}

func (fc *fileConfig) apply(c *Config) error {
	setString(&c.Database.DSN, fc.Database.URL)
	setValue(&c.Database.MaxConns, fc.Database.MaxConns)
	setValue(&c.Database.MinConns, fc.Database.MinConns)
	if err := setDuration(&c.Database.DialTimeout, fc.Database.DialTimeout); err != nil {
		return fmt.Errorf("database.dial_timeout: %w", err)
	}
	if err := setDuration(&c.Database.StatementTimeout, fc.Database.StatementTimeout); err != nil {
		return fmt.Errorf("database.statement_timeout: %w", err)
	}

	setString(&c.Server.GRPCAddr, fc.Server.GRPCAddr)

	setString(&c.Capture.Device, fc.Capture.Device)
	setString(&c.Capture.Source, fc.Capture.Source)
	setString(&c.Capture.Command, fc.Capture.Command)
	setValue(&c.Capture.JPEGQuality, fc.Capture.JPEGQuality)

	setString(&c.OCR.Engine, fc.OCR.Engine)
	setString(&c.OCR.Language, fc.OCR.Language)
	setString(&c.OCR.Tesseract, fc.OCR.Tesseract)
	setString(&c.OCR.TessdataDir, fc.OCR.TessdataDir)
	setValue(&c.OCR.PSM, fc.OCR.PSM)
	setValue(&c.OCR.OEM, fc.OCR.OEM)
	setValue(&c.OCR.Preprocess, fc.OCR.Preprocess)
	setValue(&c.OCR.Binarize, fc.OCR.Binarize)
	setValue(&c.OCR.EnableTSVConfidence, fc.OCR.TSVConfidence)
	setValue(&c.OCR.MinConfidence, fc.OCR.MinConfidence)

	if err := setDuration(&c.Pipeline.Timeout, fc.Pipeline.Timeout); err != nil {
		return fmt.Errorf("pipeline.timeout: %w", err)
	}
	setValue(&c.Pipeline.HubBuffer, fc.Pipeline.HubBuffer)
	setValue(&c.Pipeline.BatchWorkers, fc.Pipeline.BatchWorkers)

	setString(&c.Log.Level, fc.Log.Level)
	setString(&c.Log.Format, fc.Log.Format)
	return nil
}

func setString(dst *string, v *string) {
	if v != nil && *v != "" {
		*dst = *v
	}
}

func setValue[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *string) error {
	if v == nil || *v == "" {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
