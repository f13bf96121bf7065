package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	BackendOpenCV = "opencv"
	BackendONNX   = "onnx"
	BackendRemote = "remote"

	FormatYOLO = "yolo"
	FormatSSD  = "ssd"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Model    ModelConfig    `mapstructure:"model"`
	Detector DetectorConfig `mapstructure:"detector"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Log      LogConfig      `mapstructure:"log"`
	Auth     AuthConfig     `mapstructure:"auth"`
	CORS     CORSConfig     `mapstructure:"cors"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // gin mode: debug, release, test
	StaticDirectory string        `mapstructure:"static_dir"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type ModelConfig struct {
	Backend      string `mapstructure:"backend"`
	Name         string `mapstructure:"name"`          // shown as model_info, e.g. YOLOv8-x
	Format       string `mapstructure:"format"`        // yolo or ssd output layout
	Path         string `mapstructure:"path"`          // weights (.onnx, .pb)
	ConfigPath   string `mapstructure:"config_path"`   // network description for opencv (.pbtxt), optional
	LabelsPath   string `mapstructure:"labels_path"`   // one class per line; empty uses the built-in COCO list
	PretrainedOn string `mapstructure:"pretrained_on"` // dataset label for /api/info
	InputSize    int    `mapstructure:"input_size"`

	OnnxLibraryPath string `mapstructure:"onnx_library_path"`
	OnnxInputName   string `mapstructure:"onnx_input_name"`
	OnnxOutputName  string `mapstructure:"onnx_output_name"`

	RemoteURL     string        `mapstructure:"remote_url"`
	RemoteTimeout time.Duration `mapstructure:"remote_timeout"`
}

type DetectorConfig struct {
	Workers          int           `mapstructure:"workers"`           // detector instances in the pool
	DefaultThreshold float64       `mapstructure:"default_threshold"` // used when a request has none
	MinConfidence    float64       `mapstructure:"min_confidence"`    // floor applied by the detector itself
	NMSThreshold     float64       `mapstructure:"nms_threshold"`
	AcquireTimeout   time.Duration `mapstructure:"acquire_timeout"`
}

type UploadConfig struct {
	MaxSize           int64    `mapstructure:"max_size"`
	AllowedExtensions []string `mapstructure:"allowed_extensions"`
}

type CacheConfig struct {
	RedisAddr     string        `mapstructure:"redis_addr"` // empty disables the cache
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl"`
}

type LogConfig struct {
	Directory string `mapstructure:"dir"`
	Mode      string `mapstructure:"mode"` // release gives JSON console output
}

type AuthConfig struct {
	AdminPassword string `mapstructure:"admin_password"` // empty disables the log endpoints
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads .env (if present), the optional YAML file named by CONFIG_FILE
// and environment overrides such as DETECTOR_WORKERS or MODEL_BACKEND.
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("server.port", "SERVER_PORT", "PORT"); err != nil {
		return nil, fmt.Errorf("failed to bind PORT: %w", err)
	}

	configFile := getEnv("CONFIG_FILE", "config.yaml")
	if _, err := os.Stat(configFile); err == nil {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.static_dir", "static")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("model.backend", BackendONNX)
	v.SetDefault("model.name", "YOLOv8-x")
	v.SetDefault("model.format", FormatYOLO)
	v.SetDefault("model.path", filepath.Join(".", "models", "yolov8x.onnx"))
	v.SetDefault("model.config_path", "")
	v.SetDefault("model.labels_path", "")
	v.SetDefault("model.pretrained_on", "COCO dataset")
	v.SetDefault("model.input_size", 640)
	v.SetDefault("model.onnx_library_path", "")
	v.SetDefault("model.onnx_input_name", "images")
	v.SetDefault("model.onnx_output_name", "output0")
	v.SetDefault("model.remote_url", "http://localhost:5001")
	v.SetDefault("model.remote_timeout", 30*time.Second)

	v.SetDefault("detector.workers", 2)
	v.SetDefault("detector.default_threshold", 0.5)
	v.SetDefault("detector.min_confidence", 0.25)
	v.SetDefault("detector.nms_threshold", 0.45)
	v.SetDefault("detector.acquire_timeout", 30*time.Second)

	v.SetDefault("upload.max_size", 16*1024*1024)
	v.SetDefault("upload.allowed_extensions", []string{"png", "jpg", "jpeg", "gif", "bmp"})

	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.ttl", 24*time.Hour)

	v.SetDefault("log.dir", filepath.Join(".", "logs"))
	v.SetDefault("log.mode", "debug")

	v.SetDefault("auth.admin_password", "")

	v.SetDefault("cors.allowed_origins", []string{
		"http://localhost:5173",
		"https://objectvision-frontend.onrender.com",
		"https://*.onrender.com",
	})
}

// normalize fixes list values that arrive from the environment as one
// comma-separated string.
func (c *Config) normalize() {
	c.Upload.AllowedExtensions = splitList(c.Upload.AllowedExtensions)
	for i, ext := range c.Upload.AllowedExtensions {
		c.Upload.AllowedExtensions[i] = strings.ToLower(strings.TrimPrefix(ext, "."))
	}
	c.CORS.AllowedOrigins = splitList(c.CORS.AllowedOrigins)
	c.Model.Backend = strings.ToLower(c.Model.Backend)
	c.Model.Format = strings.ToLower(c.Model.Format)
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Model.Backend {
	case BackendOpenCV, BackendONNX, BackendRemote:
	default:
		errs = append(errs, fmt.Errorf("unknown model backend %q", c.Model.Backend))
	}
	if c.Model.Backend != BackendRemote && c.Model.Format != FormatYOLO && c.Model.Format != FormatSSD {
		errs = append(errs, fmt.Errorf("unknown model format %q", c.Model.Format))
	}
	if c.Model.Backend == BackendONNX && c.Model.Format != FormatYOLO {
		errs = append(errs, errors.New("onnx backend only supports the yolo output format"))
	}
	if c.Model.InputSize <= 0 {
		errs = append(errs, fmt.Errorf("model input size must be positive, got %d", c.Model.InputSize))
	}
	if c.Detector.Workers < 1 {
		errs = append(errs, fmt.Errorf("detector workers must be at least 1, got %d", c.Detector.Workers))
	}
	for name, value := range map[string]float64{
		"default threshold": c.Detector.DefaultThreshold,
		"min confidence":    c.Detector.MinConfidence,
		"nms threshold":     c.Detector.NMSThreshold,
	} {
		if value < 0 || value > 1 {
			errs = append(errs, fmt.Errorf("detector %s must be between 0.0 and 1.0, got %v", name, value))
		}
	}
	if c.Upload.MaxSize <= 0 {
		errs = append(errs, fmt.Errorf("upload max size must be positive, got %d", c.Upload.MaxSize))
	}
	if len(c.Upload.AllowedExtensions) == 0 {
		errs = append(errs, errors.New("no allowed upload extensions configured"))
	}

	return errors.Join(errs...)
}

// Address returns the listen address for the HTTP server.
func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
