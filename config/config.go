package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "CANESCAN"

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Upload       UploadConfig       `mapstructure:"upload"`
	Classifier   ClassifierConfig   `mapstructure:"classifier"`
	Remote       RemoteConfig       `mapstructure:"remote"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Session      SessionConfig      `mapstructure:"session"`
	Presentation PresentationConfig `mapstructure:"presentation"`
	Pipeline     PipelineConfig     `mapstructure:"pipeline"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type UploadConfig struct {
	MaxSize           int64    `mapstructure:"max_size"`
	MaxFiles          int      `mapstructure:"max_files"`
	AllowedTypes      []string `mapstructure:"allowed_types"`
	AllowedExtensions []string `mapstructure:"allowed_extensions"`
}

// ClassifierConfig 选择分类后端: local (ONNX 模型) 或 remote (工作流 API)
type ClassifierConfig struct {
	Backend            string   `mapstructure:"backend"`
	ModelPath          string   `mapstructure:"model_path"`
	SharedLibraryPath  string   `mapstructure:"shared_library_path"`
	Classes            []string `mapstructure:"classes"`
	InputWidth         int      `mapstructure:"input_width"`
	InputHeight        int      `mapstructure:"input_height"`
	AllowModelOverride bool     `mapstructure:"allow_model_override"`
	MaxLoadedModels    int      `mapstructure:"max_loaded_models"`
}

type RemoteConfig struct {
	APIURL     string        `mapstructure:"api_url"`
	APIKey     string        `mapstructure:"api_key"`
	Workspace  string        `mapstructure:"workspace"`
	WorkflowID string        `mapstructure:"workflow_id"`
	Timeout    time.Duration `mapstructure:"timeout"`
	UseCache   bool          `mapstructure:"use_cache"`
}

type AuthConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type SessionConfig struct {
	CookieName string        `mapstructure:"cookie_name"`
	TTL        time.Duration `mapstructure:"ttl"`
	Secure     bool          `mapstructure:"secure"`
}

type PresentationConfig struct {
	DefaultThreshold float64 `mapstructure:"default_threshold"`
	DisplayWidth     int     `mapstructure:"display_width"`
	DisplayHeight    int     `mapstructure:"display_height"`
	JPEGQuality      int     `mapstructure:"jpeg_quality"`
}

type PipelineConfig struct {
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	QueueTimeout  time.Duration `mapstructure:"queue_timeout"`
}

// Load 从 YAML 文件加载配置，环境变量 (CANESCAN_*) 优先
func Load(configPath string) (*Config, error) {
	return load(configPath, false)
}

// New 加载 config.yaml，文件不存在时使用默认值和环境变量
func New() (*Config, error) {
	return load("config.yaml", true)
}

func load(configPath string, optional bool) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 设置默认值
	setDefaults(v)

	// 读取配置文件，可选且不存在时只用默认值和环境变量
	if !optional || !fileMissing(configPath) {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}

	return &cfg, nil
}

func fileMissing(path string) bool {
	_, err := os.Stat(path)
	return errors.Is(err, fs.ErrNotExist)
}

// Validate 检查后端选择和阈值范围
func (c *Config) Validate() error {
	switch c.Classifier.Backend {
	case BackendLocal, BackendRemote:
	default:
		return fmt.Errorf("unknown classifier backend %q", c.Classifier.Backend)
	}
	if c.Classifier.InputWidth <= 0 || c.Classifier.InputHeight <= 0 {
		return fmt.Errorf("invalid classifier input size %dx%d", c.Classifier.InputWidth, c.Classifier.InputHeight)
	}
	if c.Presentation.DefaultThreshold < 0 || c.Presentation.DefaultThreshold > 1 {
		return fmt.Errorf("default threshold %.2f out of range [0,1]", c.Presentation.DefaultThreshold)
	}
	if c.Remote.Timeout <= 0 {
		return fmt.Errorf("remote timeout must be positive")
	}
	if c.Pipeline.MaxConcurrent <= 0 {
		return fmt.Errorf("pipeline max_concurrent must be positive")
	}
	if c.Pipeline.QueueTimeout <= 0 {
		return fmt.Errorf("pipeline queue_timeout must be positive")
	}
	if c.Classifier.MaxLoadedModels <= 0 {
		return fmt.Errorf("classifier max_loaded_models must be positive")
	}
	return nil
}

const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

var defaultClasses = []string{"Healthy", "Mosaic", "RedRot", "Rust", "Yellow"}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("upload.max_size", 10*1024*1024)
	v.SetDefault("upload.max_files", 10)
	v.SetDefault("upload.allowed_types", []string{"image/jpeg", "image/png", "image/jpg"})
	v.SetDefault("upload.allowed_extensions", []string{".jpg", ".jpeg", ".png"})

	v.SetDefault("classifier.backend", BackendRemote)
	v.SetDefault("classifier.model_path", "./models/efficientnetB0_model.onnx")
	v.SetDefault("classifier.shared_library_path", "")
	v.SetDefault("classifier.classes", defaultClasses)
	v.SetDefault("classifier.input_width", 224)
	v.SetDefault("classifier.input_height", 224)
	v.SetDefault("classifier.allow_model_override", false)
	v.SetDefault("classifier.max_loaded_models", 2)

	v.SetDefault("remote.api_url", "https://detect.roboflow.com")
	v.SetDefault("remote.api_key", "")
	v.SetDefault("remote.workspace", "project-jqwpc")
	v.SetDefault("remote.workflow_id", "custom-workflow")
	v.SetDefault("remote.timeout", 30*time.Second)
	v.SetDefault("remote.use_cache", true)

	v.SetDefault("auth.username", "admin")
	v.SetDefault("auth.password", "password")

	v.SetDefault("session.cookie_name", "canescan_session")
	v.SetDefault("session.ttl", 12*time.Hour)
	v.SetDefault("session.secure", false)

	v.SetDefault("presentation.default_threshold", 0.5)
	v.SetDefault("presentation.display_width", 400)
	v.SetDefault("presentation.display_height", 300)
	v.SetDefault("presentation.jpeg_quality", 90)

	v.SetDefault("pipeline.max_concurrent", 3)
	v.SetDefault("pipeline.queue_timeout", 30*time.Second)
}

func getDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         ":8080",
			Mode:         "debug",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			TTL:      24 * time.Hour,
		},
		Upload: UploadConfig{
			MaxSize:           10 * 1024 * 1024,
			MaxFiles:          10,
			AllowedTypes:      []string{"image/jpeg", "image/png", "image/jpg"},
			AllowedExtensions: []string{".jpg", ".jpeg", ".png"},
		},
		Classifier: ClassifierConfig{
			Backend:         BackendRemote,
			ModelPath:       "./models/efficientnetB0_model.onnx",
			Classes:         append([]string(nil), defaultClasses...),
			InputWidth:      224,
			InputHeight:     224,
			MaxLoadedModels: 2,
		},
		Remote: RemoteConfig{
			APIURL:     "https://detect.roboflow.com",
			Workspace:  "project-jqwpc",
			WorkflowID: "custom-workflow",
			Timeout:    30 * time.Second,
			UseCache:   true,
		},
		Auth: AuthConfig{
			Username: "admin",
			Password: "password",
		},
		Session: SessionConfig{
			CookieName: "canescan_session",
			TTL:        12 * time.Hour,
		},
		Presentation: PresentationConfig{
			DefaultThreshold: 0.5,
			DisplayWidth:     400,
			DisplayHeight:    300,
			JPEGQuality:      90,
		},
		Pipeline: PipelineConfig{
			MaxConcurrent: 3,
			QueueTimeout:  30 * time.Second,
		},
	}
}

// Default 返回内置默认配置的副本
func Default() *Config {
	return getDefaultConfig()
}
