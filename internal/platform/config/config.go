package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Cfg 是一个全局变量，用于存储所有应用程序的配置
var Cfg *Config

// Config 结构体定义了应用程序的所有配置项
// 它与 config.yaml 文件的结构完全对应
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Storage StorageConfig `mapstructure:"storage"`
	Gemini  GeminiConfig  `mapstructure:"gemini"`
	Limits  LimitsConfig  `mapstructure:"limits"`
}

// ServerConfig 定义了服务器相关的配置
type ServerConfig struct {
	Mode    string     `mapstructure:"mode"`
	Address string     `mapstructure:"address"`
	Cors    CorsConfig `mapstructure:"cors"`
}

// CorsConfig 定义了CORS相关的配置
type CorsConfig struct {
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

// RedisConfig 定义了Redis的配置
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// Namespace 是所有键的公共前缀，便于多环境共用一个Redis实例
	Namespace string `mapstructure:"namespace"`
}

// StorageConfig 定义了对象存储（手写图片存证）的配置
type StorageConfig struct {
	Bucket string `mapstructure:"bucket"`
}

// GeminiConfig 定义了外部AI网关的配置
// API密钥不放在配置文件中，通过环境变量 GEMINI_API_KEY 提供
type GeminiConfig struct {
	BaseURL        string `mapstructure:"baseURL"`
	Model          string `mapstructure:"model"`
	MaxRetries     int    `mapstructure:"maxRetries"`
	TimeoutSeconds int    `mapstructure:"timeoutSeconds"`
}

// LimitsConfig 定义了提交频率和配额相关的限制
type LimitsConfig struct {
	SubmitCooldownSeconds int   `mapstructure:"submitCooldownSeconds"`
	DailyChapterAttempts  int   `mapstructure:"dailyChapterAttempts"`
	WeeklyChapterAttempts int   `mapstructure:"weeklyChapterAttempts"`
	MaxImageKB            int64 `mapstructure:"maxImageKB"`
}

// LoadConfig 函数负责查找、加载和解析配置文件
// 它会在指定的路径中查找名为 config.yaml 的文件
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. 设置配置文件名和类型
	v.SetConfigName("config") // 文件名 (不带扩展名)
	v.SetConfigType("yaml")   // 文件类型

	// 2. 添加配置文件搜索路径
	// 可以添加多个路径，Viper会按顺序查找
	v.AddConfigPath("./config") // `config/config.yaml`
	v.AddConfigPath(".")        // `./config.yaml` (如果在根目录)

	// 3. 设置环境变量支持
	// 允许通过环境变量覆盖配置，例如 SERVER_ADDRESS=:8888
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	// 5. 将配置反序列化到结构体中
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// 6. 将加载的配置赋值给全局变量
	Cfg = &cfg

	return Cfg, nil
}
