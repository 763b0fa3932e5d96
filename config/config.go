package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config 存储播放核心的全部配置
type Config struct {
	// 接入点配置
	APHost     string // 接入点主机名
	APPort     string // 接入点端口
	CDNBase    string // 音频 CDN 基础地址
	DeviceName string

	// 缓存配置
	CacheDir string // 缓存根目录

	// 音频配置
	TargetSampleRate int // 输出设备采样率
	LookAheadSamples int // 解码预读缓冲区大小（采样数）

	// 本地音乐目录，为空则不启用本地库监听
	LocalMusicDir string

	// 日志配置
	LogLevel      string
	LogOutputPath string
	LogMaxSize    int
	LogMaxBackups int
	LogMaxAge     int
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() 不会覆盖已存在的环境变量
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	cacheBase := getEnv("CACHE_DIR", filepath.Join(userCacheDir(), "lyrafm"))

	return &Config{
		APHost:     getEnv("AP_HOST", "ap.lyrafm.net"),
		APPort:     getEnv("AP_PORT", "4070"),
		CDNBase:    getEnv("CDN_BASE", "https://audio.lyrafm.net"),
		DeviceName: getEnv("DEVICE_NAME", "LyraFM"),

		CacheDir: cacheBase,

		TargetSampleRate: getEnvInt("TARGET_SAMPLE_RATE", 44100),
		LookAheadSamples: getEnvInt("LOOKAHEAD_SAMPLES", 8192),

		LocalMusicDir: getEnv("LOCAL_MUSIC_DIR", ""),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogOutputPath: getEnv("LOG_OUTPUT_PATH", ""),
		LogMaxSize:    getEnvInt("LOG_MAX_SIZE", 50),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 3),
		LogMaxAge:     getEnvInt("LOG_MAX_AGE", 7),
	}
}

func userCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir
	}
	return "cache"
}
