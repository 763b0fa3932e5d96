package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"LyraFM/config"
	"LyraFM/logger"
)

var rootCmd = &cobra.Command{
	Use:   "lyrafm",
	Short: "LyraFM is a streaming-music playback core.",
	Long:  `LyraFM 播放核心：会话连接、曲目标识编解码、内容寻址缓存与音频解码管线。前端通过库接口消费，本命令行只提供诊断入口。`,
}

// initRuntime 加载配置并初始化日志，各子命令共用
func initRuntime() *config.Config {
	cfg := config.Load()
	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogOutputPath,
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAge,
	})
	return cfg
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
