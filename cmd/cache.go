package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"LyraFM/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "缓存管理",
	Long:  `查看或清空内容寻址缓存。`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "缓存统计",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := initRuntime()
		store, err := cache.NewStore(cfg.CacheDir)
		if err != nil {
			log.Fatalf("打开缓存失败: %v", err)
		}

		stats, err := store.Stats()
		if err != nil {
			log.Fatalf("统计缓存失败: %v", err)
		}

		fmt.Printf("缓存目录: %s\n", store.Root())
		for kind, ks := range stats {
			fmt.Printf("  %-10s %6d 条目 %12d 字节\n", kind, ks.Entries, ks.Bytes)
		}
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "清空缓存",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := initRuntime()
		store, err := cache.NewStore(cfg.CacheDir)
		if err != nil {
			log.Fatalf("打开缓存失败: %v", err)
		}
		if err := store.Clear(); err != nil {
			log.Fatalf("清空缓存失败: %v", err)
		}
		fmt.Println("缓存已清空。")
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
