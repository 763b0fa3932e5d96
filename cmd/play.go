package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"LyraFM/cache"
	"LyraFM/core/audio"
	"LyraFM/core/library"
	"LyraFM/core/session"
	"LyraFM/model"
)

var playCmd = &cobra.Command{
	Use:   "play <uri|本地文件>",
	Short: "解码测试",
	Long: `装载一首曲目并把整条解码管线跑到结尾，用于诊断缓存、取流和解码问题。
参数可以是曲目 URI（lyra:track:...）或本地音频文件路径。目录曲目需要
LYRA_USERNAME / LYRA_PASSWORD 环境变量提供凭证，或已有缓存的密钥。`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := initRuntime()
		fmt.Printf("设备: %s\n", cfg.DeviceName)

		if cfg.LocalMusicDir != "" {
			items, err := library.NewWatcher(cfg.LocalMusicDir).Scan()
			if err != nil {
				log.Fatalf("扫描本地音乐目录失败: %v", err)
			}
			fmt.Printf("本地音乐目录已登记 %d 首曲目。\n", len(items))
		}

		item, err := resolvePlayArg(args[0])
		if err != nil {
			log.Fatalf("无法识别曲目参数: %v", err)
		}

		store, err := cache.NewStore(cfg.CacheDir)
		if err != nil {
			log.Fatalf("打开缓存失败: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		var sess *session.Session
		if item.Type != model.ItemIdTypeLocal && os.Getenv("LYRA_USERNAME") != "" {
			sess, err = session.Connect(ctx, net.JoinHostPort(cfg.APHost, cfg.APPort))
			if err != nil {
				log.Fatalf("无法连接接入点: %v", err)
			}
			defer sess.Close()

			creds := model.Credentials{
				Username: os.Getenv("LYRA_USERNAME"),
				Password: os.Getenv("LYRA_PASSWORD"),
			}
			if _, err := sess.Authenticate(creds); err != nil {
				log.Fatalf("登录失败: %v", err)
			}
		}

		pipeline := audio.NewPipeline(sess, store,
			audio.NewFetcher(cfg.CDNBase),
			cfg.TargetSampleRate, cfg.LookAheadSamples)
		defer pipeline.Stop()

		if err := pipeline.Load(ctx, item, nil); err != nil {
			log.Fatalf("装载曲目失败: %v", err)
		}

		samples, err := drainPipeline(pipeline)
		if err != nil {
			log.Fatalf("解码中断: %v", err)
		}
		fmt.Printf("解码完成: %d 个采样，约 %.1f 秒 @ %d Hz\n",
			samples, float64(samples)/float64(cfg.TargetSampleRate), cfg.TargetSampleRate)
	},
}

// resolvePlayArg 把命令行参数解析为曲目 id：存在的文件按本地曲目处理，
// 其余按 URI 解析
func resolvePlayArg(arg string) (model.ItemId, error) {
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		return model.FromLocal(arg), nil
	}
	return model.ParseURI(arg)
}

// drainPipeline 把管线消费到序列结束，返回采样总数
func drainPipeline(p *audio.Pipeline) (int, error) {
	buf := make([][2]float64, 4096)
	total := 0
	for {
		n, err := p.NextFrame(buf)
		total += n
		if errors.Is(err, io.EOF) {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

func init() {
	rootCmd.AddCommand(playCmd)
}
