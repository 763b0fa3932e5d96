package cmd

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"LyraFM/core/session"
	"LyraFM/model"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "会话连接测试",
	Long:  `连接接入点并完成密钥交换与登录，用于诊断网络和凭证问题。凭证从 LYRA_USERNAME / LYRA_PASSWORD 环境变量读取。`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := initRuntime()
		accessPoint := net.JoinHostPort(cfg.APHost, cfg.APPort)
		fmt.Printf("开始测试会话连接: %s\n", accessPoint)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		sess, err := session.Connect(ctx, accessPoint)
		if err != nil {
			log.Fatalf("无法连接接入点: %v", err)
		}
		defer sess.Close()
		fmt.Println("密钥交换成功！")

		creds := model.Credentials{
			Username: os.Getenv("LYRA_USERNAME"),
			Password: os.Getenv("LYRA_PASSWORD"),
		}
		if creds.Username == "" {
			fmt.Println("未设置 LYRA_USERNAME，跳过登录测试。")
			return
		}

		user, err := sess.Authenticate(creds)
		if err != nil {
			log.Fatalf("登录失败: %v", err)
		}
		fmt.Printf("登录成功: %s (%s)\n", user.Username, user.CountryCode)
		fmt.Printf("会话状态: %s\n", sess.State())
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
}
