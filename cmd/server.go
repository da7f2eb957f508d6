package cmd

import (
	"musedb/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动musedb服务器",
	Long:  `启动musedb元数据系统的HTTP服务器，提供目录API、合并规划与编辑审核工作流`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
