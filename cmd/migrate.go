package cmd

import (
	"fmt"
	"log"

	"musedb/config"
	"musedb/db"
	"musedb/model"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "初始化数据库结构",
	Long:  `建立目录表结构（releases/mediums/tracks/recordings/artist_credits/users），并通过GORM迁移编辑审核相关的表。`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()

		if err := db.ConnectDB(cfg); err != nil {
			log.Fatalf("无法连接数据库: %v", err)
		}
		defer db.DB.Close()

		if err := db.InitDB(); err != nil {
			log.Fatalf("目录表初始化失败: %v", err)
		}

		if err := db.ConnectGormDB(cfg); err != nil {
			log.Fatalf("GORM连接失败: %v", err)
		}
		defer db.CloseGormDB()

		// 编辑审核子系统的表由GORM维护
		if err := db.AutoMigrateModels(&model.Edit{}, &model.EditNote{}, &model.EditVote{}); err != nil {
			log.Fatalf("编辑表迁移失败: %v", err)
		}

		fmt.Println("数据库迁移完成。")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
