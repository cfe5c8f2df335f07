package cmd

import (
	"github.com/nfrund/huddle/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat relay server",
	Run: func(cmd *cobra.Command, args []string) {
		s := server.New()
		s.Boot()
		s.RegisterRoutes()
		s.Start(":" + s.Cfg.GetPort())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
