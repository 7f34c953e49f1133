package cmd

import (
	"log"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:  `gossip-it`,
	Long: `gossip-it is the transport layer of a peer to peer gossip network`,
	Run: func(cmd *cobra.Command, args []string) {
		log.Println("gossip-it is the transport layer of a peer to peer gossip network, see \"gossip-it daemon\"")
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
