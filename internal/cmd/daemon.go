package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rudransh-shrivastava/gossip-it/internal/db"
	"github.com/rudransh-shrivastava/gossip-it/internal/logger"
	"github.com/rudransh-shrivastava/gossip-it/internal/node"
	"github.com/rudransh-shrivastava/gossip-it/internal/store"
	"github.com/rudransh-shrivastava/gossip-it/internal/transport/quic"
)

var (
	daemonListenAddr string
	daemonDBPath     string
	daemonID         string
	daemonPeers      []string
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "runs a gossip node",
	Long:  `runs a gossip node that dials the given bootstrap peers and relays broadcast messages`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.NewLogger()

		gdb, err := db.New(daemonDBPath)
		if err != nil {
			return err
		}
		peers := store.NewPeerStore(gdb)

		tr, err := quic.NewTransport(daemonListenAddr, peers, log)
		if err != nil {
			return err
		}

		n, err := node.New(node.Options{
			ID:        daemonID,
			Peers:     peers,
			Transport: tr,
			Bootstrap: daemonPeers,
			Logger:    log,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		go func() {
			for ev := range n.Events() {
				log.Infof("[%s] %s: %s", ev.Topic, ev.From, ev.Data)
			}
		}()

		log.Infof("Listening on %s as %s", tr.LocalAddr(), n.ID())
		if err := n.Run(ctx); err != context.Canceled {
			return err
		}
		return nil
	},
}

func init() {
	daemonCmd.Flags().StringVar(&daemonListenAddr, "listen", "0.0.0.0:4842", "UDP address to listen on")
	daemonCmd.Flags().StringVar(&daemonDBPath, "db", "gossip.sqlite3", "path to the peer database")
	daemonCmd.Flags().StringVar(&daemonID, "id", "", "local peer ID (random when empty)")
	daemonCmd.Flags().StringArrayVar(&daemonPeers, "peer", nil, "bootstrap peer as peerID@host:port (repeatable)")
}
