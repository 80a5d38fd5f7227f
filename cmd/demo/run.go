package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/spf13/cobra"

	"github.com/senutpal/quorum/internal/config"
	"github.com/senutpal/quorum/internal/node"
	"github.com/senutpal/quorum/internal/paxos"
	"github.com/senutpal/quorum/internal/storage"
	"github.com/senutpal/quorum/internal/transport"
)

var (
	runConfigPath string
	runDataDir    string
	runAdminAddr  string
)

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", "cluster.yaml", "path to the cluster membership file")
	runCmd.Flags().StringVar(&runDataDir, "data", "", "directory for the durable decision log (empty: in-memory only)")
	runCmd.Flags().StringVar(&runAdminAddr, "admin", ":8080", "address the propose/status HTTP API listens on")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start this node's replica and serve peer connections",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)

		cluster, err := config.Load(runConfigPath)
		if err != nil {
			return err
		}

		var durable storage.Log
		if runDataDir == "" {
			durable = storage.NewMemory()
		} else {
			durable, err = storage.OpenFile(runDataDir+"/quorum.log", logger)
			if err != nil {
				return fmt.Errorf("open durable log: %w", err)
			}
		}

		net := transport.NewNetwork(cluster.Configuration().Current(), logger)
		srv, err := net.Listen(cluster.Listen)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", cluster.Listen, err)
		}
		defer srv.Close()

		for _, peer := range cluster.PeerIDs() {
			addr, _ := cluster.Addr(peer)
			go dialUntilUp(net, peer, addr, logger)
		}

		self := cluster.Configuration().Current()
		n := node.New(cluster.Configuration(), net, func(sm paxos.ReplicatedState) paxos.Sender {
			return net.Sender(self, sm)
		}, durable, logger)
		if err := n.Start(); err != nil {
			return err
		}
		level.Info(logger).Log("event", "node_started", "id", cluster.Self, "listen", cluster.Listen)

		adminSrv := &http.Server{Addr: runAdminAddr, Handler: n.Admin()}
		go func() {
			if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				level.Error(logger).Log("event", "admin_listen_error", "err", err)
			}
		}()
		defer adminSrv.Close()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		level.Info(logger).Log("event", "node_stopping")
		return n.Stop()
	},
}

func dialUntilUp(net *transport.Network, peer paxos.NodeId, addr string, logger log.Logger) {
	for {
		if err := net.Dial(peer, addr); err == nil {
			return
		}
		time.Sleep(500 * time.Millisecond)
	}
}
