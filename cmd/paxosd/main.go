package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/lorin/paxos-fizzbee/internal/config"
	"github.com/lorin/paxos-fizzbee/internal/node"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config file (overrides other flags)")
		nodeID     = flag.String("node-id", "", "Unique node identifier")
		listenAddr = flag.String("listen", ":7101", "Address to listen on")
		peersStr   = flag.String("peers", "", "Comma-separated peers: id1=addr1,id2=addr2")
	)
	flag.Parse()

	var cfg *config.Config
	var err error

	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	} else {
		peers, perr := config.ParsePeers(*peersStr)
		if perr != nil {
			log.Fatalf("failed to parse peers: %v", perr)
		}
		cfg = &config.Config{
			NodeID:     *nodeID,
			ListenAddr: *listenAddr,
			Peers:      peers,
		}
		if err := cfg.Validate(); err != nil {
			log.Fatalf("invalid configuration: %v", err)
		}
	}

	n, err := node.New(cfg)
	if err != nil {
		log.Fatalf("failed to create node: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("[%s] received signal %v, shutting down", cfg.NodeID, sig)
		n.Stop()
	}()

	if err := n.Start(); err != nil {
		log.Fatalf("node exited: %v", err)
	}
}
