// Command doin-node starts a DOIN node.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/harveybc/doin-core/config"
	"github.com/harveybc/doin-core/crypto/certgen"
	"github.com/harveybc/doin-core/identity"
	"github.com/harveybc/doin-core/node"
)

func main() {
	cfgPath := flag.String("config", "config.json", "path to config file")
	keyPath := flag.String("key", "identity.key", "path to keystore file")
	genKey := flag.Bool("genkey", false, "generate a new identity key and exit")
	genCerts := flag.String("gencerts", "", "generate CA + node TLS certs into the given directory and exit (requires node ID from config)")
	flag.Parse()

	// Read keystore password from environment (not CLI flags — they leak via ps).
	password := os.Getenv("DOIN_PASSWORD")
	if password == "" {
		log.Println("WARNING: DOIN_PASSWORD not set — keystore will use an empty password")
	}

	// ---- generate key mode ----
	if *genKey {
		id, err := identity.Generate()
		if err != nil {
			log.Fatal(err)
		}
		if err := identity.Save(*keyPath, password, id); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Generated identity. Public key (peer id): %s\n", id.PubKey())
		fmt.Printf("Saved to: %s\n", *keyPath)
		return
	}

	// ---- generate certs mode ----
	if *genCerts != "" {
		cfgForCerts, err := loadConfig(*cfgPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		if err := certgen.GenerateAll(*genCerts, cfgForCerts.NodeID, nil); err != nil {
			log.Fatalf("gencerts: %v", err)
		}
		fmt.Printf("Certificates generated in %s for node %q\n", *genCerts, cfgForCerts.NodeID)
		return
	}

	// ---- load config ----
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- load identity key ----
	id, err := identity.Load(*keyPath, password)
	if err != nil {
		log.Fatalf("load key: %v", err)
	}

	// ---- build the node ----
	svc, err := node.New(cfg, id)
	if err != nil {
		log.Fatalf("node: %v", err)
	}
	defer svc.Close()

	log.Printf("Node %s starting (peer id: %s)", cfg.NodeID, id.PubKey())

	// ---- graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		cancel()
	}()

	if err := svc.Run(ctx); err != nil {
		log.Fatalf("run: %v", err)
	}
	log.Println("Shutdown complete.")
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("Config file not found at %s, using defaults.", path)
			return config.DefaultConfig(), nil
		}
		return nil, err
	}
	return cfg, nil
}
