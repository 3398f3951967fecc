package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/sicilystay/stayservice/internal/auth"
	"github.com/sicilystay/stayservice/internal/config"
)

func main() {
	configPath := flag.String("config", os.Getenv("STAY_CONFIG"), "Path to YAML config")
	subject := flag.String("sub", "", "Subject (operator e-mail or name)")
	ttl := flag.Duration("ttl", 24*time.Hour, "Token lifetime")
	flag.Parse()

	if *subject == "" {
		log.Fatal("Usage: admin-token -sub <operator> [-ttl 24h] [-config config.yaml]")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	token, err := auth.IssueAdminToken(cfg.Admin.TokenSecret, *subject, *ttl, time.Now())
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}
	fmt.Println(token)
}
