// Package main is the entry point for the bpmhelper API server
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/james-see/bpmhelper/internal/config"
	"github.com/james-see/bpmhelper/pkg/api"
	"github.com/james-see/bpmhelper/pkg/session"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "Config file path")
	port := flag.Int("port", 0, "Server port (default from config)")
	projectPath := flag.String("project", "song.yaml", "Project file to serve")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if *port == 0 {
		*port = cfg.Server.Port
	}

	log := logrus.New()
	log.SetLevel(cfg.Level())

	s := session.New(cfg, log)
	if err := s.Load(*projectPath); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Project error: %v\n", err)
			os.Exit(1)
		}
		s.Create(*projectPath, 0)
	}

	fmt.Printf("Starting bpmhelper API server on port %d...\n", *port)
	fmt.Printf("Swagger docs available at http://localhost:%d/swagger/index.html\n", *port)

	if err := api.StartServer(s, *port); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
