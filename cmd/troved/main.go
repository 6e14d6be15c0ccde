// Command troved runs the trove daemon in the foreground. It is the
// supervisor-friendly equivalent of `trove daemon`.
package main

import (
	"context"
	"flag"
	"log"

	"trove/internal/config"
	"trove/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	logLevel := flag.String("log-level", "", "override the configured log level")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{LogLevel: *logLevel}); err != nil {
		log.Fatalf("troved: %v", err)
	}
}
