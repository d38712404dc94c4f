// Command screenerd runs the screener daemon without the CLI. The config file
// is taken from SCREENER_CONFIG, falling back to the default search path.
package main

import (
	"context"
	"log"
	"os"

	"screener/internal/config"
	"screener/internal/daemonrun"
)

func main() {
	cfg, _, _, err := config.Load(os.Getenv("SCREENER_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{
		LogLevel: os.Getenv("SCREENER_LOG_LEVEL"),
	}); err != nil {
		log.Fatalf("screenerd: %v", err)
	}
}
