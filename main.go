package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/snagd/snag/internal"
)

// main() is the entry point to the program, from here we will
// load the users Snag configuration, construct the server and
// run it until interrupted.
func main() {
	configPath := flag.String("config", "", "path to the YAML config file (env-only config when omitted)")
	flag.Parse()

	config := internal.SnagConfig{}
	if *configPath != "" {
		if err := config.LoadFromFile(*configPath); err != nil {
			log.Panicf("Failed to initialise Snag - %v\n", err.Error())
		}
	} else if err := config.LoadFromEnv(); err != nil {
		log.Panicf("Failed to initialise Snag - %v\n", err.Error())
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := internal.New(config).Run(ctx); err != nil {
		log.Panicf("Snag stopped due to error - %v\n", err.Error())
	}
}
