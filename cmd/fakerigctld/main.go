package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dougsko/rigbridge/pkg/logging"
	"github.com/dougsko/rigbridge/pkg/rigctl/rigctltest"
)

var (
	listen    = flag.String("listen", "127.0.0.1:4532", "Address to listen on")
	sentinel  = flag.Uint("sentinel", '\n', "Byte rigctld appends after a raw reply")
	frequency = flag.Int64("freq", 14074000, "Initial frequency in Hz")
)

func main() {
	flag.Parse()

	if *sentinel > 255 {
		log.Fatalf("sentinel must be a single byte, got %d", *sentinel)
	}

	radio := rigctltest.NewMockRadio()
	radio.SetFrequency(*frequency)

	server, err := rigctltest.Listen(*listen, radio)
	if err != nil {
		log.Fatalf("Failed to start fake rigctld: %v", err)
	}
	server.Sentinel = byte(*sentinel)

	logging.Info("fakerigctld", fmt.Sprintf("Fake rigctld listening on %s", server.Addr()))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	if err := server.Close(); err != nil {
		logging.Error("fakerigctld", fmt.Sprintf("Error during shutdown: %v", err))
	}
	logging.Info("fakerigctld", "Fake rigctld stopped")
}
