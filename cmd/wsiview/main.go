package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"

	"github.com/wsiview/wsiview"
)

func main() {
	// Configuration
	var configFile = flag.String("config", "", "Define the configuration file to use.")
	flag.Parse()

	if flag.NArg() > 0 {
		*configFile = flag.Arg(0)
	}

	if *configFile != "" {
		log.Println(fmt.Sprintf("Reading configuration from %s", *configFile))
	}
	config, err := wsiview.LoadConfig(*configFile)
	if err != nil {
		fmt.Println(err)
		return
	}

	handler := wsiview.NewServer(config)

	// Serving
	log.Println(fmt.Sprintf("Server running on %v", config.Addr()))
	panic(http.ListenAndServe(config.Addr(), handler))
}
