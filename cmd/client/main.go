package main

import (
	"log"
	"os"

	"github.com/dmitrijs2005/authgate/internal/client/cli"
	"github.com/dmitrijs2005/authgate/internal/client/config"
)

func main() {

	cfg := config.LoadConfig()
	app := cli.NewApp(cfg, os.Stdin, os.Stdout)

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("%v", err)
	}

}
