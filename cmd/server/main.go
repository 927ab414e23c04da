package main

import (
	"context"
	"log"

	"github.com/dmitrijs2005/filingapi/internal/server"
	"github.com/dmitrijs2005/filingapi/internal/server/config"
)

func main() {

	ctx := context.Background()
	app, err := server.NewApp(ctx, config.LoadConfig())
	if err != nil {
		log.Fatalf("filing server: %v", err)
	}

	app.Run(ctx)

}
