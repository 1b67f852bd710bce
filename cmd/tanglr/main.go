package main

import (
	"log"
	"os"

	"github.com/artyultra/tanglr-client/internal/cli"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	if err := cli.NewApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
