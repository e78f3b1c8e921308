package main

import "github.com/inventory-assistant/server/internal/cli"

func main() {
	cli.Execute()
}
