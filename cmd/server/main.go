package main

import "github.com/staydrive/inventory-engine/cmd/server/command"

func main() {
	command.Execute()
}
