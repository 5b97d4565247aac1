package main

import "github.com/truckfixgo/offline-agent/cmd"

func main() {
	cmd.Execute()
}
