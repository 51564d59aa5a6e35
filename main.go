package main

import (
	"stall-ticket/cmd"

	_ "go.uber.org/automaxprocs"
)

func main() {
	cmd.Start()
}
