package main

import (
	"elspot2mqtt/internal/cli"
)

func main() {
	cli.Execute()
}
