package main

import "penalty-alerts/internal/cli"

func main() {
	cli.Execute()
}
