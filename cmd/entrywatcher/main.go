package main

import "entry-confirm-alerts/internal/cli"

func main() {
	cli.Execute()
}
