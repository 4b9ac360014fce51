package main

import "shieldvault/internal/cli"

func main() {
	cli.Execute()
}
