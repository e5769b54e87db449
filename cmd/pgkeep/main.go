package main

import "github.com/semmidev/pgkeep/internal/cli"

func main() {
	cli.Execute()
}
