package main

import "github.com/Lllllllleong/bookflow/internal/cli"

func main() {
	cli.Execute()
}
