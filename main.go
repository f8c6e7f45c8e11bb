package main

import "github.com/ancestrio/family-archive/cmd"

func main() {
	cmd.Execute()
}
