package main

import "github.com/kozaktomas/cbir/cmd"

func main() {
	cmd.Execute()
}
