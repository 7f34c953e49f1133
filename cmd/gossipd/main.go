package main

import "github.com/rudransh-shrivastava/gossip-it/internal/cmd"

func main() {
	cmd.Execute()
}
