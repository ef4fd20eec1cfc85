package main

import "github.com/redwatch/redwatch/cmd/redwatch-producer/cmd"

func main() {
	cmd.Execute()
}
