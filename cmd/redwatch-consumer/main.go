package main

import "github.com/redwatch/redwatch/cmd/redwatch-consumer/cmd"

func main() {
	cmd.Execute()
}
