package main

import "github.com/redwatch/redwatch/cmd/redwatch-api/cmd"

func main() {
	cmd.Execute()
}
