package main

import "github.com/redwatch/redwatch/cmd/redwatch/cmd"

func main() {
	cmd.Execute()
}
