package main

import "github.com/nomadai/concierge/cmd"

func main() {
	cmd.Execute()
}
