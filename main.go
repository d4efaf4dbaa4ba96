package main

import "github.com/tanq16/dlq/cmd"

func main() {
	cmd.Execute()
}
