package main

import "github.com/postwatch-io/postwatch/cmd"

func main() {
	cmd.Execute()
}
