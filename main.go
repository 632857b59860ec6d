package main

import "djrag/cmd"

const Version = "v0.1.0"

func main() {
	cmd.Execute(Version)
}
