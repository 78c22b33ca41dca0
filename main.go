package main

import "github.com/KaramelBytes/co2atlas/cmd"

func main() {
	cmd.Execute()
}
