package main

import "github.com/shizukutanaka/kodama/cmd/kodama/commands"

func main() {
	commands.Execute()
}
