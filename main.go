package main

import "github.com/rtms/taskboard/cmd/taskboard/commands"

func main() {
	commands.Execute()
}
