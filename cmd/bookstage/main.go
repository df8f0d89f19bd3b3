package main

import (
	"os"

	"git.home.luguber.info/inful/bookstage/cmd/bookstage/commands"
)

func main() {
	os.Exit(commands.Execute(os.Args[1:], commands.NewGlobal()))
}
