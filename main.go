package main

import (
	"os"

	"pst2t/cmd"
)

func main() {
	cmd.Execute(os.Args[1:])
}
