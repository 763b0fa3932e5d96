package main

import (
	"LyraFM/cmd"
)

func main() {
	cmd.Execute()
}
