package main

import (
	_ "framefeed/internal/command/bench"
	_ "framefeed/internal/command/pack"
	_ "framefeed/internal/command/preprocess"
	"framefeed/internal/command/root"
)

func main() {
	root.Execute()
}
