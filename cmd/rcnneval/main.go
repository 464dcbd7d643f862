package main

import "github.com/MeKo-Tech/rcnneval/cmd/rcnneval/cmd"

func main() {
	cmd.Execute()
}
