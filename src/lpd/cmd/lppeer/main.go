package main

import "github.com/uber/live-preview/src/lpd/cmd/lppeer/cmd"

func main() {
	cmd.Execute()
}
