package main

import "github.com/aeqip/imgsim/cmd"

func main() {
	cmd.Execute()
}
