package main

import "github.com/media-curator/media-curator/cmd"

func main() {
	cmd.Execute()
}
