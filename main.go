package main

import "github.com/kozaktomas/facerec/cmd"

func main() {
	cmd.Execute()
}
