package main

import "github.com/derickschaefer/composite/cmd"

func main() {
	cmd.Execute()
}
