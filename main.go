package main

import "github.com/stegokey/backend-go/cmd"

func main() {
	cmd.Execute()
}
