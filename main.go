package main

import "diaryhub-backend/cmd"

func main() {
	cmd.Run()
}
