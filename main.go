package main

import "portal-backend/cmd"

func main() {
	cmd.Execute()
}
