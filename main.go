package main

import (
	"log"

	"musedb/cmd"
)

func main() {
	cmd.Execute()
	// If Execute() had a problem, Cobra would have called os.Exit.
	// Reaching here means the command completed (or the server ran
	// through shutdown) without a setup error.
	log.Println("Application command execution finished.")
}
