// Command surgectl runs the surge pipeline and lead scoring by hand.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
