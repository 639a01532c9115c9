// Command cvtune tunes a learner's hyperparameters against a CSV data set
// from the command line.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
