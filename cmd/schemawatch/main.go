// Command schemawatch infers the schema of JSON records flowing through
// Kafka, versions it per subject and reports drift.
package main

import "os"

func main() {
	if err := Execute(); err != nil {
		// cobra already printed the error
		os.Exit(1)
	}
}
