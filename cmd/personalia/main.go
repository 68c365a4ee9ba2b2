// Command personalia is a command line client for the Personalia API.
package main

import "github.com/personalia-io/personalia-sdk-go/internal/cli"

func main() {
	cli.Execute()
}
