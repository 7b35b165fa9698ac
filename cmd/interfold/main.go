// Command interfold is the command-line front end for an interfold workspace.
package main

import "github.com/mesh-intelligence/interfold/internal/cli"

func main() {
	cli.Execute()
}
