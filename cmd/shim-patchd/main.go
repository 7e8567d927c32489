// Command shim-patchd serves the patch engine over gRPC.
package main

import "github.com/oshokin/shim-installer/cmd/shim-patchd/cmd"

func main() {
	cmd.Execute()
}
