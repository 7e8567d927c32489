// Command shim-install deploys the shim library into an extracted application package.
package main

import "github.com/oshokin/shim-installer/cmd/shim-install/cmd"

func main() {
	cmd.Execute()
}
