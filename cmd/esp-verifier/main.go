package main

import "github.com/oshokin/esp-release-packager/cmd/esp-verifier/cmd"

func main() {
	cmd.Execute()
}
