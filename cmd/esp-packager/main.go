package main

import "github.com/oshokin/esp-release-packager/cmd/esp-packager/cmd"

func main() {
	cmd.Execute()
}
