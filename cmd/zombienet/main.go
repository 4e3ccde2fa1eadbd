// Command zombienet spawns ephemeral relay-chain/parachain test networks
// from a declarative TOML definition.
package main

import "os"

func main() {
	os.Exit(Execute())
}
