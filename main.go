// SPDX-License-Identifier: MIT
package main

import "github.com/skaphos/upkeep/cmd/upkeep"

// execute is overridable in tests.
var execute = upkeep.Execute

func main() {
	execute()
}
