// Command geodectl runs geode plans locally and inspects the providers they
// depend on.
//
// Usage:
//
//	geodectl run plan.json
//	geodectl run - < plan.json
//	geodectl locate "Atlanta, Georgia"
//	geodectl ops
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
