// Command checkpages validates page counts between an original PDF and
// its translated outputs. The mono output must match the original page
// for page; the dual output must hold exactly twice as many pages.
//
// Usage:
//
//	go run cmd/checkpages/main.go <original.pdf> <mono.pdf> [dual.pdf]
package main

import (
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: checkpages <original.pdf> <mono.pdf> [dual.pdf]")
		fmt.Println()
		fmt.Println("Checks translation output page counts:")
		fmt.Println("  - mono must have the same page count as the original")
		fmt.Println("  - dual, when given, must have exactly twice as many")
		os.Exit(1)
	}

	originalPath := os.Args[1]
	monoPath := os.Args[2]
	dualPath := ""
	if len(os.Args) > 3 {
		dualPath = os.Args[3]
	}

	original := mustCount(originalPath)
	mono := mustCount(monoPath)

	fmt.Printf("  Original: %s (%d pages)\n", originalPath, original)
	fmt.Printf("  Mono:     %s (%d pages)\n", monoPath, mono)

	ok := true
	if mono != original {
		fmt.Printf("MISMATCH: mono has %d pages, want %d\n", mono, original)
		ok = false
	}

	if dualPath != "" {
		dual := mustCount(dualPath)
		fmt.Printf("  Dual:     %s (%d pages)\n", dualPath, dual)
		if dual != 2*original {
			fmt.Printf("MISMATCH: dual has %d pages, want %d\n", dual, 2*original)
			ok = false
		}
	}

	if !ok {
		os.Exit(2)
	}
	fmt.Println("Page counts OK")
}

func mustCount(path string) int {
	n, err := api.PageCountFile(path)
	if err != nil {
		fmt.Printf("Error: cannot read %s: %v\n", path, err)
		os.Exit(1)
	}
	return n
}
