// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     main
// Description: VORTEX command line entry point
// Author:      Mike Stoffels with Claude
// Created:     2025-12-07
// License:     MIT
// ============================================================================

package main

import (
	"os"

	"github.com/msto63/vortex/cmd/vortex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
