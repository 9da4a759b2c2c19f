package main

// Capability adapter blank imports. Each import activates a
// self-registering adapter factory; add new adapters here.

import (
	_ "github.com/parleyhq/parley/internal/adapter/httptool"
	_ "github.com/parleyhq/parley/internal/adapter/simtool"
)
