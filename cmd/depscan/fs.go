package main

import "github.com/sec-scan/depscan/internal/testable"

// cmdFS is overridden in tests to inject a mock filesystem.
var cmdFS testable.FileSystem = testable.DefaultFS
