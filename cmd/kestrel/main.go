// Kestrel - Batch AML screening for transaction ledgers.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import "github.com/opensource-finance/kestrel/internal/cli"

func main() {
	cli.Execute()
}
