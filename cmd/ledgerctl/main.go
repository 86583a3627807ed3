// ledgerctl runs maintenance jobs against the ledger database.
//
// Usage (from the repository root, with the same DB_* / REDIS_ADDRESS env as the API):
//
//	go run ./cmd/ledgerctl migrate
//	go run ./cmd/ledgerctl seed
//	go run ./cmd/ledgerctl reconcile --company <id>
package main

import "github.com/mmdatafocus/ledger_backend/cmd/ledgerctl/cmd"

func main() {
	cmd.Execute()
}
