package main

import "fairpay/backend/services/session-service/internal/cli"

func main() {
	cli.Execute()
}
