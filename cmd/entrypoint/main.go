// Package main is the GreenSIG container entrypoint. It waits for the
// backing services, applies schema migrations, collects static assets, and
// hands off to the application server.
package main

func main() {
	Execute()
}
