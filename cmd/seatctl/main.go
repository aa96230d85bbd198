// Command seatctl is the admin CLI: schema migration, catalog seeding and
// read-only inspection of availability and bookings.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
