// clinicauthd is the authentication service for the apsicologia platform:
// the REST surface of the clinicauth engine backed by PostgreSQL and Redis.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "clinicauthd",
		Short:         "apsicologia authentication service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), migrateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
