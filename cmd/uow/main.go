// Command uow validates, prints and exercises the blog registry.
//
//	uow validate
//	uow ddl --dialect postgres
//	uow plan workload.yaml
//	uow run --create workload.yaml
//	uow gen --target ./model
package main

import (
	"fmt"
	"os"

	"github.com/syssam/uow/cli"
	"github.com/syssam/uow/examples/blog"
)

func main() {
	cmd := cli.NewRootCommand(blog.Registry())
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}
