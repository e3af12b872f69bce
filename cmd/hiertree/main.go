// Command hiertree resolves and renders a hierarchy declared over a MySQL
// data source.
package main

import "github.com/go-hierarchy/provider/cmd/hiertree/cmd"

func main() {
	cmd.Execute()
}
