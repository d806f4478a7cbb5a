// curios is the terminal client for the CuriOS assistant.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/curios-os/curios/internal/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := cmd.Execute(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
