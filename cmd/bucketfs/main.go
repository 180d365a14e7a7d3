// Command bucketfs manipulates an S3-compatible object store with
// filesystem commands.
//
//	bucketfs mkdir /photos/2024/
//	bucketfs put ./beach.jpg /photos/2024/
//	bucketfs ls /photos/2024/
//	bucketfs cp -r /photos/2024/ /backup/
//	bucketfs serve
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(newApp()).ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		stop()
		os.Exit(1)
	}
}
